package checks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func fakeServices(t *testing.T) (openAI, deepgram, mcpSrv, lk *httptest.Server) {
	t.Helper()

	openAI = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			http.Error(w, "no auth", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"message":{"content":"Hello"}}]}`))
	}))
	t.Cleanup(openAI.Close)

	deepgram = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Token ") {
			http.Error(w, "no auth", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"projects":[{"project_id":"p1"}]}`))
	}))
	t.Cleanup(deepgram.Close)

	mcpSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	}))
	t.Cleanup(mcpSrv.Close)

	lk = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rooms":[]}`))
	}))
	t.Cleanup(lk.Close)

	return openAI, deepgram, mcpSrv, lk
}

func TestAllChecksPass(t *testing.T) {
	openAI, deepgram, mcpSrv, lk := fakeServices(t)

	t.Setenv("LIVEKIT_URL", lk.URL)
	t.Setenv("LIVEKIT_API_KEY", "key")
	t.Setenv("LIVEKIT_API_SECRET", "secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DEEPGRAM_API_KEY", "dg-test")
	t.Setenv("MC3_API_KEY", "mc3-test")

	runner := New(WithEndpoints(openAI.URL, deepgram.URL, mcpSrv.URL))
	results := runner.All(context.Background())

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for _, res := range results {
		if !res.OK {
			t.Errorf("%s should pass: %s", res.Name, res.Detail)
		}
	}
}

func TestResultDurationInMilliseconds(t *testing.T) {
	data, err := json.Marshal(Result{Name: "LiveKit API", OK: true, DurationMS: 1500})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"duration_ms":1500`) {
		t.Errorf("duration_ms should carry milliseconds, got %s", data)
	}
}

func TestMissingCredentialsFailFast(t *testing.T) {
	openAI, deepgram, mcpSrv, _ := fakeServices(t)

	t.Setenv("LIVEKIT_URL", "")
	t.Setenv("LIVEKIT_API_KEY", "")
	t.Setenv("LIVEKIT_API_SECRET", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DEEPGRAM_API_KEY", "")
	t.Setenv("MC3_API_KEY", "")

	runner := New(WithEndpoints(openAI.URL, deepgram.URL, mcpSrv.URL))
	results := runner.All(context.Background())

	for _, res := range results {
		if res.Name == "MCP server" {
			continue
		}
		if res.OK {
			t.Errorf("%s should fail without credentials", res.Name)
		}
		if res.Detail == "" {
			t.Errorf("%s failure should carry a detail message", res.Name)
		}
	}
}

func TestFailedServiceReported(t *testing.T) {
	_, deepgram, mcpSrv, lk := fakeServices(t)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	t.Cleanup(broken.Close)

	t.Setenv("LIVEKIT_URL", lk.URL)
	t.Setenv("LIVEKIT_API_KEY", "key")
	t.Setenv("LIVEKIT_API_SECRET", "secret")
	t.Setenv("OPENAI_API_KEY", "sk-bad")
	t.Setenv("DEEPGRAM_API_KEY", "dg-test")
	t.Setenv("MC3_API_KEY", "")

	runner := New(WithEndpoints(broken.URL, deepgram.URL, mcpSrv.URL))
	results := runner.All(context.Background())

	for _, res := range results {
		if res.Name != "OpenAI API" {
			continue
		}
		if res.OK {
			t.Error("OpenAI check should fail against a 401")
		}
		if !strings.Contains(res.Detail, "401") {
			t.Errorf("detail should mention the status, got %q", res.Detail)
		}
	}
}
