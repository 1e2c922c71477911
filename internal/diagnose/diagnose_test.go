package diagnose

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/klogins-hash/livekit-mcp-agent/internal/envcheck"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	for _, name := range envcheck.Required {
		t.Setenv(name, "test-value-for-"+name)
	}
}

func TestEnvironmentSection(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DEEPGRAM_API_KEY", "")

	r := New(WithNetworkEndpoints(map[string]string{}))
	report := r.Run(context.Background())

	var sawMissing, sawMasked bool
	for _, c := range report.Environment {
		if c.Name == "DEEPGRAM_API_KEY" {
			if c.OK {
				t.Error("unset var should fail its check")
			}
			sawMissing = true
		}
		if c.Name == "LIVEKIT_URL" {
			if !c.OK {
				t.Error("set var should pass its check")
			}
			if strings.Contains(c.Detail, "test-value-for-LIVEKIT_URL") {
				t.Errorf("detail should be masked, got %q", c.Detail)
			}
			sawMasked = true
		}
	}
	if !sawMissing || !sawMasked {
		t.Error("environment section should cover all required vars")
	}
}

func TestNetworkReachability(t *testing.T) {
	setRequiredEnv(t)

	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized) // 4xx still counts as reachable
	}))
	t.Cleanup(ok.Close)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(down.Close)

	r := New(WithNetworkEndpoints(map[string]string{
		"Reachable Service":   ok.URL,
		"Unreachable Service": down.URL,
		"Unconfigured":        "",
	}))
	report := r.Run(context.Background())

	for _, c := range report.Network {
		switch c.Name {
		case "Reachable Service":
			if !c.OK {
				t.Errorf("4xx should count as reachable, got %+v", c)
			}
		case "Unreachable Service":
			if c.OK {
				t.Errorf("5xx should count as unreachable, got %+v", c)
			}
		case "Unconfigured":
			if c.OK || c.Detail != "URL not configured" {
				t.Errorf("empty URL should be reported unconfigured, got %+v", c)
			}
		}
	}

	// Operator output must be stable across runs
	var names []string
	for _, c := range report.Network {
		names = append(names, c.Name)
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("network checks should be sorted by name, got %v", names)
	}
}

func TestCheckDurationInMilliseconds(t *testing.T) {
	data, err := json.Marshal(Check{Name: "MCP Initialize", OK: true, DurationMS: 42})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"duration_ms":42`) {
		t.Errorf("duration_ms should carry milliseconds, got %s", data)
	}
}

func TestMCPSection(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MC3_API_KEY", "mc3-key")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	}))
	t.Cleanup(srv.Close)

	r := New(WithNetworkEndpoints(map[string]string{}), WithMCPEndpoint(srv.URL))
	report := r.Run(context.Background())

	if len(report.MCP) != 1 || !report.MCP[0].OK {
		t.Errorf("MCP initialize should pass, got %+v", report.MCP)
	}
}

func TestMCPUnconfigured(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MC3_API_KEY", "")

	r := New(WithNetworkEndpoints(map[string]string{}), WithMCPEndpoint(""))
	report := r.Run(context.Background())

	if len(report.MCP) != 1 || report.MCP[0].Detail != "Not configured" {
		t.Errorf("missing MCP config should be reported, got %+v", report.MCP)
	}
}

func TestRecommendationsForFailures(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OPENAI_API_KEY", "")

	r := New(WithNetworkEndpoints(map[string]string{}))
	report := r.Run(context.Background())

	if report.Failures() == 0 {
		t.Fatal("report should have failures with a missing env var")
	}

	found := false
	for _, rec := range report.Recommendations {
		if strings.Contains(rec, "OPENAI_API_KEY") {
			found = true
		}
	}
	if !found {
		t.Errorf("recommendations should mention the missing var, got %v", report.Recommendations)
	}
}

func TestResourcesSectionPopulated(t *testing.T) {
	setRequiredEnv(t)

	r := New(WithNetworkEndpoints(map[string]string{}))
	report := r.Run(context.Background())

	if len(report.Resources) == 0 {
		t.Skip("resource probes unavailable on this platform")
	}
	for _, c := range report.Resources {
		if c.Detail == "" {
			t.Errorf("resource check %s should carry a usage detail", c.Name)
		}
	}
}
