package checks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/klogins-hash/livekit-mcp-agent/internal/livekit"
	"github.com/klogins-hash/livekit-mcp-agent/internal/mcp"
)

const (
	openAIURL   = "https://api.openai.com/v1/chat/completions"
	deepgramURL = "https://api.deepgram.com/v1/projects"

	// smokeModel is the cheapest chat model, the request caps output at 10 tokens
	smokeModel = "gpt-4o-mini"
)

// Result is the outcome of one service smoke check
type Result struct {
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
	Detail     string `json:"detail,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Runner issues minimal real requests against each configured service
type Runner struct {
	httpClient *http.Client
	openAIURL  string
	deepgram   string
	mcpURL     string
}

// Option configures a Runner
type Option func(*Runner)

// WithEndpoints overrides service endpoints (used in tests)
func WithEndpoints(openAI, deepgram, mcpURL string) Option {
	return func(r *Runner) {
		r.openAIURL = openAI
		r.deepgram = deepgram
		r.mcpURL = mcpURL
	}
}

// New creates a check runner
func New(opts ...Option) *Runner {
	r := &Runner{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		openAIURL:  openAIURL,
		deepgram:   deepgramURL,
		mcpURL:     os.Getenv("MC3_MCP_URL"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// All runs every applicable check and collects the results
func (r *Runner) All(ctx context.Context) []Result {
	results := []Result{
		r.run("LiveKit API", func() (string, error) { return r.checkLiveKit(ctx) }),
		r.run("OpenAI API", func() (string, error) { return r.checkOpenAI(ctx) }),
		r.run("Deepgram API", func() (string, error) { return r.checkDeepgram(ctx) }),
	}
	if r.mcpURL != "" {
		results = append(results, r.run("MCP server", func() (string, error) { return r.checkMCP(ctx) }))
	}
	return results
}

func (r *Runner) run(name string, fn func() (string, error)) Result {
	start := time.Now()
	detail, err := fn()
	res := Result{
		Name:       name,
		OK:         err == nil,
		Detail:     detail,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.Detail = err.Error()
	}
	return res
}

// checkLiveKit lists rooms through the server API
func (r *Runner) checkLiveKit(ctx context.Context) (string, error) {
	url := os.Getenv("LIVEKIT_URL")
	key := os.Getenv("LIVEKIT_API_KEY")
	secret := os.Getenv("LIVEKIT_API_SECRET")
	if url == "" || key == "" || secret == "" {
		return "", fmt.Errorf("LiveKit credentials not configured")
	}

	client := livekit.NewClient(url, key, secret, livekit.WithHTTPClient(r.httpClient))
	rooms, err := client.ListRooms(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("connected, %d active rooms", len(rooms)), nil
}

// checkOpenAI sends a one-word chat completion capped at 10 tokens
func (r *Runner) checkOpenAI(ctx context.Context) (string, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY not configured")
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"model": smokeModel,
		"messages": []map[string]string{
			{"role": "user", "content": "Say hello"},
		},
		"max_tokens": 10,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", r.openAIURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 120))
	}

	var completion struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("invalid response: %w", err)
	}
	return "completion from " + completion.Model, nil
}

// checkDeepgram lists projects, the cheapest authenticated call Deepgram offers
func (r *Runner) checkDeepgram(ctx context.Context) (string, error) {
	apiKey := os.Getenv("DEEPGRAM_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("DEEPGRAM_API_KEY not configured")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", r.deepgram, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var projects struct {
		Projects []struct {
			ProjectID string `json:"project_id"`
		} `json:"projects"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&projects); err != nil {
		return "", fmt.Errorf("invalid response: %w", err)
	}
	return fmt.Sprintf("%d projects", len(projects.Projects)), nil
}

// checkMCP runs the JSON-RPC initialize probe
func (r *Runner) checkMCP(ctx context.Context) (string, error) {
	client := mcp.NewClient(r.mcpURL, os.Getenv("MC3_API_KEY"))
	if err := client.Initialize(ctx); err != nil {
		return "", err
	}
	return "initialize ok", nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
