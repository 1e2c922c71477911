package diagnose

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/klogins-hash/livekit-mcp-agent/internal/envcheck"
	"github.com/klogins-hash/livekit-mcp-agent/internal/livekit"
	"github.com/klogins-hash/livekit-mcp-agent/internal/mcp"
)

const (
	// networkTimeout bounds each reachability probe
	networkTimeout = 10 * time.Second

	// Resource thresholds above which a warning is raised
	cpuThreshold  = 80.0
	memThreshold  = 80.0
	diskThreshold = 90.0
)

// Check is one diagnostic result
type Check struct {
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
	Detail     string `json:"detail,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// Report groups diagnostics by section
type Report struct {
	Environment     []Check  `json:"environment"`
	Network         []Check  `json:"network"`
	MCP             []Check  `json:"mcp"`
	Resources       []Check  `json:"resources"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Failures counts checks that did not pass
func (r *Report) Failures() int {
	n := 0
	for _, section := range [][]Check{r.Environment, r.Network, r.MCP, r.Resources} {
		for _, c := range section {
			if !c.OK {
				n++
			}
		}
	}
	return n
}

// Runner executes the diagnostic suite
type Runner struct {
	httpClient *http.Client
	endpoints  map[string]string // name -> URL, nil means derive from env
	mcpURL     string
}

// Option configures a Runner
type Option func(*Runner)

// WithNetworkEndpoints overrides the reachability probe targets (used in tests)
func WithNetworkEndpoints(endpoints map[string]string) Option {
	return func(r *Runner) { r.endpoints = endpoints }
}

// WithMCPEndpoint overrides the MCP probe target
func WithMCPEndpoint(url string) Option {
	return func(r *Runner) { r.mcpURL = url }
}

// New creates a diagnostics runner
func New(opts ...Option) *Runner {
	r := &Runner{
		httpClient: &http.Client{Timeout: networkTimeout},
		mcpURL:     os.Getenv("MC3_MCP_URL"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes all sections and derives recommendations
func (r *Runner) Run(ctx context.Context) *Report {
	report := &Report{
		Environment: r.checkEnvironment(),
		Network:     r.checkNetwork(ctx),
		MCP:         r.checkMCP(ctx),
		Resources:   r.checkResources(ctx),
	}
	report.Recommendations = recommend(report)
	return report
}

func (r *Runner) checkEnvironment() []Check {
	var checks []Check
	for _, v := range envcheck.Report() {
		if !v.Required {
			continue
		}
		check := Check{Name: v.Name, OK: v.Set}
		if v.Set {
			check.Detail = "Set: " + v.Masked
		} else {
			check.Detail = "Not set"
		}
		checks = append(checks, check)
	}
	return checks
}

// checkNetwork probes each service endpoint; any response below 500 counts as
// reachable, auth failures still prove the network path works
func (r *Runner) checkNetwork(ctx context.Context) []Check {
	endpoints := r.endpoints
	if endpoints == nil {
		endpoints = map[string]string{
			"LiveKit Cloud": livekit.HTTPURL(os.Getenv("LIVEKIT_URL")),
			"OpenAI API":    "https://api.openai.com",
			"Deepgram API":  "https://api.deepgram.com",
		}
		if r.mcpURL != "" {
			endpoints["MCP Server"] = r.mcpURL
		}
	}

	names := make([]string, 0, len(endpoints))
	for name := range endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	var checks []Check
	for _, name := range names {
		url := endpoints[name]
		if url == "" || url == "https://" {
			checks = append(checks, Check{Name: name, Detail: "URL not configured"})
			continue
		}

		start := time.Now()
		check := Check{Name: name}

		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			check.Detail = err.Error()
			checks = append(checks, check)
			continue
		}

		resp, err := r.httpClient.Do(req)
		check.DurationMS = time.Since(start).Milliseconds()
		if err != nil {
			check.Detail = fmt.Sprintf("Error: %s", truncate(err.Error(), 50))
			checks = append(checks, check)
			continue
		}
		resp.Body.Close()

		check.OK = resp.StatusCode < 500
		check.Detail = fmt.Sprintf("Status: %d", resp.StatusCode)
		checks = append(checks, check)
	}
	return checks
}

func (r *Runner) checkMCP(ctx context.Context) []Check {
	apiKey := os.Getenv("MC3_API_KEY")
	if r.mcpURL == "" || apiKey == "" {
		return []Check{{Name: "MCP API Key", Detail: "Not configured"}}
	}

	start := time.Now()
	client := mcp.NewClient(r.mcpURL, apiKey)
	err := client.Initialize(ctx)
	check := Check{
		Name:       "MCP Initialize",
		OK:         err == nil,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		check.Detail = err.Error()
	} else {
		check.Detail = "Server responded correctly"
	}
	return []Check{check}
}

func (r *Runner) checkResources(ctx context.Context) []Check {
	var checks []Check

	if percents, err := cpu.PercentWithContext(ctx, time.Second, false); err == nil && len(percents) > 0 {
		checks = append(checks, Check{
			Name:   "CPU usage",
			OK:     percents[0] < cpuThreshold,
			Detail: fmt.Sprintf("%.1f%%", percents[0]),
		})
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		checks = append(checks, Check{
			Name:   "Memory usage",
			OK:     vm.UsedPercent < memThreshold,
			Detail: fmt.Sprintf("%.1f%%", vm.UsedPercent),
		})
	}

	if du, err := disk.UsageWithContext(ctx, "/"); err == nil {
		checks = append(checks, Check{
			Name:   "Disk usage",
			OK:     du.UsedPercent < diskThreshold,
			Detail: fmt.Sprintf("%.1f%%", du.UsedPercent),
		})
	}

	return checks
}

// recommend derives operator guidance from failed checks
func recommend(report *Report) []string {
	var recs []string

	for _, c := range report.Environment {
		if !c.OK {
			recs = append(recs, fmt.Sprintf("Set %s in the deployment environment", c.Name))
		}
	}
	for _, c := range report.Network {
		if !c.OK {
			recs = append(recs, fmt.Sprintf("Check network path to %s (%s)", c.Name, c.Detail))
		}
	}
	for _, c := range report.MCP {
		if !c.OK && c.Name == "MCP Initialize" {
			recs = append(recs, "Verify the MCP API key and server URL")
		}
	}
	for _, c := range report.Resources {
		if !c.OK {
			recs = append(recs, fmt.Sprintf("%s is high (%s), consider a larger instance", c.Name, c.Detail))
		}
	}

	if len(recs) == 0 {
		recs = append(recs, "All checks passed, the agent deployment looks healthy")
	}
	return recs
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
