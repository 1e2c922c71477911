package healthsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/klogins-hash/livekit-mcp-agent/internal/envcheck"
	"github.com/klogins-hash/livekit-mcp-agent/pkg/logging"
	"github.com/klogins-hash/livekit-mcp-agent/pkg/metrics"
	"github.com/klogins-hash/livekit-mcp-agent/pkg/ratelimit"
	"github.com/klogins-hash/livekit-mcp-agent/pkg/tracing"
)

const (
	// ServiceName is what the platform health check expects to see
	ServiceName = "livekit-mcp-agent"

	// Version reported on /health and /status
	Version = "1.0.0"

	// DefaultPort is used when the PORT environment variable is unset
	DefaultPort = 8080

	// DefaultRefreshInterval is how often the cached status is re-evaluated
	DefaultRefreshInterval = 30 * time.Second
)

// AgentProbe reports whether the agent worker is running, and its PID if known
type AgentProbe func() (bool, int)

// Config configures the health report server
type Config struct {
	Port            int
	AgentCommand    string // substring matched against process command lines
	RefreshInterval time.Duration
	Logger          *logging.Logger
	Gatherer        prometheus.Gatherer
	Tracing         *tracing.Provider
	AgentProbe      AgentProbe // overrides process-table scanning when set
}

// Server is the health report endpoint supervised alongside the agent worker
type Server struct {
	cfg       Config
	logger    *logging.Logger
	startTime time.Time
	httpSrv   *http.Server

	mu       sync.RWMutex
	envOK    bool
	agentUp  bool
	agentPID int
}

// PortFromEnv returns the listen port, honoring the platform's PORT variable
func PortFromEnv() int {
	if v := os.Getenv("PORT"); v != "" {
		var p int
		if _, err := fmt.Sscanf(v, "%d", &p); err == nil && p > 0 {
			return p
		}
	}
	return DefaultPort
}

// New creates a health report server
func New(cfg Config) *Server {
	if cfg.Port == 0 {
		cfg.Port = PortFromEnv()
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.AgentCommand == "" {
		cfg.AgentCommand = "agent"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger(logging.INFO, false)
	}

	s := &Server{
		cfg:       cfg,
		logger:    cfg.Logger,
		startTime: time.Now(),
	}
	s.refresh()
	return s
}

// Router builds the HTTP routes
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	limiter := ratelimit.NewLimiter(10, 20)
	r.Use(limiter.Middleware(ratelimit.IPKeyFunc))

	if s.cfg.Tracing != nil {
		r.Use(tracing.HTTPMiddleware(s.cfg.Tracing))
	}

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/", s.handleRoot).Methods("GET")

	if s.cfg.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(s.cfg.Gatherer)).Methods("GET")
	}

	return r
}

// Run serves until ctx is cancelled, refreshing cached status in the background
func (s *Server) Run(ctx context.Context) error {
	go s.refreshLoop(ctx)

	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", s.cfg.Port),
		Handler: s.Router(),
	}

	s.logger.Info("Health server listening", map[string]interface{}{
		"port": s.cfg.Port,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("health server failed: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the HTTP server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

// refresh re-evaluates the environment and agent process checks
func (s *Server) refresh() {
	envOK := len(envcheck.Missing()) == 0

	var agentUp bool
	var agentPID int
	if s.cfg.AgentProbe != nil {
		agentUp, agentPID = s.cfg.AgentProbe()
	} else {
		agentUp, agentPID = scanForAgent(s.cfg.AgentCommand)
	}

	s.mu.Lock()
	s.envOK = envOK
	s.agentUp = agentUp
	s.agentPID = agentPID
	s.mu.Unlock()
}

// scanForAgent walks the process table looking for the agent worker command
func scanForAgent(command string) (bool, int) {
	procs, err := process.Processes()
	if err != nil {
		return false, 0
	}

	self := os.Getpid()
	for _, p := range procs {
		if int(p.Pid) == self {
			continue
		}
		cmdline, err := p.Cmdline()
		if err != nil {
			continue
		}
		if strings.Contains(cmdline, command) {
			return true, int(p.Pid)
		}
	}
	return false, 0
}

type healthChecks struct {
	EnvironmentVariables bool `json:"environment_variables"`
	AgentProcess         bool `json:"agent_process"`
}

type healthResponse struct {
	Status    string       `json:"status"`
	Timestamp float64      `json:"timestamp"`
	Checks    healthChecks `json:"checks"`
	Service   string       `json:"service"`
	Version   string       `json:"version"`
	Missing   []string     `json:"missing_env_vars,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Env is re-checked on every request, the platform probe must see
	// configuration fixes without waiting for the refresh loop
	missing := envcheck.Missing()

	s.mu.RLock()
	agentUp := s.agentUp
	s.mu.RUnlock()

	resp := healthResponse{
		Status:    "healthy",
		Timestamp: float64(time.Now().UnixMilli()) / 1000.0,
		Checks: healthChecks{
			EnvironmentVariables: len(missing) == 0,
			AgentProcess:         agentUp,
		},
		Service: ServiceName,
		Version: Version,
	}

	code := http.StatusOK
	if len(missing) > 0 {
		resp.Status = "unhealthy"
		resp.Missing = missing
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, resp)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":      "LiveKit MCP Agent",
		"status":       "running",
		"description":  "Voice-interactive agent with MCP tool integration",
		"health_check": "/health",
	})
}

type statusResponse struct {
	Service       string            `json:"service"`
	Version       string            `json:"version"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Environment   []envcheck.Var    `json:"environment"`
	AgentRunning  bool              `json:"agent_running"`
	AgentPID      int               `json:"agent_pid,omitempty"`
	Memory        map[string]uint64 `json:"memory,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	agentUp := s.agentUp
	agentPID := s.agentPID
	s.mu.RUnlock()

	resp := statusResponse{
		Service:       ServiceName,
		Version:       Version,
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		Environment:   envcheck.Report(),
		AgentRunning:  agentUp,
		AgentPID:      agentPID,
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		resp.Memory = map[string]uint64{
			"total_bytes": vm.Total,
			"used_bytes":  vm.Used,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
