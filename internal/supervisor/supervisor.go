package supervisor

// If the supervisor crashes, the container runtime restarts the whole pod.
// Children are never diagnosed, only relaunched. Any death is treated the same.

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/klogins-hash/livekit-mcp-agent/pkg/logging"
	"github.com/klogins-hash/livekit-mcp-agent/pkg/metrics"
)

const (
	// DefaultInterval is how long the loop sleeps between liveness probes
	DefaultInterval = 30 * time.Second

	// DefaultSettleDelay lets the first child bind its port before anything else happens
	DefaultSettleDelay = 2 * time.Second

	// stopTimeout bounds how long Stop waits after SIGTERM before SIGKILL
	stopTimeout = 5 * time.Second
)

// Spec describes one supervised process
type Spec struct {
	Name    string
	Command []string
}

// instance is one running launch of a supervised process
type instance struct {
	cmd      *exec.Cmd
	pid      int
	done     chan struct{}
	exitCode int
}

// alive reports whether the instance has not yet exited
func (in *instance) alive() bool {
	select {
	case <-in.done:
		return false
	default:
		return true
	}
}

// process is the supervisor's record for one supervised unit:
// its launch command and the handle of the current instance
type process struct {
	spec     Spec
	inst     *instance
	restarts int
}

// Supervisor keeps a fixed set of child processes alive indefinitely
type Supervisor struct {
	mu       sync.Mutex
	procs    []*process
	interval time.Duration
	settle   time.Duration
	logger   *logging.Logger
	metrics  *metrics.SupervisorMetrics
	output   io.Writer
}

// Option configures a Supervisor
type Option func(*Supervisor)

// WithInterval sets the probe interval
func WithInterval(d time.Duration) Option {
	return func(s *Supervisor) { s.interval = d }
}

// WithSettleDelay sets the delay after launching the first process
func WithSettleDelay(d time.Duration) Option {
	return func(s *Supervisor) { s.settle = d }
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// WithMetrics attaches restart/liveness metrics
func WithMetrics(m *metrics.SupervisorMetrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// WithOutput sets where child stdout/stderr is forwarded
func WithOutput(w io.Writer) Option {
	return func(s *Supervisor) { s.output = w }
}

// New creates a supervisor for the given process specs
func New(specs []Spec, opts ...Option) *Supervisor {
	s := &Supervisor{
		interval: DefaultInterval,
		settle:   DefaultSettleDelay,
		logger:   logging.NewLogger(logging.INFO, false),
		output:   os.Stdout,
	}
	for _, spec := range specs {
		s.procs = append(s.procs, &process{spec: spec})
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches all supervised processes. The first launch is followed by the
// settle delay so a listening child can bind its port before the next starts.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.procs {
		if err := s.launch(p); err != nil {
			return fmt.Errorf("failed to start %s: %w", p.spec.Name, err)
		}
		s.logger.Info("Process started", map[string]interface{}{
			"process": p.spec.Name,
			"pid":     p.inst.pid,
		})

		if i == 0 && len(s.procs) > 1 {
			select {
			case <-time.After(s.settle):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// Run is the supervision loop: probe every interval, relaunch anything dead,
// forever. There is deliberately no backoff and no restart ceiling; a child
// that dies on every launch is relaunched every interval until the supervisor
// itself is terminated.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.probeAll()
		}
	}
}

// probeAll checks each process once and relaunches the dead ones
func (s *Supervisor) probeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.procs {
		if p.inst != nil && p.inst.alive() {
			s.setUp(p.spec.Name, true)
			continue
		}

		s.setUp(p.spec.Name, false)

		fields := map[string]interface{}{"process": p.spec.Name}
		if p.inst != nil {
			fields["pid"] = p.inst.pid
			fields["exit_code"] = p.inst.exitCode
		}
		s.logger.Warn("Process died, relaunching", fields)

		if err := s.launch(p); err != nil {
			s.logger.Error("Relaunch failed", map[string]interface{}{
				"process": p.spec.Name,
				"error":   err.Error(),
			})
			continue
		}

		p.restarts++
		if s.metrics != nil {
			s.metrics.Restarts.WithLabelValues(p.spec.Name).Inc()
		}
		s.logger.Info("Process relaunched", map[string]interface{}{
			"process":  p.spec.Name,
			"pid":      p.inst.pid,
			"restarts": p.restarts,
		})
	}
}

func (s *Supervisor) setUp(name string, up bool) {
	if s.metrics == nil {
		return
	}
	v := 0.0
	if up {
		v = 1.0
	}
	s.metrics.ProcessUp.WithLabelValues(name).Set(v)
}

// launch starts a fresh instance and overwrites the process handle
func (s *Supervisor) launch(p *process) error {
	if len(p.spec.Command) == 0 {
		return fmt.Errorf("no command configured")
	}
	cmd := exec.Command(p.spec.Command[0], p.spec.Command[1:]...)

	// Own process group so a supervisor crash leaves the child running
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}

	prefix := newPrefixWriter(s.output, p.spec.Name)
	cmd.Stdout = prefix
	cmd.Stderr = prefix

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	inst := &instance{
		cmd:  cmd,
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		if exitErr, ok := err.(*exec.ExitError); ok {
			inst.exitCode = exitErr.ExitCode()
		}
		close(inst.done)
	}()

	p.inst = inst
	return nil
}

// Stop terminates all children: SIGTERM, bounded wait, then SIGKILL
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.procs {
		if p.inst == nil || !p.inst.alive() {
			continue
		}

		pid := p.inst.pid
		syscall.Kill(-pid, syscall.SIGTERM)

		select {
		case <-p.inst.done:
			s.logger.Info("Process terminated", map[string]interface{}{"process": p.spec.Name})
		case <-time.After(stopTimeout):
			syscall.Kill(-pid, syscall.SIGKILL)
			s.logger.Warn("Process killed", map[string]interface{}{"process": p.spec.Name})
		case <-ctx.Done():
			syscall.Kill(-pid, syscall.SIGKILL)
			return ctx.Err()
		}
	}
	return nil
}

// Status is a point-in-time view of one supervised process
type Status struct {
	Name     string `json:"name"`
	PID      int    `json:"pid"`
	Alive    bool   `json:"alive"`
	Restarts int    `json:"restarts"`
}

// Statuses reports the current state of every supervised process
func (s *Supervisor) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]Status, 0, len(s.procs))
	for _, p := range s.procs {
		st := Status{Name: p.spec.Name, Restarts: p.restarts}
		if p.inst != nil {
			st.PID = p.inst.pid
			st.Alive = p.inst.alive()
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// prefixWriter forwards child output line by line with a "[NAME]" prefix
type prefixWriter struct {
	mu     sync.Mutex
	out    io.Writer
	prefix string
	buf    []byte
}

func newPrefixWriter(out io.Writer, name string) *prefixWriter {
	return &prefixWriter{out: out, prefix: "[" + name + "] "}
}

func (w *prefixWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := w.buf[:i+1]
		if _, err := io.WriteString(w.out, w.prefix+string(line)); err != nil {
			return len(p), err
		}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}
