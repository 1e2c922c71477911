package supervisor

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/klogins-hash/livekit-mcp-agent/pkg/logging"
)

func quietLogger() *logging.Logger {
	l := logging.NewLogger(logging.FATAL, false)
	l.SetOutput(io.Discard)
	return l
}

func testSupervisor(t *testing.T, specs []Spec) *Supervisor {
	t.Helper()
	return New(specs,
		WithInterval(50*time.Millisecond),
		WithSettleDelay(10*time.Millisecond),
		WithLogger(quietLogger()),
		WithOutput(io.Discard),
	)
}

func statusByName(t *testing.T, s *Supervisor, name string) Status {
	t.Helper()
	for _, st := range s.Statuses() {
		if st.Name == name {
			return st
		}
	}
	t.Fatalf("no status for process %q", name)
	return Status{}
}

func TestStartLaunchesAllProcesses(t *testing.T) {
	s := testSupervisor(t, []Spec{
		{Name: "health", Command: []string{"sleep", "60"}},
		{Name: "agent", Command: []string{"sleep", "60"}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer s.Stop(context.Background())

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for _, st := range s.Statuses() {
		if !st.Alive {
			t.Errorf("process %s should be alive after Start", st.Name)
		}
		if st.PID <= 0 {
			t.Errorf("process %s should have a PID, got %d", st.Name, st.PID)
		}
	}
}

// The settle delay must elapse between the first launch and the second, so
// the health server can bind its port before the agent starts.
func TestSettleDelaySeparatesLaunches(t *testing.T) {
	rec := &launchRecorder{seen: make(map[string]time.Time)}
	settle := 200 * time.Millisecond
	s := New([]Spec{
		{Name: "health", Command: []string{"sh", "-c", "echo up; sleep 60"}},
		{Name: "agent", Command: []string{"sh", "-c", "echo up; sleep 60"}},
	},
		WithInterval(time.Second),
		WithSettleDelay(settle),
		WithLogger(quietLogger()),
		WithOutput(rec),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer s.Stop(context.Background())

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !rec.firstSeen("[health]").IsZero() && !rec.firstSeen("[agent]").IsZero() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	healthAt := rec.firstSeen("[health]")
	agentAt := rec.firstSeen("[agent]")
	if healthAt.IsZero() || agentAt.IsZero() {
		t.Fatal("both processes should have produced startup output")
	}
	if agentAt.Before(healthAt) {
		t.Error("health must be launched before agent")
	}
	// Allow scheduling slack, but the bulk of the delay must be there
	if gap := agentAt.Sub(healthAt); gap < settle/2 {
		t.Errorf("agent launched %v after health, want at least %v", gap, settle)
	}
}

// launchRecorder timestamps the first output seen from each prefixed process
type launchRecorder struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func (r *launchRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, prefix := range []string{"[health]", "[agent]"} {
		if _, ok := r.seen[prefix]; !ok && bytes.Contains(p, []byte(prefix)) {
			r.seen[prefix] = time.Now()
		}
	}
	return len(p), nil
}

func (r *launchRecorder) firstSeen(prefix string) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[prefix]
}

// A dead process must be relaunched by the probe that observes its death,
// and the sibling's handle must be left alone.
func TestDeadProcessRelaunchedIndependently(t *testing.T) {
	s := testSupervisor(t, []Spec{
		{Name: "health", Command: []string{"sleep", "60"}},
		{Name: "agent", Command: []string{"sleep", "60"}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer s.Stop(context.Background())

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	go s.Run(ctx)

	healthBefore := statusByName(t, s, "health")
	agentBefore := statusByName(t, s, "agent")

	// Kill health between probes
	if err := syscall.Kill(healthBefore.PID, syscall.SIGKILL); err != nil {
		t.Fatalf("failed to kill health process: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	health := statusByName(t, s, "health")
	agent := statusByName(t, s, "agent")

	if !health.Alive {
		t.Error("health should be alive again after relaunch")
	}
	if health.PID == healthBefore.PID {
		t.Error("health should have a new PID after relaunch")
	}
	if health.Restarts != 1 {
		t.Errorf("health should have exactly 1 restart, got %d", health.Restarts)
	}
	if agent.PID != agentBefore.PID {
		t.Error("agent handle must not change when health dies")
	}
	if agent.Restarts != 0 {
		t.Errorf("agent should have 0 restarts, got %d", agent.Restarts)
	}
}

// With both processes alive, probes must not touch either handle.
func TestHealthyProcessesAreLeftAlone(t *testing.T) {
	s := testSupervisor(t, []Spec{
		{Name: "health", Command: []string{"sleep", "60"}},
		{Name: "agent", Command: []string{"sleep", "60"}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer s.Stop(context.Background())

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	before := s.Statuses()

	go s.Run(ctx)

	// Let at least 5 probe intervals pass
	time.Sleep(300 * time.Millisecond)

	after := s.Statuses()
	for i := range after {
		if after[i].Restarts != 0 {
			t.Errorf("process %s should have 0 restarts, got %d", after[i].Name, after[i].Restarts)
		}
		if after[i].PID != before[i].PID {
			t.Errorf("process %s handle should be unchanged", after[i].Name)
		}
	}
}

// A process that dies on every launch is relaunched every interval, without
// backoff or a restart ceiling, and the loop keeps running. Intentional
// behavior, not a bug.
func TestCrashLoopingProcessNeverStopsTheSupervisor(t *testing.T) {
	s := testSupervisor(t, []Spec{
		{Name: "agent", Command: []string{"true"}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	// Enough time for well over 5 probe cycles
	time.Sleep(500 * time.Millisecond)

	select {
	case err := <-runDone:
		t.Fatalf("supervisor loop exited on its own: %v", err)
	default:
	}

	st := statusByName(t, s, "agent")
	if st.Restarts < 5 {
		t.Errorf("expected at least 5 relaunches of a crash-looping process, got %d", st.Restarts)
	}

	cancel()
	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Error("supervisor loop should exit on context cancellation")
	}
}

func TestRelaunchLogsWhichProcessDied(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.WARN, false)
	logger.SetOutput(&lockedWriter{mu: &mu, w: &buf})

	s := New([]Spec{
		{Name: "agent", Command: []string{"true"}},
		{Name: "health", Command: []string{"sleep", "60"}},
	},
		WithInterval(50*time.Millisecond),
		WithSettleDelay(time.Millisecond),
		WithLogger(logger),
		WithOutput(io.Discard),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer s.Stop(context.Background())

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	go s.Run(ctx)
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	logs := buf.String()
	mu.Unlock()

	if !strings.Contains(logs, "agent") {
		t.Errorf("relaunch log should name the dead process, got: %s", logs)
	}
	if strings.Contains(logs, "health") {
		t.Errorf("healthy process should not appear in relaunch logs, got: %s", logs)
	}
}

func TestLaunchFailureIsRetriedNextProbe(t *testing.T) {
	s := testSupervisor(t, []Spec{
		{Name: "agent", Command: []string{"/nonexistent/binary"}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err == nil {
		t.Fatal("Start should fail for a nonexistent binary")
	}

	// The loop still probes and keeps trying
	go s.Run(ctx)
	time.Sleep(150 * time.Millisecond)

	st := statusByName(t, s, "agent")
	if st.Alive {
		t.Error("process cannot be alive, binary does not exist")
	}
}

func TestPrefixWriter(t *testing.T) {
	var buf bytes.Buffer
	w := newPrefixWriter(&buf, "agent")

	w.Write([]byte("hello\nwor"))
	w.Write([]byte("ld\n"))

	want := "[agent] hello\n[agent] world\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}
