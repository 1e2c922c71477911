package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/klogins-hash/livekit-mcp-agent/internal/envcheck"
	"github.com/klogins-hash/livekit-mcp-agent/internal/supervisor"
	"github.com/klogins-hash/livekit-mcp-agent/pkg/metrics"
	"github.com/klogins-hash/livekit-mcp-agent/pkg/shutdown"
)

var (
	runInterval    time.Duration
	runSettle      time.Duration
	runAgentCmd    string
	runHealthCmd   string
	runMetricsPort int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Supervise the health server and agent worker",
	Long: `Launches the health-report server and the agent worker as independent
child processes and keeps both alive: every probe interval, anything found
dead is relaunched with its original command. There is no backoff and no
restart ceiling; a child that crashes on every launch is relaunched every
interval until the supervisor itself is terminated.`,
	RunE: runSupervisor,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "liveness probe interval (default from config, 30s)")
	runCmd.Flags().DurationVar(&runSettle, "settle", 0, "delay after starting the health server (default from config, 2s)")
	runCmd.Flags().StringVar(&runAgentCmd, "agent-cmd", "", "agent worker command line (default from config)")
	runCmd.Flags().StringVar(&runHealthCmd, "health-cmd", "", "health server command line (default: this binary's health subcommand)")
	runCmd.Flags().IntVar(&runMetricsPort, "metrics-port", -1, "supervisor metrics port, 0 disables (default from config, 9090)")
}

func runSupervisor(cmd *cobra.Command, args []string) error {
	// Required vars are validated before anything is launched; a broken
	// environment exits non-zero here rather than crash-looping children
	if err := envcheck.Check(); err != nil {
		return err
	}

	logger := newLogger("supervisor")
	defer logger.Close()

	interval := durationSetting(cmd, "interval", runInterval, "supervisor.interval")
	if interval <= 0 {
		return fmt.Errorf("probe interval must be positive, got %s", interval)
	}
	settle := durationSetting(cmd, "settle", runSettle, "supervisor.settle_delay")
	if settle < 0 {
		return fmt.Errorf("settle delay cannot be negative, got %s", settle)
	}
	agentCmd := runAgentCmd
	if agentCmd == "" {
		agentCmd = viper.GetString("supervisor.agent_command")
	}
	metricsPort := runMetricsPort
	if metricsPort < 0 {
		metricsPort = viper.GetInt("supervisor.metrics_port")
	}

	healthArgv, err := healthCommand(runHealthCmd)
	if err != nil {
		return err
	}

	specs := []supervisor.Spec{
		{Name: "health", Command: healthArgv},
		{Name: "agent", Command: strings.Fields(agentCmd)},
	}

	registry := prometheus.NewRegistry()
	supMetrics := metrics.NewSupervisorMetrics(registry)

	sup := supervisor.New(specs,
		supervisor.WithInterval(interval),
		supervisor.WithSettleDelay(settle),
		supervisor.WithLogger(logger),
		supervisor.WithMetrics(supMetrics),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Starting supervisor", map[string]interface{}{
		"interval": interval.String(),
		"settle":   settle.String(),
		"agent":    agentCmd,
	})

	if err := sup.Start(ctx); err != nil {
		return err
	}

	sd := shutdown.New(30 * time.Second)
	sd.Register(sup.Stop)

	if metricsPort > 0 {
		metricsSrv := &http.Server{
			Addr:    fmt.Sprintf("0.0.0.0:%d", metricsPort),
			Handler: metrics.Handler(registry),
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", map[string]interface{}{"error": err.Error()})
			}
		}()
		sd.Register(shutdown.StopHTTPServer(metricsSrv, "metrics"))
		logger.Info("Supervisor metrics listening", map[string]interface{}{"port": metricsPort})
	}

	go sup.Run(ctx)

	sd.Wait()
	cancel()
	sd.Shutdown()
	return nil
}

// durationSetting prefers an explicitly set flag, even one set to zero, over
// the config value
func durationSetting(cmd *cobra.Command, flag string, flagValue time.Duration, key string) time.Duration {
	if cmd.Flags().Changed(flag) {
		return flagValue
	}
	return viper.GetDuration(key)
}

// healthCommand builds the argv for the health child. The default invokes this
// binary's own health subcommand; the binary path stays a single argv element
// so install directories with spaces survive.
func healthCommand(override string) ([]string, error) {
	if override != "" {
		return strings.Fields(override), nil
	}
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve own binary: %w", err)
	}
	return []string{self, "health"}, nil
}
