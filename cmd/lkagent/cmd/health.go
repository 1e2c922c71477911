package cmd

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/klogins-hash/livekit-mcp-agent/internal/healthsrv"
	"github.com/klogins-hash/livekit-mcp-agent/pkg/shutdown"
	"github.com/klogins-hash/livekit-mcp-agent/pkg/tracing"
)

var (
	healthPort     int
	healthAgentCmd string
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run the health report server",
	Long: `Serves the platform health endpoints: /health for the orchestrator's
probe, /status for operators, and /metrics for Prometheus. Normally launched
and supervised by "lkagent run", but standalone use works the same way.`,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().IntVar(&healthPort, "port", 0, "listen port (default from PORT env or 8080)")
	healthCmd.Flags().StringVar(&healthAgentCmd, "agent-cmd", "", "command line substring that identifies the agent worker process")
}

func runHealth(cmd *cobra.Command, args []string) error {
	logger := newLogger("health")
	defer logger.Close()

	port := healthPort
	if port == 0 {
		port = viper.GetInt("health.port")
	}
	agentCmd := healthAgentCmd
	if agentCmd == "" {
		agentCmd = viper.GetString("supervisor.agent_command")
	}

	var provider *tracing.Provider
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		var err error
		provider, err = tracing.InitTracer(tracing.Config{
			ServiceName:    healthsrv.ServiceName,
			ServiceVersion: healthsrv.Version,
			Environment:    os.Getenv("DEPLOY_ENV"),
			OTLPEndpoint:   endpoint,
			Enabled:        true,
		})
		if err != nil {
			logger.Warn("Tracing init failed, continuing without", map[string]interface{}{"error": err.Error()})
			provider = nil
		}
	}

	server := healthsrv.New(healthsrv.Config{
		Port:         port,
		AgentCommand: agentCmd,
		Logger:       logger,
		Gatherer:     prometheus.DefaultGatherer,
		Tracing:      provider,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sd := shutdown.New(15 * time.Second)
	sd.Register(server.Shutdown)
	if provider != nil {
		sd.Register(provider.Shutdown)
	}

	// A server that cannot bind must exit non-zero so the supervisor
	// relaunches it instead of babysitting a process that serves nothing
	errCh := make(chan error, 1)
	go func() { errCh <- server.Run(ctx) }()
	go sd.Wait()

	select {
	case err := <-errCh:
		cancel()
		sd.Shutdown()
		return err
	case <-sd.Done():
		cancel()
		sd.Shutdown()
		return nil
	}
}
