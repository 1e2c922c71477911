package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/klogins-hash/livekit-mcp-agent/pkg/logging"
)

var (
	cfgFile      string
	outputFormat string
	logLevel     string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "lkagent",
	Short: "Supervisor and operations toolkit for a LiveKit voice agent deployment",
	Long: `lkagent keeps the health-report server and the voice agent worker alive
inside one container, and bundles the operational tooling around that
deployment: LiveKit room management, access tokens, service smoke checks,
and diagnostics.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.lkagent/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".lkagent"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	viper.BindEnv("livekit_url", "LIVEKIT_URL")
	viper.BindEnv("livekit_api_key", "LIVEKIT_API_KEY")
	viper.BindEnv("livekit_api_secret", "LIVEKIT_API_SECRET")
	viper.BindEnv("mcp_url", "MC3_MCP_URL")
	viper.BindEnv("health.port", "PORT")

	viper.SetDefault("supervisor.interval", "30s")
	viper.SetDefault("supervisor.settle_delay", "2s")
	viper.SetDefault("supervisor.agent_command", "python3 agent.py start")
	viper.SetDefault("supervisor.metrics_port", 9090)
	viper.SetDefault("health.port", 8080)
	viper.SetDefault("profile", "default")

	// Missing config file is fine, env and defaults cover everything
	viper.ReadInConfig()
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

// newLogger builds the component logger, falling back to stdout-only when the
// log directory is not writable
func newLogger(component string) *logging.Logger {
	level := logging.ParseLevel(logLevel)
	logger, err := logging.NewFileLogger(component, level, false)
	if err != nil {
		return logging.NewLogger(level, false)
	}
	return logger
}

// livekitCredentials pulls the LiveKit connection settings from config/env
func livekitCredentials() (url, key, secret string, err error) {
	url = viper.GetString("livekit_url")
	key = viper.GetString("livekit_api_key")
	secret = viper.GetString("livekit_api_secret")
	if url == "" || key == "" || secret == "" {
		return "", "", "", fmt.Errorf("LIVEKIT_URL, LIVEKIT_API_KEY and LIVEKIT_API_SECRET must be set")
	}
	return url, key, secret, nil
}
