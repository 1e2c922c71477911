package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/klogins-hash/livekit-mcp-agent/internal/profile"
	"github.com/klogins-hash/livekit-mcp-agent/pkg/logging"
)

var (
	configProfile string
	configForce   bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  `Commands for generating and inspecting the lkagent configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Writes ~/.lkagent/config.yaml with supervisor defaults and the chosen
agent tuning profile ("default" favors quality, "fast" favors latency).`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	RunE:  runConfigShow,
}

var configLogrotateCmd = &cobra.Command{
	Use:   "logrotate",
	Short: "Print a logrotate config for lkagent log files",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(logging.GenerateLogrotateConfig())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configLogrotateCmd)

	configInitCmd.Flags().StringVar(&configProfile, "profile", "default", "agent tuning profile: default or fast")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
}

// fileConfig is the on-disk shape of ~/.lkagent/config.yaml
type fileConfig struct {
	LogLevel   string `yaml:"log_level"`
	Supervisor struct {
		Interval     string `yaml:"interval"`
		SettleDelay  string `yaml:"settle_delay"`
		AgentCommand string `yaml:"agent_command"`
		MetricsPort  int    `yaml:"metrics_port"`
	} `yaml:"supervisor"`
	Health struct {
		Port int `yaml:"port"`
	} `yaml:"health"`
	AgentProfile profile.Profile `yaml:"agent_profile"`
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	prof, err := profile.ByName(configProfile)
	if err != nil {
		return err
	}

	var cfg fileConfig
	cfg.LogLevel = "info"
	cfg.Supervisor.Interval = "30s"
	cfg.Supervisor.SettleDelay = "2s"
	cfg.Supervisor.AgentCommand = viper.GetString("supervisor.agent_command")
	cfg.Supervisor.MetricsPort = 9090
	cfg.Health.Port = 8080
	cfg.AgentProfile = prof

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to find home directory: %w", err)
	}

	dir := filepath.Join(home, ".lkagent")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Printf("Wrote %s (profile: %s)\n", path, prof.Name)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	prof, err := profile.ByName(viper.GetString("profile"))
	if err != nil {
		prof = profile.Default()
	}

	var cfg fileConfig
	cfg.LogLevel = logLevel
	cfg.Supervisor.Interval = viper.GetDuration("supervisor.interval").String()
	cfg.Supervisor.SettleDelay = viper.GetDuration("supervisor.settle_delay").String()
	cfg.Supervisor.AgentCommand = viper.GetString("supervisor.agent_command")
	cfg.Supervisor.MetricsPort = viper.GetInt("supervisor.metrics_port")
	cfg.Health.Port = viper.GetInt("health.port")
	cfg.AgentProfile = prof

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}
