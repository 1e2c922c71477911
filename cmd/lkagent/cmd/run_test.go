package cmd

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func TestHealthCommandDefaultsToOwnBinary(t *testing.T) {
	argv, err := healthCommand("")
	if err != nil {
		t.Fatalf("healthCommand failed: %v", err)
	}

	self, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable failed: %v", err)
	}
	if len(argv) != 2 || argv[0] != self || argv[1] != "health" {
		t.Errorf("default argv should be the binary path and subcommand, got %v", argv)
	}
}

func TestHealthCommandOverrideIsFieldSplit(t *testing.T) {
	argv, err := healthCommand("python3 health_check.py --fast")
	if err != nil {
		t.Fatalf("healthCommand failed: %v", err)
	}
	want := []string{"python3", "health_check.py", "--fast"}
	if len(argv) != len(want) {
		t.Fatalf("expected %d argv elements, got %v", len(want), argv)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}

// An explicit zero on the command line must win over the config default.
func TestDurationSettingExplicitZero(t *testing.T) {
	viper.Set("test.settle_delay", "2s")
	t.Cleanup(func() { viper.Set("test.settle_delay", nil) })

	c := &cobra.Command{}
	var settle time.Duration
	c.Flags().DurationVar(&settle, "settle", 0, "")

	if err := c.Flags().Parse([]string{"--settle", "0s"}); err != nil {
		t.Fatalf("flag parse failed: %v", err)
	}

	if got := durationSetting(c, "settle", settle, "test.settle_delay"); got != 0 {
		t.Errorf("explicit --settle 0 should resolve to 0, got %s", got)
	}
}

func TestDurationSettingFallsBackToConfig(t *testing.T) {
	viper.Set("test.interval", "30s")
	t.Cleanup(func() { viper.Set("test.interval", nil) })

	c := &cobra.Command{}
	var interval time.Duration
	c.Flags().DurationVar(&interval, "interval", 0, "")

	if got := durationSetting(c, "interval", interval, "test.interval"); got != 30*time.Second {
		t.Errorf("unset flag should fall back to config, got %s", got)
	}
}
