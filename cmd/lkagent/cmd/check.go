package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/klogins-hash/livekit-mcp-agent/internal/checks"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Smoke-test the configured external services",
	Long: `Issues one minimal real request against each configured service:
LiveKit (list rooms), OpenAI (tiny chat completion), Deepgram (list
projects), and the MCP server (initialize) when configured.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	results := checks.New().All(context.Background())

	if IsJSONOutput() {
		out, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Service", "Status", "Detail", "Duration")
		for _, res := range results {
			status := "OK"
			if !res.OK {
				status = "FAIL"
			}
			table.Append(
				res.Name,
				status,
				res.Detail,
				fmt.Sprintf("%.2fs", float64(res.DurationMS)/1000),
			)
		}
		table.Render()
	}

	failed := 0
	for _, res := range results {
		if !res.OK {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(results))
	}
	return nil
}
