package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/klogins-hash/livekit-mcp-agent/internal/diagnose"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Diagnose deployment and connectivity issues",
	Long: `Runs the full diagnostic suite: environment variables (masked),
network reachability of every dependent service, an MCP initialize probe,
and host resource usage. Ends with recommendations for anything that failed.`,
	RunE: runDiagnose,
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	report := diagnose.New().Run(context.Background())

	if IsJSONOutput() {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		printSection("Environment Variables", report.Environment)
		printSection("Network Connectivity", report.Network)
		printSection("MCP Server", report.MCP)
		printSection("System Resources", report.Resources)

		fmt.Println("Recommendations:")
		for _, rec := range report.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}

	if n := report.Failures(); n > 0 {
		return fmt.Errorf("%d diagnostic checks failed", n)
	}
	return nil
}

func printSection(title string, section []diagnose.Check) {
	if len(section) == 0 {
		return
	}

	fmt.Println(title)
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Check", "Status", "Detail")
	for _, c := range section {
		status := "OK"
		if !c.OK {
			status = "FAIL"
		}
		table.Append(c.Name, status, c.Detail)
	}
	table.Render()
	fmt.Println()
}
