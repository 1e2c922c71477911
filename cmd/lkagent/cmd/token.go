package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/klogins-hash/livekit-mcp-agent/internal/livekit"
)

var (
	tokenRoom     string
	tokenIdentity string
	tokenName     string
	tokenTTL      time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a room access token and join link",
	Long: `Generates a LiveKit access token for joining a room and prints a
meet.livekit.io link for testing the agent from a browser.`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenRoom, "room", "mcp-test-room", "room name")
	tokenCmd.Flags().StringVar(&tokenIdentity, "identity", "", "participant identity (default: random test user)")
	tokenCmd.Flags().StringVar(&tokenName, "name", "Test User", "participant display name")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", livekit.DefaultTokenTTL, "token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	url, key, secret, err := livekitCredentials()
	if err != nil {
		return err
	}

	identity := tokenIdentity
	if identity == "" {
		identity = "test-user-" + uuid.NewString()[:8]
	}

	jwt, err := livekit.NewAccessToken(key, secret).
		WithIdentity(identity).
		WithName(tokenName).
		WithTTL(tokenTTL).
		WithGrants(livekit.VideoGrant{
			RoomJoin: true,
			Room:     tokenRoom,
		}).
		ToJWT()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	joinURL := livekit.JoinURL(url, jwt)

	if IsJSONOutput() {
		out, err := json.MarshalIndent(map[string]string{
			"room":     tokenRoom,
			"identity": identity,
			"token":    jwt,
			"join_url": joinURL,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("Room", tokenRoom)
	table.Append("Identity", identity)
	table.Append("TTL", tokenTTL.String())
	table.Append("Join URL", joinURL)
	table.Render()

	fmt.Println()
	fmt.Println("Open the join URL in a browser and start talking to the agent.")
	return nil
}
