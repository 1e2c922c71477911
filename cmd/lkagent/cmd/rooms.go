package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/klogins-hash/livekit-mcp-agent/internal/livekit"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "Manage LiveKit rooms",
	Long:  `Commands for listing rooms and participants and cleaning up stale agents.`,
}

var roomsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active rooms",
	RunE:  runRoomsList,
}

var roomsParticipantsCmd = &cobra.Command{
	Use:   "participants <room>",
	Short: "List participants of a room",
	Args:  cobra.ExactArgs(1),
	RunE:  runRoomsParticipants,
}

var roomsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove agent participants and delete empty rooms",
	RunE:  runRoomsClean,
}

func init() {
	rootCmd.AddCommand(roomsCmd)
	roomsCmd.AddCommand(roomsListCmd)
	roomsCmd.AddCommand(roomsParticipantsCmd)
	roomsCmd.AddCommand(roomsCleanCmd)
}

func roomsClient() (*livekit.Client, error) {
	url, key, secret, err := livekitCredentials()
	if err != nil {
		return nil, err
	}
	return livekit.NewClient(url, key, secret), nil
}

func runRoomsList(cmd *cobra.Command, args []string) error {
	client, err := roomsClient()
	if err != nil {
		return err
	}

	rooms, err := client.ListRooms(context.Background())
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		out, err := json.MarshalIndent(rooms, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(rooms) == 0 {
		fmt.Println("No active rooms")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Name", "SID", "Participants", "Created")
	for _, room := range rooms {
		created := ""
		if room.CreationTime > 0 {
			created = time.Unix(room.CreationTime, 0).Format(time.RFC3339)
		}
		table.Append(
			room.Name,
			room.SID,
			fmt.Sprintf("%d", room.NumParticipants),
			created,
		)
	}
	table.Render()
	return nil
}

func runRoomsParticipants(cmd *cobra.Command, args []string) error {
	client, err := roomsClient()
	if err != nil {
		return err
	}

	participants, err := client.ListParticipants(context.Background(), args[0])
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		out, err := json.MarshalIndent(participants, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(participants) == 0 {
		fmt.Printf("No participants in %s\n", args[0])
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Identity", "Name", "Kind", "Agent")
	for _, p := range participants {
		agent := "No"
		if p.IsAgent() {
			agent = "Yes"
		}
		table.Append(p.Identity, p.Name, p.Kind, agent)
	}
	table.Render()
	return nil
}

func runRoomsClean(cmd *cobra.Command, args []string) error {
	client, err := roomsClient()
	if err != nil {
		return err
	}

	ctx := context.Background()

	removed, err := client.RemoveAgents(ctx)
	if err != nil {
		return fmt.Errorf("agent cleanup failed: %w", err)
	}
	for _, label := range removed {
		fmt.Printf("Removed agent: %s\n", label)
	}

	deleted, err := client.DeleteEmptyRooms(ctx)
	if err != nil {
		return fmt.Errorf("room cleanup failed: %w", err)
	}
	for _, name := range deleted {
		fmt.Printf("Deleted empty room: %s\n", name)
	}

	fmt.Printf("Cleanup complete: %d agents removed, %d rooms deleted\n", len(removed), len(deleted))
	return nil
}
