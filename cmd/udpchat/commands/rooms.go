package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/agonych/udp-chat/internal/cli/output"
)

var roomsOutput string

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List chat rooms",
	Long: `List the public chat rooms with member counts, ordered by recent
activity.

Examples:
  # List rooms as table
  udpchat rooms

  # List as JSON
  udpchat rooms -o json`,
	RunE: runRooms,
}

func init() {
	roomsCmd.Flags().StringVarP(&roomsOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// roomRow is the CLI view of a room.
type roomRow struct {
	RoomID       string `json:"room_id" yaml:"room_id"`
	Name         string `json:"name" yaml:"name"`
	Members      int64  `json:"members" yaml:"members"`
	LastActiveAt int64  `json:"last_active_at" yaml:"last_active_at"`
}

// roomTable renders rooms as a table.
type roomTable []roomRow

// Headers implements TableRenderer.
func (rt roomTable) Headers() []string {
	return []string{"NAME", "ROOM ID", "MEMBERS", "LAST ACTIVE"}
}

// Rows implements TableRenderer.
func (rt roomTable) Rows() [][]string {
	rows := make([][]string, 0, len(rt))
	for _, r := range rt {
		lastActive := "-"
		if r.LastActiveAt > 0 {
			lastActive = time.Unix(r.LastActiveAt, 0).Format(time.RFC3339)
		}
		rows = append(rows, []string{r.Name, r.RoomID, strconv.FormatInt(r.Members, 10), lastActive})
	}
	return rows
}

func runRooms(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(roomsOutput)
	if err != nil {
		return err
	}

	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	rooms, err := st.ListPublicRooms(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rooms: %w", err)
	}

	table := make(roomTable, 0, len(rooms))
	for _, room := range rooms {
		members, err := st.CountMembers(ctx, room.ID)
		if err != nil {
			return fmt.Errorf("failed to count members of %s: %w", room.Name, err)
		}
		table = append(table, roomRow{
			RoomID:       room.RoomID,
			Name:         room.Name,
			Members:      members,
			LastActiveAt: room.LastActiveAt,
		})
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, table)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, table)
	default:
		if len(table) == 0 {
			fmt.Println("No rooms found.")
			return nil
		}
		return output.PrintTable(os.Stdout, table)
	}
}
