// Package sessions implements the sessions subcommand: list, merge and
// delete stored scanning sessions.
package sessions

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tallycam/tallycam-go/internal/conf"
	"github.com/tallycam/tallycam-go/internal/inventory"
	"github.com/tallycam/tallycam-go/internal/session"
	"github.com/tallycam/tallycam-go/internal/thumbnail"
)

// Command creates the sessions command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored scanning sessions",
	}

	cmd.AddCommand(
		listCommand(settings),
		mergeCommand(settings),
		deleteCommand(settings),
	)
	return cmd
}

func openStore(settings *conf.Settings) (*session.Store, error) {
	return session.NewStore(conf.SessionSettings{
		Path:       settings.ResolvePath(settings.Session.Path),
		PhotoPath:  settings.ResolvePath(settings.Session.PhotoPath),
		FlushEvery: settings.Session.FlushEvery,
	}, thumbnail.New(settings.Thumbnail), nil)
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}

			sessions := store.List()
			if len(sessions) == 0 {
				fmt.Println("No sessions stored.")
				return nil
			}
			for _, s := range sessions {
				state := "closed"
				switch {
				case s.Active():
					state = "active"
				case s.IsMerged:
					state = "merged"
				}
				fmt.Printf("%s  %-20s  %s  items=%d  %s\n",
					s.ID, s.Name, s.StartedAt.Format("2006-01-02 15:04"), len(s.Items), state)
			}
			return nil
		},
	}
}

func mergeCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "merge [session-id]",
		Short: "Merge a closed session into the inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			inv, err := inventory.NewStore(conf.InventorySettings{
				Path:      settings.ResolvePath(settings.Inventory.Path),
				PhotoPath: settings.ResolvePath(settings.Inventory.PhotoPath),
			}, nil)
			if err != nil {
				return err
			}

			created, merged, err := store.MergeSession(args[0], inv)
			if err != nil {
				return err
			}
			fmt.Printf("Merged session %s: %d created, %d updated\n", args[0], created, merged)
			return nil
		},
	}
}

func deleteCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [session-id]",
		Short: "Delete a session and its unshared photos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			if err := store.DeleteSession(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted session %s\n", args[0])
			return nil
		},
	}
}
