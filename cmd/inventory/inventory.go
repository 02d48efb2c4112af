// Package inventory implements the inventory subcommand: list, search,
// summarize and deduplicate the stored inventory.
package inventory

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tallycam/tallycam-go/internal/conf"
	"github.com/tallycam/tallycam-go/internal/inventory"
)

// Command creates the inventory command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Query and maintain the inventory",
	}

	cmd.AddCommand(
		listCommand(settings),
		summaryCommand(settings),
		dedupeCommand(settings),
	)
	return cmd
}

func openStore(settings *conf.Settings) (*inventory.Store, error) {
	return inventory.NewStore(conf.InventorySettings{
		Path:      settings.ResolvePath(settings.Inventory.Path),
		PhotoPath: settings.ResolvePath(settings.Inventory.PhotoPath),
	}, nil)
}

func listCommand(settings *conf.Settings) *cobra.Command {
	var room, category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List inventory items",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}

			items := store.List(inventory.Filter{Room: room, Category: category})
			if len(items) == 0 {
				fmt.Println("No matching items.")
				return nil
			}
			for _, it := range items {
				line := it.Name
				if it.Room != "" {
					line += "  [" + it.Room + "]"
				}
				if it.Category != "" {
					line += "  (" + it.Category + ")"
				}
				if it.EstimatedValue > 0 {
					line += fmt.Sprintf("  ~%.2f", it.EstimatedValue)
				}
				fmt.Printf("%s  %s\n", it.ID, line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&room, "room", "", "Filter by room")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	return cmd
}

func summaryCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show inventory totals and histograms",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}

			sum := store.Summarize()
			fmt.Printf("Items: %d\nEstimated value: %.2f\n", sum.TotalItems, sum.TotalValue)
			printHistogram("By room", sum.ByRoom)
			printHistogram("By category", sum.ByCategory)
			if len(sum.Recent) > 0 {
				fmt.Println("Recent:")
				for _, it := range sum.Recent {
					fmt.Printf("  %s (%s)\n", it.Name, it.CreatedAt.Format("2006-01-02"))
				}
			}
			return nil
		},
	}
}

func printHistogram(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println(title + ":")
	for _, k := range keys {
		fmt.Printf("  %-24s %d\n", k, counts[k])
	}
}

func dedupeCommand(settings *conf.Settings) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Find duplicate item groups and optionally merge them",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}

			groups := store.FindDuplicateGroups()
			if len(groups) == 0 {
				fmt.Println("No duplicate groups found.")
				return nil
			}

			for i, group := range groups {
				fmt.Printf("Group %d:\n", i+1)
				for _, it := range group {
					fmt.Printf("  %s  %s\n", it.ID, it.Name)
				}
				if !apply {
					continue
				}

				ids := make([]string, len(group))
				for j, it := range group {
					ids[j] = it.ID
				}
				keeper, err := store.MergeGroup(ids, "")
				if err != nil {
					return err
				}
				fmt.Printf("  merged into %s (%s)\n", keeper.ID, keeper.Name)
			}
			if !apply {
				fmt.Println("Re-run with --apply to merge each group into its best representative.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Merge each group instead of only listing")
	return cmd
}
