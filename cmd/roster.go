package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/buyermatch/internal/model"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Inspect and manage the buyer roster",
}

var rosterStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show roster size and purchase history coverage",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		buyers, err := env.Store.LoadActiveBuyersWithHistory(cmd.Context())
		if err != nil {
			return err
		}

		withHistory := 0
		purchases := 0
		active := 0
		for _, b := range buyers {
			if len(b.Purchases) > 0 {
				withHistory++
			}
			purchases += len(b.Purchases)
			if b.RecentPurchaseCount >= 3 {
				active++
			}
		}

		fmt.Printf("Active buyers:      %d\n", len(buyers))
		fmt.Printf("  with history:     %d\n", withHistory)
		fmt.Printf("  active investors: %d\n", active)
		fmt.Printf("Total purchases:    %d\n", purchases)
		return nil
	},
}

var rosterRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force a roster cache reload from storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		start := time.Now()
		n, err := env.Roster.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Reloaded %d buyers in %s\n", n, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var rosterTopCmd = &cobra.Command{
	Use:   "top",
	Short: "List the most active buyers by recent purchase count",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		buyers, err := env.Store.LoadActiveBuyers(cmd.Context())
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		for i, b := range topByRecentCount(buyers, limit) {
			fmt.Printf("%3d. %-40s %d recent purchases\n", i+1, b.CompanyName, b.RecentPurchaseCount)
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the storage schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Schema is up to date.")
		return nil
	},
}

// topByRecentCount returns the first limit buyers ordered by descending
// recent purchase count, ties keeping input order.
func topByRecentCount(buyers []model.Buyer, limit int) []model.Buyer {
	sorted := make([]model.Buyer, len(buyers))
	copy(sorted, buyers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RecentPurchaseCount > sorted[j].RecentPurchaseCount
	})
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted
}

func init() {
	rosterTopCmd.Flags().Int("limit", 20, "number of buyers to list")
	rosterCmd.AddCommand(rosterStatusCmd, rosterRefreshCmd, rosterTopCmd)
	rootCmd.AddCommand(rosterCmd, migrateCmd)
}
