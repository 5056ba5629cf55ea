package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var leaderboardSession string

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show persisted backend standings",
	Long:  "Aggregates every persisted score delta into a per-backend leaderboard. Scoped to one session with --session, otherwise spans all sessions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("leaderboard requires a store (set store.driver)")
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		entries, err := st.Leaderboard(ctx, leaderboardSession)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

func init() {
	leaderboardCmd.Flags().StringVar(&leaderboardSession, "session", "", "limit to one session id")
	rootCmd.AddCommand(leaderboardCmd)
}
