package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var historySession string

var historyCmd = &cobra.Command{
	Use:   "history <backend-id>",
	Short: "Show one backend's per-round score deltas",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("history requires a store (set store.driver)")
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		deltas, err := st.History(ctx, historySession, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(deltas)
	},
}

var roundsLimit int
var roundsSession string

var roundsCmd = &cobra.Command{
	Use:   "rounds",
	Short: "List recently persisted rounds",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("rounds requires a store (set store.driver)")
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		recs, err := st.ListRounds(ctx, roundsSession, roundsLimit)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historySession, "session", "", "limit to one session id")
	roundsCmd.Flags().StringVar(&roundsSession, "session", "", "limit to one session id")
	roundsCmd.Flags().IntVar(&roundsLimit, "limit", 20, "max rounds to list")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(roundsCmd)
}
