package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/quorum/internal/model"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive consensus session",
	Long:  "Reads questions from stdin, runs one round per question, and prints each backend's answer, its score delta, and the running leaderboard. Type 'exit' to finish.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initSessionEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		fmt.Printf("session %s — %d backends. Type a question, or 'exit' to quit.\n",
			env.Session.ID, len(cfg.Backends))

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("question> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "exit" || line == "quit" {
				break
			}

			summary, err := env.Session.SubmitQuestion(ctx, line)
			if err != nil {
				if ctx.Err() != nil {
					break
				}
				fmt.Fprintf(os.Stderr, "round failed: %v\n", err)
				continue
			}
			printRound(summary)
		}
		if err := scanner.Err(); err != nil {
			return eris.Wrap(err, "read stdin")
		}

		fmt.Printf("\nfinal standings after %d rounds:\n", env.Session.Rounds())
		printLeaderboard(env.Session.Leaderboard())
		return nil
	},
}

func printRound(summary *model.RoundSummary) {
	fmt.Printf("\nround %d\n", summary.Round)
	deltas := make(map[string]model.ScoreDelta, len(summary.Deltas))
	for _, d := range summary.Deltas {
		deltas[d.BackendID] = d
	}
	for _, o := range summary.Outcomes {
		d := deltas[o.BackendID]
		if o.Success() {
			fmt.Printf("  %-12s %+.2f (%s)  %s\n", o.BackendID, d.Delta, d.Rationale, truncate(o.Response.Text, 80))
		} else {
			fmt.Printf("  %-12s %+.2f (%s)  [%s: %s]\n", o.BackendID, d.Delta, d.Rationale, o.Failure.Kind, o.Failure.Message)
		}
	}
	fmt.Println("\nleaderboard:")
	printLeaderboard(summary.Leaderboard)
}

func printLeaderboard(entries []model.ReputationEntry) {
	for i, e := range entries {
		fmt.Printf("  %d. %-12s %+.2f  (%d rounds, %d failed)\n",
			i+1, e.BackendID, e.Score, e.Rounds, e.FailedRounds)
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func init() {
	rootCmd.AddCommand(replCmd)
}
