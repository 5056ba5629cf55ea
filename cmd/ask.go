package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Run a single consensus round",
	Long:  "Polls every configured backend with the question, scores the answers against each other, and prints the round summary as JSON.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initSessionEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		question := strings.Join(args, " ")
		summary, err := env.Session.SubmitQuestion(ctx, question)
		if err != nil {
			return eris.Wrap(err, "ask")
		}

		zap.L().Info("round complete",
			zap.Int("round", summary.Round),
			zap.String("question_id", summary.QuestionID),
			zap.Int("outcomes", len(summary.Outcomes)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
