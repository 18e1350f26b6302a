package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/supportdesk/internal/knowledge"
)

func kbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect the knowledge base",
	}
	cmd.AddCommand(kbMatchCmd())
	return cmd
}

func kbMatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match <text>",
		Short: "Show the best knowledge-base match for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			kb, err := knowledge.Load(cfg.Knowledge.Path)
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			m, ok, err := kb.Best(query)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(out, "knowledge base is empty")
				return nil
			}

			verdict := "below threshold, completion would answer"
			if m.Score >= float64(cfg.Knowledge.Threshold) {
				verdict = "match"
			}
			fmt.Fprintf(out, "question: %s\nscore:    %.1f (threshold %d, %s)\nanswer:   %s\n",
				m.Question, m.Score, cfg.Knowledge.Threshold, verdict, m.Answer)
			return nil
		},
	}
}
