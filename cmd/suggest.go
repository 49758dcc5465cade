package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tangle/cmd/config"
	"tangle/pkg/gateway"
)

func NewSuggestCmd(app **config.App) *cobra.Command {
	var wait bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "suggest [note-id]",
		Short: "Request AI tag suggestions for a note",
		Long: `Submit a tag-suggestion job for a note and optionally poll until it
finishes. The suggestion service enforces a cooldown between jobs for the
same note.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := *app
			ctx := cmd.Context()

			jobID, err := a.GW.SuggestTags(ctx, args[0])
			if errors.Is(err, gateway.ErrCooldown) {
				fmt.Println("A suggestion job ran recently; try again later.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("submit suggestion job: %w", err)
			}
			fmt.Printf("Submitted job %s\n", jobID)

			if !wait {
				return nil
			}

			deadline := time.Now().Add(timeout)
			for time.Now().Before(deadline) {
				result, err := a.GW.SuggestionStatus(ctx, jobID)
				if err != nil {
					return fmt.Errorf("poll suggestion job: %w", err)
				}
				switch result.State {
				case gateway.JobCompleted:
					if len(result.Tags) == 0 {
						fmt.Println("No suggestions.")
						return nil
					}
					for _, tag := range result.Tags {
						fmt.Printf("  %s (%.0f%%)\n", tag.Name, tag.Confidence*100)
					}
					return nil
				case gateway.JobFailed:
					return fmt.Errorf("suggestion job failed: %s", result.Error)
				}
				time.Sleep(2 * time.Second)
			}
			return fmt.Errorf("suggestion job still pending after %s", timeout)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the job finishes")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "How long to poll with --wait")

	return cmd
}
