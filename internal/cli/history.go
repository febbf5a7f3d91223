package cli

import (
	"encoding/json"
	"fmt"

	"github.com/jaa/batchdl/internal/exitcode"
	"github.com/jaa/batchdl/internal/history"
	"github.com/spf13/cobra"
)

func newHistoryCommand(app *AppContext) *cobra.Command {
	limit := 20

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently completed downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			store := history.NewStore(mustExpand(cfg.History.File), cfg.History.Limit)
			records, err := store.Recent(limit)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			if app.Opts.JSON {
				encoder := json.NewEncoder(app.IO.Out)
				for _, record := range records {
					if err := encoder.Encode(record); err != nil {
						return withExitCode(exitcode.RuntimeFailure, err)
					}
				}
				return nil
			}

			if len(records) == 0 {
				fmt.Fprintln(app.IO.Out, "No downloads recorded yet.")
				return nil
			}

			for _, record := range records {
				fmt.Fprintf(app.IO.Out, "%s  %-6s %s\n",
					styled(app, mutedStyle, record.CreatedAt.Format("2006-01-02 15:04")),
					record.Format,
					record.Title)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	return cmd
}
