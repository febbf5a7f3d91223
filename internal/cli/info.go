package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"

	"github.com/jaa/batchdl/internal/exitcode"
	"github.com/spf13/cobra"
)

func newInfoCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info <url>",
		Short: "Inspect a URL without downloading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
			defer stop()

			info, err := newClient(cfg).FetchInfo(ctx, args[0])
			if err != nil {
				return withExitCode(exitcode.ServerUnreachable, err)
			}

			if app.Opts.JSON {
				encoder := json.NewEncoder(app.IO.Out)
				return encoder.Encode(info)
			}

			fmt.Fprintln(app.IO.Out, styled(app, titleStyle, info.Title))
			if info.Uploader != "" {
				fmt.Fprintf(app.IO.Out, "  uploader: %s\n", info.Uploader)
			}
			if info.IsPlaylist() {
				fmt.Fprintf(app.IO.Out, "  playlist with %d entries\n", info.Count)
				for i, entry := range info.Entries {
					fmt.Fprintf(app.IO.Out, "  %3d. %s (%s)\n", i+1, entry.Title, formatDuration(entry.Duration))
				}
			} else {
				fmt.Fprintf(app.IO.Out, "  duration: %s\n", formatDuration(info.Duration))
			}
			return nil
		},
	}
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "unknown"
	}
	if seconds >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
