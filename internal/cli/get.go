package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/jaa/batchdl/internal/api"
	"github.com/jaa/batchdl/internal/config"
	"github.com/jaa/batchdl/internal/exitcode"
	"github.com/jaa/batchdl/internal/history"
	"github.com/jaa/batchdl/internal/output"
	"github.com/jaa/batchdl/internal/progress"
	"github.com/spf13/cobra"
)

func newGetCommand(app *AppContext) *cobra.Command {
	var format string
	var quality string
	var outputDir string
	var title string
	var artist string
	var album string
	var subtitles bool
	var retries int

	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Download a single media URL and wait for completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			if format == "" {
				format = cfg.Defaults.Format
			}
			if quality == "" {
				quality = cfg.Defaults.Quality
			}
			if outputDir == "" {
				outputDir = cfg.Defaults.OutputDir
			}
			if !cmd.Flags().Changed("retries") {
				retries = cfg.Defaults.StreamRetries
			}

			dest, err := config.ExpandPath(outputDir)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			client := newClient(cfg)
			emitter := newEmitter(app)

			request := api.JobRequest{
				URL:     args[0],
				Format:  format,
				Quality: quality,
				Metadata: api.Metadata{
					Title:  title,
					Artist: artist,
					Album:  album,
				},
				Subtitles: subtitles,
			}

			ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
			defer stop()

			jobID, err := client.Submit(ctx, request)
			if err != nil {
				return withExitCode(exitcode.ServerUnreachable, fmt.Errorf("submit download: %w", err))
			}
			emitter.Emit(output.Event{
				Level:   output.LevelInfo,
				Event:   output.EventJobSubmitted,
				JobID:   jobID,
				Message: request.URL,
			})

			tracker := &progress.Tracker{
				Subscribe: client.Subscribe,
				Retries:   retries,
				Backoff:   time.Duration(cfg.Defaults.RetryBackoffMS) * time.Millisecond,
				OnUpdate: func(snapshot progress.Snapshot) {
					emitter.Emit(output.Event{
						Level:   output.LevelInfo,
						Event:   output.EventJobProgress,
						JobID:   jobID,
						Message: snapshot.Label,
					})
				},
			}
			outcome := tracker.Track(ctx, jobID, !request.Metadata.Empty())

			if ctx.Err() != nil {
				cancelCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if cancelErr := client.Cancel(cancelCtx, jobID); cancelErr != nil {
					fmt.Fprintln(app.IO.ErrOut, "WARN: cancel job:", cancelErr)
				}
				return withExitCode(exitcode.Interrupted, fmt.Errorf("download interrupted"))
			}

			if !outcome.Succeeded {
				emitter.Emit(output.Event{
					Level:   output.LevelError,
					Event:   output.EventJobFailed,
					JobID:   jobID,
					Message: outcome.Message,
				})
				if outcome.ConnectionLost {
					return withExitCode(exitcode.ServerUnreachable, fmt.Errorf("%s", outcome.Message))
				}
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("%s", outcome.Message))
			}

			// The job is done server-side; record it before fetching the
			// artifact so a failed save still leaves the handle findable.
			store := history.NewStore(mustExpand(cfg.History.File), cfg.History.Limit)
			recordTitle := title
			if recordTitle == "" {
				recordTitle = request.URL
			}
			if err := store.Append(history.Record{
				JobID:     jobID,
				Title:     recordTitle,
				Format:    format,
				SourceURL: request.URL,
			}); err != nil {
				fmt.Fprintln(app.IO.ErrOut, "WARN: append history:", err)
			}

			savedPath := outcome.SavedPath
			if !outcome.AutoSaved {
				if err := os.MkdirAll(dest, 0o755); err != nil {
					return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("create output directory %s: %w", dest, err))
				}
				savedPath, err = client.SaveFile(ctx, jobID, dest)
				if err != nil {
					return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("save file: %w", err))
				}
			}

			emitter.Emit(output.Event{
				Level:   output.LevelInfo,
				Event:   output.EventJobFinished,
				JobID:   jobID,
				Message: outcome.Message,
			})
			if savedPath != "" {
				emitter.Emit(output.Event{
					Level:   output.LevelInfo,
					Event:   output.EventFileSaved,
					JobID:   jobID,
					Message: savedPath,
				})
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Target format (e.g. mp3, m4a, mp4)")
	cmd.Flags().StringVar(&quality, "quality", "", "Target quality (e.g. best, 192)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to save the finished file into")
	cmd.Flags().StringVar(&title, "title", "", "Override title metadata")
	cmd.Flags().StringVar(&artist, "artist", "", "Override artist metadata")
	cmd.Flags().StringVar(&album, "album", "", "Override album metadata")
	cmd.Flags().BoolVar(&subtitles, "subtitles", false, "Request subtitles when available")
	cmd.Flags().IntVar(&retries, "retries", 0, "Reconnect attempts after a dropped progress stream (0 = config default, negative disables)")
	return cmd
}

func mustExpand(raw string) string {
	expanded, err := config.ExpandPath(raw)
	if err != nil {
		return raw
	}
	return expanded
}
