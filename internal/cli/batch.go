package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jaa/batchdl/internal/api"
	"github.com/jaa/batchdl/internal/batch"
	"github.com/jaa/batchdl/internal/config"
	"github.com/jaa/batchdl/internal/exitcode"
	"github.com/jaa/batchdl/internal/history"
	"github.com/jaa/batchdl/internal/output"
	"github.com/spf13/cobra"
)

func newBatchCommand(app *AppContext) *cobra.Command {
	var format string
	var quality string
	var outputDir string
	var listFile string
	var items string
	var concurrency int
	var retries int
	var zipPath string
	var noSave bool

	cmd := &cobra.Command{
		Use:   "batch [url...]",
		Short: "Download multiple URLs or a playlist with a bounded worker pool",
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
			if !cmd.Flags().Changed("concurrency") {
				concurrency = cfg.Defaults.Concurrency
			}
			if !cmd.Flags().Changed("retries") {
				retries = cfg.Defaults.StreamRetries
			}

			urls := append([]string{}, args...)
			if listFile != "" {
				fromFile, readErr := readURLList(listFile)
				if readErr != nil {
					return withExitCode(exitcode.InvalidUsage, readErr)
				}
				urls = append(urls, fromFile...)
			}
			if len(urls) == 0 {
				return withExitCode(exitcode.InvalidUsage, fmt.Errorf("no URLs given (pass them as arguments or via --file)"))
			}

			dest, err := config.ExpandPath(outputDir)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			client := newClient(cfg)
			emitter := newEmitter(app)

			ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
			defer stop()

			requests, err := expandRequests(ctx, client, urls, items, format, quality)
			if err != nil {
				return withExitCode(exitcode.ServerUnreachable, err)
			}

			store := history.NewStore(mustExpand(cfg.History.File), cfg.History.Limit)
			orchestrator := &batch.Orchestrator{
				Submit:      client.Submit,
				Subscribe:   client.Subscribe,
				Concurrency: concurrency,
				Retries:     retries,
				Backoff:     time.Duration(cfg.Defaults.RetryBackoffMS) * time.Millisecond,
				History:     store,
				Emitter:     emitter,
			}

			result, runErr := orchestrator.Run(ctx, requests)
			renderBatchReport(app, result)

			interrupted := errors.Is(runErr, batch.ErrInterrupted)
			if runErr != nil && !interrupted {
				return withExitCode(exitcode.RuntimeFailure, runErr)
			}

			if zipPath != "" && result.ExportAvailable() {
				if err := exportArchive(client, result.CompletedIDs, zipPath); err != nil {
					return withExitCode(exitcode.RuntimeFailure, err)
				}
				emitter.Emit(output.Event{
					Level:   output.LevelInfo,
					Event:   output.EventFileSaved,
					Message: zipPath,
				})
			} else if !noSave && !interrupted {
				if err := saveCompleted(ctx, client, emitter, result.CompletedIDs, dest); err != nil {
					return withExitCode(exitcode.RuntimeFailure, err)
				}
			}

			if interrupted {
				return withExitCode(exitcode.Interrupted, runErr)
			}
			if result.Failed > 0 {
				return withExitCode(exitcode.PartialSuccess, fmt.Errorf("batch finished with failed downloads (%d)", result.Failed))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Target format (e.g. mp3, m4a, mp4)")
	cmd.Flags().StringVar(&quality, "quality", "", "Target quality (e.g. best, 192)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to save finished files into")
	cmd.Flags().StringVar(&listFile, "file", "", "Read additional URLs from a file (one per line)")
	cmd.Flags().StringVar(&items, "items", "", "Playlist item selection, e.g. 1,3-5")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum downloads in flight at once")
	cmd.Flags().IntVar(&retries, "retries", 0, "Reconnect attempts after a dropped progress stream (0 = config default, negative disables)")
	cmd.Flags().StringVar(&zipPath, "zip", "", "Export all finished downloads as one zip archive instead of single files")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Track downloads without fetching the finished files")
	return cmd
}

// expandRequests resolves each URL through the server's info endpoint so a
// playlist URL becomes one request per entry. A failed lookup falls back to
// submitting the URL as-is; the server reports unusable URLs through the
// job's own error status.
func expandRequests(ctx context.Context, client *api.Client, urls []string, items, format, quality string) ([]batch.Request, error) {
	selection, err := parseItemSelection(items)
	if err != nil {
		return nil, err
	}

	requests := []batch.Request{}
	for _, url := range urls {
		info, infoErr := client.FetchInfo(ctx, url)
		if infoErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			requests = append(requests, batch.Request{
				Job: api.JobRequest{URL: url, Format: format, Quality: quality},
			})
			continue
		}

		if !info.IsPlaylist() {
			requests = append(requests, batch.Request{
				Job:   api.JobRequest{URL: url, Format: format, Quality: quality},
				Title: info.Title,
			})
			continue
		}

		for i, entry := range info.Entries {
			if len(selection) > 0 {
				if _, picked := selection[i+1]; !picked {
					continue
				}
			}
			entryURL := entry.URL
			if entryURL == "" {
				continue
			}
			requests = append(requests, batch.Request{
				Job:   api.JobRequest{URL: entryURL, Format: format, Quality: quality},
				Title: entry.Title,
			})
		}
	}
	return requests, nil
}

// parseItemSelection turns "1,3-5" into the set {1,3,4,5}. Positions are
// 1-based. An empty selection selects everything.
func parseItemSelection(raw string) (map[int]struct{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	selection := map[int]struct{}{}
	for _, piece := range strings.Split(raw, ",") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}

		if start, end, found := strings.Cut(piece, "-"); found {
			lo, loErr := strconv.Atoi(strings.TrimSpace(start))
			hi, hiErr := strconv.Atoi(strings.TrimSpace(end))
			if loErr != nil || hiErr != nil || lo < 1 || hi < lo {
				return nil, fmt.Errorf("invalid --items range %q", piece)
			}
			for i := lo; i <= hi; i++ {
				selection[i] = struct{}{}
			}
			continue
		}

		n, err := strconv.Atoi(piece)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid --items position %q", piece)
		}
		selection[n] = struct{}{}
	}
	return selection, nil
}

func readURLList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	defer file.Close()

	urls := []string{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan url list %s: %w", path, err)
	}
	return urls, nil
}

func saveCompleted(ctx context.Context, client *api.Client, emitter output.EventEmitter, jobIDs []string, dest string) error {
	if len(jobIDs) == 0 {
		return nil
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", dest, err)
	}

	sorted := append([]string(nil), jobIDs...)
	sort.Strings(sorted)
	for _, jobID := range sorted {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		savedPath, err := client.SaveFile(ctx, jobID, dest)
		if err != nil {
			return fmt.Errorf("save file for job %s: %w", jobID, err)
		}
		emitter.Emit(output.Event{
			Level:   output.LevelInfo,
			Event:   output.EventFileSaved,
			JobID:   jobID,
			Message: savedPath,
		})
	}
	return nil
}

func exportArchive(client *api.Client, jobIDs []string, zipPath string) error {
	if err := os.MkdirAll(filepath.Dir(zipPath), 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	// The archive fetch gets a fresh context so a SIGINT that stopped the
	// batch mid-run does not also abort exporting what already finished.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := client.BatchZip(ctx, jobIDs, zipPath); err != nil {
		return fmt.Errorf("export archive: %w", err)
	}
	return nil
}
