package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jaa/batchdl/internal/api"
	"github.com/jaa/batchdl/internal/batch"
	"github.com/jaa/batchdl/internal/config"
	"github.com/jaa/batchdl/internal/output"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	titleStyle = lipgloss.NewStyle().Bold(true)
)

func loadConfig(app *AppContext) (config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return config.Config{}, fmt.Errorf("resolve working directory: %w", err)
	}

	cfg, err := config.Load(config.LoadOptions{
		ExplicitPath: strings.TrimSpace(app.Opts.ConfigPath),
		WorkingDir:   wd,
	})
	if err != nil {
		return config.Config{}, err
	}

	if override := strings.TrimSpace(app.Opts.ServerURL); override != "" {
		cfg.Server.URL = override
	}
	return cfg, nil
}

func newClient(cfg config.Config) *api.Client {
	return api.NewClient(cfg.Server.URL)
}

func newEmitter(app *AppContext) output.EventEmitter {
	if app.Opts.JSON {
		return output.NewJSONEmitter(app.IO.Out)
	}
	return output.NewHumanEmitter(app.IO.Out, app.IO.ErrOut, app.Opts.Quiet, app.Opts.Verbose)
}

func styled(app *AppContext, style lipgloss.Style, text string) string {
	if app.Opts.NoColor || app.Opts.JSON {
		return text
	}
	return style.Render(text)
}

func renderBatchReport(app *AppContext, result batch.Result) {
	if app.Opts.JSON {
		return
	}

	fmt.Fprintln(app.IO.Out)
	fmt.Fprintln(app.IO.Out, styled(app, titleStyle, "Batch summary"))
	fmt.Fprintf(app.IO.Out, "  %s %d\n", styled(app, okStyle, "done:"), result.Done)
	if result.Failed > 0 {
		fmt.Fprintf(app.IO.Out, "  %s %d\n", styled(app, errStyle, "failed:"), result.Failed)
	}
	remaining := result.Total - result.Done - result.Failed
	if remaining > 0 {
		fmt.Fprintf(app.IO.Out, "  %s %d\n", styled(app, mutedStyle, "not started:"), remaining)
	}
	fmt.Fprintf(app.IO.Out, "  %s %d\n", styled(app, mutedStyle, "total:"), result.Total)
}

func isTTY(file *os.File) bool {
	stat, err := file.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func promptYesNo(app *AppContext, prompt string) (bool, error) {
	fmt.Fprintf(app.IO.Out, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(app.IO.In)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	response := strings.ToLower(strings.TrimSpace(line))
	return response == "y" || response == "yes", nil
}
