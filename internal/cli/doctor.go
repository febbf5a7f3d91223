package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jaa/batchdl/internal/config"
	"github.com/jaa/batchdl/internal/exitcode"
	"github.com/spf13/cobra"
)

type doctorCheck struct {
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type doctorReport struct {
	Checks []doctorCheck `json:"checks"`
}

func (r doctorReport) errorCount() int {
	count := 0
	for _, check := range r.Checks {
		if check.Severity == "error" {
			count++
		}
	}
	return count
}

func newDoctorCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check server reachability and filesystem readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			report := runDoctorChecks(cmd.Context(), cfg)

			if app.Opts.JSON {
				encoder := json.NewEncoder(app.IO.Out)
				if err := encoder.Encode(report); err != nil {
					return withExitCode(exitcode.RuntimeFailure, err)
				}
			} else {
				for _, check := range report.Checks {
					fmt.Fprintf(app.IO.Out, "[%s] %s: %s\n", check.Severity, check.Name, check.Message)
				}
			}

			if report.errorCount() > 0 {
				return withExitCode(exitcode.ServerUnreachable, fmt.Errorf("doctor found %d error(s)", report.errorCount()))
			}
			return nil
		},
	}
}

func runDoctorChecks(ctx context.Context, cfg config.Config) doctorReport {
	report := doctorReport{}

	if err := config.Validate(cfg); err != nil {
		report.Checks = append(report.Checks, doctorCheck{
			Name:     "config",
			Severity: "error",
			Message:  err.Error(),
		})
	} else {
		report.Checks = append(report.Checks, doctorCheck{
			Name:     "config",
			Severity: "ok",
			Message:  "config is valid",
		})
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := newClient(cfg).Health(healthCtx); err != nil {
		report.Checks = append(report.Checks, doctorCheck{
			Name:     "server",
			Severity: "error",
			Message:  fmt.Sprintf("server %s is unreachable: %v", cfg.Server.URL, err),
		})
	} else {
		report.Checks = append(report.Checks, doctorCheck{
			Name:     "server",
			Severity: "ok",
			Message:  fmt.Sprintf("server %s responded", cfg.Server.URL),
		})
	}

	report.Checks = append(report.Checks, checkWritableDir("output_dir", cfg.Defaults.OutputDir))
	report.Checks = append(report.Checks, checkWritableDir("history_dir", filepath.Dir(cfg.History.File)))

	return report
}

func checkWritableDir(name string, raw string) doctorCheck {
	dir, err := config.ExpandPath(raw)
	if err != nil || dir == "" {
		return doctorCheck{Name: name, Severity: "error", Message: fmt.Sprintf("cannot resolve path %q", raw)}
	}

	info, err := os.Stat(dir)
	if err != nil {
		return doctorCheck{Name: name, Severity: "warn", Message: fmt.Sprintf("%s does not exist yet (created on first use)", dir)}
	}
	if !info.IsDir() {
		return doctorCheck{Name: name, Severity: "error", Message: fmt.Sprintf("%s is not a directory", dir)}
	}

	probe, err := os.CreateTemp(dir, ".bdl-doctor-*")
	if err != nil {
		return doctorCheck{Name: name, Severity: "error", Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	probe.Close()
	os.Remove(probe.Name())

	return doctorCheck{Name: name, Severity: "ok", Message: fmt.Sprintf("%s is writable", dir)}
}
