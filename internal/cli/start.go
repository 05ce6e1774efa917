package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/warden/internal/domain"
	"github.com/phrazzld/warden/internal/platform/procfs"
	"github.com/phrazzld/warden/internal/registry"
	"github.com/phrazzld/warden/internal/sizing"
	"github.com/phrazzld/warden/internal/supervisor"
)

// livenessProbeBudget bounds the post-launch check of the pool master.
// The probe is a hardening step only: a failure is logged, never fatal,
// and task worker launches are never health-checked at all.
const (
	livenessProbeBudget   = 5 * time.Second
	livenessProbeInterval = 250 * time.Millisecond
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Launch all configured workers",
	Long: `Start launches one task worker process per configured role, the
singleton scheduler, and the HTTP pool master, then returns. It does not
wait on any worker: a process that fails right after spawn surfaces only
in its role log file.

Start is not idempotent. Running it twice without an intervening stop
produces duplicate queue consumers and a second scheduler.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadApp()
		if err != nil {
			return err
		}

		table := procfs.New()
		reg := registry.New(cfg.Paths.StateFile)
		launcher := supervisor.NewExecLauncher(table, log)

		group := supervisor.NewTaskGroup(cfg.Workers, cfg.Paths.LogsDir, launcher, reg, log)
		if err := group.Start(cfg.Topology()); err != nil {
			return err
		}

		if err := startPoolMaster(cfg.Paths.LogsDir, launcher, reg); err != nil {
			return err
		}

		cores := sizing.DetectCores()
		log.Info("all workers requested",
			"task_roles", len(cfg.Workers.Roles),
			"http_pool_size", sizing.HTTPPoolSize(cores),
			"cores", cores)

		probeLiveness(cfg.Server.AdminAddr, log)
		return nil
	},
}

// startPoolMaster re-execs this binary as the detached serve process.
func startPoolMaster(logsDir string, launcher supervisor.Launcher, reg *registry.File) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve own executable: %w", err)
	}

	argv := []string{exe, "serve"}
	if cfgFile != "" {
		argv = append(argv, "--config", cfgFile)
	}
	argv = append(argv, "--role", domain.HTTPRoleName)

	role := domain.WorkerRole{Name: domain.HTTPRoleName, Concurrency: 1}
	rec, err := launcher.Launch(supervisor.LaunchSpec{
		Role:    role.Name,
		Argv:    argv,
		LogFile: role.LogFile(logsDir),
	})
	if err != nil {
		return fmt.Errorf("failed to launch http pool master: %w", err)
	}
	if err := reg.Append(rec); err != nil {
		return fmt.Errorf("failed to record http pool master: %w", err)
	}
	return nil
}

// probeLiveness polls the pool master's health endpoint for a bounded
// window and logs the outcome.
func probeLiveness(adminAddr string, log *slog.Logger) {
	client := &http.Client{Timeout: time.Second}
	url := "http://" + adminAddr + "/healthz"

	deadline := time.Now().Add(livenessProbeBudget)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				log.Info("http pool master is live", "admin_addr", adminAddr)
				return
			}
		}
		time.Sleep(livenessProbeInterval)
	}
	log.Warn("http pool master did not answer the liveness probe; check the http role log",
		"admin_addr", adminAddr, "budget", livenessProbeBudget)
}
