package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phrazzld/warden/internal/config"
	"github.com/phrazzld/warden/internal/domain"
	"github.com/phrazzld/warden/internal/platform/procfs"
	"github.com/phrazzld/warden/internal/registry"
	"github.com/phrazzld/warden/internal/shutdown"
)

// ErrRolesStuck reports that at least one role group survived the full
// signal escalation. main maps it to a distinct exit code.
var ErrRolesStuck = errors.New("some roles could not be fully terminated")

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Terminate all matching workers",
	Long: `Stop tears down every role group with a two-phase escalation:
graceful signal, grace window, forceful signal, verification re-scan.
Recorded PIDs from the last start are targeted exactly; command-line
signature matching covers orphans from a prior supervisor instance.

Exit status is 0 when every role verified stopped, non-zero when any
role remained stuck.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadApp()
		if err != nil {
			return err
		}

		table := procfs.New()
		reg := registry.New(cfg.Paths.StateFile)

		policy := domain.DefaultShutdownPolicy()
		policy.Steps[0].Wait = cfg.Workers.GraceWindow
		coordinator := shutdown.New(table, policy, log)

		recorded, err := recordedPIDs(reg, table, log)
		if err != nil {
			return err
		}

		var stuck []string
		var remaining []domain.ProcessRecord
		for _, group := range stopGroups(cfg, recorded) {
			res := coordinator.Terminate(cmd.Context(), group.role, group.pids, group.signature)
			if res.Stopped() {
				continue
			}
			stuck = append(stuck, group.role)
			still := make(map[int]struct{}, len(res.Remaining))
			for _, pid := range res.Remaining {
				still[pid] = struct{}{}
			}
			for _, rec := range group.records {
				if _, ok := still[rec.PID]; ok {
					remaining = append(remaining, rec)
				}
			}
		}

		// Only records for stuck processes survive the stop.
		if err := reg.Replace(remaining); err != nil {
			log.Warn("failed to update state file", "error", err)
		}

		if len(stuck) > 0 {
			log.Warn("stop finished with stuck roles", "roles", stuck)
			return fmt.Errorf("%w: %s", ErrRolesStuck, strings.Join(stuck, ", "))
		}
		log.Info("all roles verified stopped")
		return nil
	},
}

// roleGroup is one unit of teardown.
type roleGroup struct {
	role      string
	pids      []int
	signature string
	records   []domain.ProcessRecord
}

// recordedPIDs loads the registry, discards records whose process is
// gone or whose PID was reused, and groups the survivors by role.
func recordedPIDs(reg *registry.File, table *procfs.Table, log *slog.Logger) (map[string][]domain.ProcessRecord, error) {
	recs, err := reg.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load state file: %w", err)
	}

	byRole := make(map[string][]domain.ProcessRecord)
	for _, rec := range recs {
		if !table.Alive(rec.PID) {
			log.Debug("dropping record for exited process", "role", rec.Role, "pid", rec.PID)
			continue
		}
		if rec.StartTicks != 0 {
			if ticks, err := table.StartTicks(rec.PID); err == nil && ticks != rec.StartTicks {
				log.Debug("dropping record, pid was reused", "role", rec.Role, "pid", rec.PID)
				continue
			}
		}
		byRole[rec.Role] = append(byRole[rec.Role], rec)
	}
	return byRole, nil
}

// stopGroups orders the teardown: the pool master first so it drains
// its own workers, then a signature-only scan for HTTP workers orphaned
// by a dead master, then each task role, then the scheduler.
func stopGroups(cfg *config.Config, recorded map[string][]domain.ProcessRecord) []roleGroup {
	topo := cfg.Topology()

	var groups []roleGroup
	add := func(role domain.WorkerRole) {
		recs := recorded[role.Name]
		pids := make([]int, 0, len(recs))
		for _, rec := range recs {
			pids = append(pids, rec.PID)
		}
		groups = append(groups, roleGroup{
			role:      role.Name,
			pids:      pids,
			signature: role.Signature(),
			records:   recs,
		})
	}

	for _, role := range topo.Roles {
		if role.Name == domain.HTTPRoleName {
			add(role)
		}
	}
	groups = append(groups, roleGroup{
		role:      "http_workers",
		signature: strings.Join(cfg.Server.WorkerCommand, " "),
	})
	for _, role := range topo.TaskRoles() {
		add(role)
	}
	if sched, ok := topo.Scheduler(); ok {
		add(sched)
	}
	return groups
}
