package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/warden/internal/domain"
	"github.com/phrazzld/warden/internal/platform/procfs"
	"github.com/phrazzld/warden/internal/registry"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show workers recorded by the last start",
	Long: `Status lists the processes the supervisor launched, pruned against
the live process table. It reflects only what this supervisor recorded;
orphans from a prior instance are found by stop's signature scan, not
here.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadApp()
		if err != nil {
			return err
		}

		table := procfs.New()
		reg := registry.New(cfg.Paths.StateFile)
		recs, err := reg.Prune(func(rec domain.ProcessRecord) bool {
			return table.Alive(rec.PID)
		})
		if err != nil {
			return fmt.Errorf("failed to read state file: %w", err)
		}

		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no workers running")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "ROLE\tPID\tUPTIME\tSTARTED")
		for _, rec := range recs {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				rec.Role,
				rec.PID,
				time.Since(rec.StartedAt).Round(time.Second),
				rec.StartedAt.Format(time.RFC3339),
			)
		}
		return w.Flush()
	},
}
