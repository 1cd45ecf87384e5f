package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/healthmap/internal/dataset"
	"github.com/sells-group/healthmap/internal/demand"
	"github.com/sells-group/healthmap/internal/geometry"
	"github.com/sells-group/healthmap/internal/model"
	"github.com/sells-group/healthmap/internal/report"
	"github.com/sells-group/healthmap/internal/zonecache"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Compute and inspect high-demand zones",
}

var zonesRecomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Run one demand-zone pass and replace the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		var res demand.Result
		if dryRun {
			snap, err := dataset.LoadSnapshot(cmd.Context(), e.Store, e.Store)
			if err != nil {
				return err
			}
			res, err = demand.NewEngine(e.Store, zonecache.NewMemoryCache()).Recompute(cmd.Context(), snap)
			if err != nil {
				return err
			}
		} else if res, err = e.Engine().Run(cmd.Context()); err != nil {
			return err
		}

		formatResult(cmd.OutOrStdout(), res)
		return nil
	},
}

func zoneFilterFlags(cmd *cobra.Command) (zonecache.Filter, error) {
	priority, _ := cmd.Flags().GetString("priority")
	district, _ := cmd.Flags().GetString("district")
	f := zonecache.Filter{Priority: model.Priority(priority), District: district}
	if priority != "" && !f.Priority.Valid() {
		return f, eris.Wrapf(model.ErrInvalidInput, "unknown priority %q", priority)
	}
	return f, nil
}

var zonesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the cached zones",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := zoneFilterFlags(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		zones, err := e.Service().HighDemandZones(cmd.Context(), f)
		if err != nil {
			return err
		}

		switch format {
		case "table":
			formatZones(cmd.OutOrStdout(), zones)
			return nil
		case "json":
			return writeJSON(cmd.OutOrStdout(), zones)
		case "geojson":
			return writeJSON(cmd.OutOrStdout(), geometry.ZoneFeatures(zones))
		default:
			return eris.Errorf("unknown format %q (table, json, geojson)", format)
		}
	},
}

var zonesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the cached zones to an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := zoneFilterFlags(cmd)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = filepath.Join(cfg.Export.Dir, report.Filename("demand_zones", time.Now()))
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		zones, err := e.Service().HighDemandZones(cmd.Context(), f)
		if err != nil {
			return err
		}
		if err := writeFile(out, func(fh *os.File) error { return report.WriteZonesXLSX(fh, zones) }); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d zones to %s\n", len(zones), out)
		return nil
	},
}

var zonesScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Recompute zones on the configured interval until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("schedule"); err != nil {
			return err
		}
		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		demand.NewScheduler(e.Engine(), cfg.Engine.Interval, cfg.Engine.RunOnStart).Start(ctx)
		return nil
	},
}

// writeFile creates path and runs fn, removing the file if fn fails.
func writeFile(path string, fn func(*os.File) error) error {
	fh, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := fn(fh); err != nil {
		_ = fh.Close()
		_ = os.Remove(path)
		return err
	}
	return eris.Wrapf(fh.Close(), "close %s", path)
}

func init() {
	zonesRecomputeCmd.Flags().Bool("dry-run", false, "compute without replacing the cache")

	for _, c := range []*cobra.Command{zonesListCmd, zonesExportCmd} {
		c.Flags().String("priority", "", "filter by priority (low, moderate, critical)")
		c.Flags().String("district", "", "filter by district label")
	}
	zonesListCmd.Flags().String("format", "table", "output format: table, json, geojson")
	zonesExportCmd.Flags().StringP("out", "o", "", "output path (default <export.dir>/demand_zones_<timestamp>.xlsx)")

	zonesCmd.AddCommand(zonesRecomputeCmd, zonesListCmd, zonesExportCmd, zonesScheduleCmd)
	rootCmd.AddCommand(zonesCmd)
}
