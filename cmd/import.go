package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/healthmap/internal/ingest"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load reference datasets into the store",
}

var importDistrictsCmd = &cobra.Command{
	Use:   "districts <file.shp>",
	Short: "Import district polygons from a shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nameField, _ := cmd.Flags().GetString("name-field")
		return runImport(cmd, "districts", func(l *ingest.Loader) (int64, error) {
			return l.LoadDistrictShapefile(cmd.Context(), args[0], nameField)
		})
	},
}

var importGridCmd = &cobra.Command{
	Use:   "grid <file.shp>",
	Short: "Import the population grid from a shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields := ingest.DefaultGridFields()
		if v, _ := cmd.Flags().GetString("id-field"); v != "" {
			fields.ID = v
		}
		if v, _ := cmd.Flags().GetString("population-field"); v != "" {
			fields.Population = v
		}
		if v, _ := cmd.Flags().GetString("region-field"); v != "" {
			fields.Region = v
		}
		return runImport(cmd, "grid cells", func(l *ingest.Loader) (int64, error) {
			return l.LoadGridShapefile(cmd.Context(), args[0], fields)
		})
	},
}

var importFacilitiesCmd = &cobra.Command{
	Use:   "facilities <registry.xlsx>",
	Short: "Import the facility registry spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, "facilities", func(l *ingest.Loader) (int64, error) {
			return l.LoadFacilitiesXLSX(cmd.Context(), args[0])
		})
	},
}

func runImport(cmd *cobra.Command, what string, load func(*ingest.Loader) (int64, error)) error {
	batch, _ := cmd.Flags().GetInt("batch-size")

	e, err := initEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.Store.Migrate(cmd.Context()); err != nil {
		return err
	}
	n, err := load(ingest.NewLoader(e.Store, batch))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d %s\n", n, what)
	return nil
}

func init() {
	importCmd.PersistentFlags().Int("batch-size", 1000, "rows per upsert batch")
	importDistrictsCmd.Flags().String("name-field", "name", "attribute holding the district name")
	importGridCmd.Flags().String("id-field", "", "cell id attribute (default id)")
	importGridCmd.Flags().String("population-field", "", "population attribute (default total_popu)")
	importGridCmd.Flags().String("region-field", "", "region attribute (default name_regio)")

	importCmd.AddCommand(importDistrictsCmd, importGridCmd, importFacilitiesCmd)
	rootCmd.AddCommand(importCmd)
}
