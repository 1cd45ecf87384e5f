package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/healthmap/internal/geometry"
	"github.com/sells-group/healthmap/internal/proximity"
	"github.com/sells-group/healthmap/internal/report"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run proximity and coverage queries",
}

var queryNearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "List the facilities nearest to a point",
	RunE: func(cmd *cobra.Command, args []string) error {
		x, _ := cmd.Flags().GetString("x")
		y, _ := cmd.Flags().GetString("y")
		k, _ := cmd.Flags().GetInt("k")
		district, _ := cmd.Flags().GetString("district")
		category, _ := cmd.Flags().GetString("category")

		p, err := geometry.ParsePoint(x, y)
		if err != nil {
			return err
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		nearest, err := e.Service().FindNearest(cmd.Context(), proximity.NearestQuery{
			Point:    p,
			K:        k,
			District: district,
			Category: category,
		})
		if err != nil {
			return err
		}
		formatNearest(cmd.OutOrStdout(), nearest)
		return nil
	},
}

var queryRecommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank facilities near a point by distance and catchment load",
	RunE: func(cmd *cobra.Command, args []string) error {
		x, _ := cmd.Flags().GetString("x")
		y, _ := cmd.Flags().GetString("y")
		k, _ := cmd.Flags().GetInt("k")

		p, err := geometry.ParsePoint(x, y)
		if err != nil {
			return err
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		ranked, err := e.Service().RecommendFacilities(cmd.Context(), p, k)
		if err != nil {
			return err
		}
		formatRecommended(cmd.OutOrStdout(), ranked)
		return nil
	},
}

var queryCoverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Population per clinic for every district",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("xlsx")

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		rows, err := e.Service().DistrictCoverage(cmd.Context())
		if err != nil {
			return err
		}
		if out != "" {
			if err := writeFile(out, func(fh *os.File) error { return report.WriteCoverageXLSX(fh, rows) }); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d districts to %s\n", len(rows), out)
			return nil
		}
		formatCoverage(cmd.OutOrStdout(), rows)
		return nil
	},
}

var queryAgesCmd = &cobra.Command{
	Use:   "ages",
	Short: "Age structure of a district or the whole city",
	RunE: func(cmd *cobra.Command, args []string) error {
		district, _ := cmd.Flags().GetString("district")

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		ages, err := e.Service().AgeStructure(cmd.Context(), district)
		if err != nil {
			return err
		}
		if district == "" {
			district = "all"
		}
		formatAges(cmd.OutOrStdout(), district, ages)
		return nil
	},
}

var queryClinicsCmd = &cobra.Command{
	Use:   "clinics",
	Short: "Facility counts per district",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		sum, err := e.Service().ClinicSummary(cmd.Context())
		if err != nil {
			return err
		}
		formatClinics(cmd.OutOrStdout(), sum)
		return nil
	},
}

func init() {
	queryNearestCmd.Flags().String("x", "", "longitude in degrees")
	queryNearestCmd.Flags().String("y", "", "latitude in degrees")
	queryNearestCmd.Flags().Int("k", proximity.DefaultK, "number of facilities")
	queryNearestCmd.Flags().String("district", "", "district filter")
	queryNearestCmd.Flags().String("category", "", "category filter")
	_ = queryNearestCmd.MarkFlagRequired("x")
	_ = queryNearestCmd.MarkFlagRequired("y")

	queryRecommendCmd.Flags().String("x", "", "longitude in degrees")
	queryRecommendCmd.Flags().String("y", "", "latitude in degrees")
	queryRecommendCmd.Flags().Int("k", proximity.DefaultK, "number of facilities")
	_ = queryRecommendCmd.MarkFlagRequired("x")
	_ = queryRecommendCmd.MarkFlagRequired("y")

	queryCoverageCmd.Flags().String("xlsx", "", "write the table to this xlsx file instead of stdout")
	queryAgesCmd.Flags().String("district", "", "district label (default: whole city)")

	queryCmd.AddCommand(queryNearestCmd, queryRecommendCmd, queryCoverageCmd, queryAgesCmd, queryClinicsCmd)
	rootCmd.AddCommand(queryCmd)
}
