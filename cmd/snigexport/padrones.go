package main

import (
	"github.com/spf13/cobra"

	"snigexport/pkg/arcgis"
	"snigexport/pkg/export"
	"snigexport/pkg/logger"
)

var (
	deptoFlag     int
	localidadFlag string
)

// padronesCmd represents the padrones command
var padronesCmd = &cobra.Command{
	Use:   "padrones",
	Short: "Export parcel numbers from the Catastro Rural y Urbano layer",
	Long: `Export parcel numbers (padrones) to a CSV file.

The query walks the layer in pages of 1000 records and deduplicates in
memory. Exporting every department can take a long time; prefer filtering
by department.`,
	Example: `  # All parcels (slow)
  snigexport padrones

  # One department
  snigexport padrones --depto 10

  # One cadastral locality within a department
  snigexport padrones --depto 10 --localidad 10101`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPadrones()
	},
}

func init() {
	rootCmd.AddCommand(padronesCmd)

	padronesCmd.Flags().IntVar(&deptoFlag, "depto", 0, "department code (1-19); omit to export all")
	padronesCmd.Flags().StringVar(&localidadFlag, "localidad", "", "cadastral locality code (requires --depto)")
}

func runPadrones() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	filter := export.ParcelFilter{
		Department: deptoFlag,
		Locality:   localidadFlag,
	}
	if err := filter.Validate(); err != nil {
		return err
	}

	client := arcgis.NewClient(cfg, nil)
	exporter := export.New(cfg, client, nil)

	count, path, err := exporter.ExportParcels(filter)
	if err != nil {
		return err
	}

	logger.GetLogger().InfoWithFields("done", map[string]interface{}{
		"rows": count,
		"path": path,
	})
	return nil
}
