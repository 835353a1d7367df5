package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"snigexport/pkg/arcgis"
	"snigexport/pkg/export"
)

var (
	layersFlag string
	skipLarge  bool
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export catastro layers to GeoJSON/CSV files",
	Long: `Export layers from the SNIG Catastro MapServer to local files.

Spatial layers (0 catastro_rural, 1 catastro_rural_urbano, 2 departamentos)
export to GeoJSON in WGS84; the locality table (3) exports to CSV. A failing
layer is reported and the run continues with the next one.`,
	Example: `  # Export every layer
  snigexport export

  # Export only the departments layer
  snigexport export --layers 2

  # Skip the two large cadastral layers
  snigexport export --skip-large`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport()
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&layersFlag, "layers", "", "comma-separated layer IDs to export (default: all), e.g. 2 or 0,2")
	exportCmd.Flags().BoolVar(&skipLarge, "skip-large", false, "skip the potentially large layers 0 and 1")
}

func runExport() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	selected, err := selectLayers(layersFlag)
	if err != nil {
		return err
	}

	client := arcgis.NewClient(cfg, nil)
	exporter := export.New(cfg, client, nil)

	if failures := exporter.ExportLayers(selected, skipLarge); failures > 0 {
		return fmt.Errorf("%d layer(s) failed to export", failures)
	}
	return nil
}

// selectLayers filters the default registry by the --layers flag
func selectLayers(flag string) ([]export.Layer, error) {
	if flag == "" {
		return export.DefaultLayers, nil
	}

	wanted := make(map[int]bool)
	for _, part := range strings.Split(flag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("--layers must contain comma-separated integers, e.g. 2 or 0,2")
		}
		wanted[id] = true
	}

	var selected []export.Layer
	for _, layer := range export.DefaultLayers {
		if wanted[layer.ID] {
			selected = append(selected, layer)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no known layer matches --layers %q", flag)
	}
	return selected, nil
}
