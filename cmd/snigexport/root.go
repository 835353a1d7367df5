package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"snigexport/pkg/config"
	"snigexport/pkg/logger"
)

var (
	// Version information, overridden at build time
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	outputDir  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "snigexport",
	Short: "Export SNIG Catastro layers to local GeoJSON and CSV files",
	Long: `snigexport bulk-downloads layers from the SNIG_Catastro_Dos ArcGIS
MapServer and materializes them as local files.

Feature layers are fetched in chunks of up to 1000 records with on-disk
checkpointing, so an interrupted export resumes without re-downloading
completed work. Tables and parcel numbers are fetched page by page.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .snigexport.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "output directory (default: outputs)")
}

// loadConfig builds the effective configuration and initializes logging
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if outputDir != "" {
		cfg.Export.OutputDir = outputDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}
