package cmd

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osm-areas-go/internal/config"
	"github.com/wegman-software/osm-areas-go/internal/logger"
	"github.com/wegman-software/osm-areas-go/internal/nodeindex"
	"github.com/wegman-software/osm-areas-go/internal/proj"
	"github.com/wegman-software/osm-areas-go/internal/style"
)

var (
	cfg             = config.DefaultConfig()
	verbose         bool
	logFile         string
	metricsInterval time.Duration
	projectionStr   string
	repairGaps      bool
)

var rootCmd = &cobra.Command{
	Use:   "osm-areas",
	Short: "Assemble OSM multipolygon relations and closed ways into areas",
	Long: `osm-areas builds polygon and multipolygon areas from OpenStreetMap data.

It reads each input twice:
  - Pass 1: node locations and the relations selected by the style
  - Pass 2: ways, handed to every relation waiting for them

As soon as the last member way of a relation arrives its rings are
assembled, nested into shells and holes and written to every output.
Closed ways that belong to no relation become areas of their own.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg.Verbose = verbose
		cfg.LogFile = logFile
		cfg.MetricsInterval = metricsInterval

		if logFile != "" {
			logger.InitWithFile(verbose, logFile)
		} else {
			logger.Init(verbose)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().IntVarP(&cfg.Workers, "workers", "j", cfg.Workers, "Number of inputs processed in parallel")
	rootCmd.PersistentFlags().StringVarP(&cfg.StyleFile, "style", "S", "", "Style YAML selecting relations, member roles and standalone areas")
	rootCmd.PersistentFlags().BoolVar(&repairGaps, "repair-gaps", false, "Close unclosed rings with a straight segment")
	rootCmd.PersistentFlags().StringVar(&cfg.FlatNodesFile, "flat-nodes", "", "Store node locations in a memory-mapped flat file")
	rootCmd.PersistentFlags().BoolVar(&cfg.KeepFlatNodes, "keep-flat-nodes", false, "Keep the flat nodes file after the run")

	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().DurationVar(&metricsInterval, "metrics-interval", 30*time.Second, "Interval for system metrics logging (0 disables)")
}

// prepare fills cfg from the arguments and flags and loads the style
func prepare(cmd *cobra.Command, args []string) (*style.Config, error) {
	cfg.Inputs = args
	cfg.RepairGaps = repairGaps

	if projectionStr != "" {
		srid, err := proj.ParseSRID(projectionStr)
		if err != nil {
			return nil, err
		}
		cfg.Projection = srid
	}

	if cfg.FlatNodesFile != "" {
		cfg.NodeStore = nodeindex.KindMmap
	}

	styleCfg := style.DefaultConfig()
	if cfg.StyleFile != "" {
		var err error
		if styleCfg, err = style.LoadConfig(cfg.StyleFile); err != nil {
			return nil, err
		}
		// the command line wins over the style file
		if styleCfg.RepairGaps != nil && !cmd.Flags().Changed("repair-gaps") {
			cfg.RepairGaps = *styleCfg.RepairGaps
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return styleCfg, nil
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	logger.Sync()
	os.Exit(1)
}
