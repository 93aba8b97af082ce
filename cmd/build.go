package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osm-areas-go/internal/config"
	"github.com/wegman-software/osm-areas-go/internal/logger"
	"github.com/wegman-software/osm-areas-go/internal/output"
	"github.com/wegman-software/osm-areas-go/internal/pipeline"
)

var formatsStr string

var buildCmd = &cobra.Command{
	Use:   "build <input.osm.pbf>...",
	Short: "Assemble areas and write them to the selected outputs",
	Long: `Assemble areas from one or more OSM files (.osm.pbf, .osm, .osm.gz).

Each input is processed independently, up to --workers at a time, and
every assembled area is written to all formats given in --format:

  geojson   newline delimited GeoJSON features (areas.geojsonl)
  wkt       tab separated rows with WKT geometry (areas.wkt.tsv)
  parquet   Zstd compressed Parquet with EWKB geometry (areas.parquet)
  postgres  PostGIS table loaded with COPY`,
	Args: cobra.MinimumNArgs(1),
	Run:  runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&formatsStr, "format", "f", config.FormatGeoJSON, "Comma separated outputs: "+strings.Join(config.Formats, ","))
	buildCmd.Flags().StringVarP(&cfg.OutputDir, "output-dir", "o", cfg.OutputDir, "Directory for file outputs")
	buildCmd.Flags().StringVarP(&projectionStr, "projection", "E", "4326", "Target projection SRID (4326 or 3857)")
	buildCmd.Flags().StringVar(&cfg.ReportFile, "report", "", "Write a YAML run report to this file")
	buildCmd.Flags().IntVar(&cfg.ChannelBuffer, "channel-buffer", cfg.ChannelBuffer, "Buffer size of the area channels")
	buildCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows per Parquet row group")

	buildCmd.Flags().StringVar(&cfg.DBHost, "db-host", cfg.DBHost, "PostgreSQL host")
	buildCmd.Flags().IntVar(&cfg.DBPort, "db-port", cfg.DBPort, "PostgreSQL port")
	buildCmd.Flags().StringVarP(&cfg.DBName, "db-name", "d", cfg.DBName, "PostgreSQL database name")
	buildCmd.Flags().StringVarP(&cfg.DBUser, "db-user", "U", cfg.DBUser, "PostgreSQL user")
	buildCmd.Flags().StringVarP(&cfg.DBPassword, "db-password", "W", cfg.DBPassword, "PostgreSQL password")
	buildCmd.Flags().StringVar(&cfg.DBSchema, "db-schema", cfg.DBSchema, "PostgreSQL schema")
	buildCmd.Flags().StringVar(&cfg.DBTable, "db-table", cfg.DBTable, "PostgreSQL table for areas")
}

func runBuild(cmd *cobra.Command, args []string) {
	log := logger.Get()

	formats, err := config.ParseFormats(formatsStr)
	if err != nil {
		exitWithError("invalid format", err)
	}
	cfg.Formats = formats

	styleCfg, err := prepare(cmd, args)
	if err != nil {
		exitWithError("invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logFields := []zap.Field{
		zap.Strings("inputs", cfg.Inputs),
		zap.Strings("formats", cfg.Formats),
		zap.Int("workers", cfg.Workers),
		zap.Int("projection", cfg.Projection),
		zap.Bool("repair_gaps", cfg.RepairGaps),
		zap.String("node_store", cfg.NodeStore),
	}
	if cfg.HasFormat(config.FormatPostgres) {
		logFields = append(logFields, zap.String("database", fmt.Sprintf("%s:%d/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)))
	}
	if cfg.StyleFile != "" {
		logFields = append(logFields, zap.String("style", cfg.StyleFile))
	}
	log.Info("Starting area assembly", logFields...)

	sinks, err := output.Open(ctx, cfg)
	if err != nil {
		exitWithError("failed to open outputs", err)
	}

	totalStart := time.Now()
	coordinator := pipeline.NewCoordinator(cfg, styleCfg, sinks)
	stats, err := coordinator.Run(ctx)
	if err != nil {
		exitWithError("assembly failed", err)
	}

	if cfg.ReportFile != "" {
		if err := output.WriteReport(cfg.ReportFile, coordinator.RunReport(stats)); err != nil {
			exitWithError("failed to write report", err)
		}
		log.Info("Report written", zap.String("path", cfg.ReportFile))
	}

	t := stats.Totals()
	fields := []zap.Field{
		zap.Duration("total_time", time.Since(totalStart).Round(time.Second)),
		zap.Int64("areas", t.Emitted),
		zap.Int64("failed", t.Builder.Failed),
		zap.Int64("incomplete", t.Resolver.Incomplete),
	}
	for name, n := range stats.Outputs {
		fields = append(fields, zap.Int64(name, n))
	}
	log.Info("Build complete", fields...)
}
