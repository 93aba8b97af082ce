package config

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/wegman-software/osm-areas-go/internal/nodeindex"
	"github.com/wegman-software/osm-areas-go/internal/proj"
)

// Output formats
const (
	FormatGeoJSON  = "geojson"
	FormatWKT      = "wkt"
	FormatParquet  = "parquet"
	FormatPostgres = "postgres"
)

// Formats lists every supported output format
var Formats = []string{FormatGeoJSON, FormatWKT, FormatParquet, FormatPostgres}

// Config holds the global configuration for an assembly run
type Config struct {
	// Input settings
	Inputs []string

	// Output settings
	OutputDir  string
	Formats    []string
	Projection int    // Target SRID (4326 or 3857)
	StyleFile  string // Path to style YAML selecting relations and areas
	ReportFile string // YAML run report (empty = no report file)

	// Assembly settings
	RepairGaps    bool
	NodeStore     string
	FlatNodesFile string // Path to flat nodes file when NodeStore is mmap
	KeepFlatNodes bool

	// Database settings
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSchema   string
	DBTable    string

	// Processing settings
	Workers       int
	ChannelBuffer int
	BatchSize     int

	Verbose bool

	// Logging and metrics
	LogFile         string        // Path to log file (empty = no file logging)
	MetricsInterval time.Duration // Interval for system metrics logging
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		OutputDir:       "./osm_areas",
		Formats:         []string{FormatGeoJSON},
		Projection:      proj.SRID4326,
		NodeStore:       nodeindex.KindMemory,
		DBHost:          "localhost",
		DBPort:          5432,
		DBName:          "osm",
		DBUser:          "postgres",
		DBSchema:        "public",
		DBTable:         "osm_areas",
		Workers:         runtime.NumCPU(),
		ChannelBuffer:   1024,
		BatchSize:       10000,
		MetricsInterval: 30 * time.Second,
	}
}

// ConnectionString returns a PostgreSQL connection string
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser,
	)
	if c.DBPassword != "" {
		connStr += fmt.Sprintf(" password=%s", c.DBPassword)
	}
	return connStr
}

// HasFormat reports whether format was requested
func (c *Config) HasFormat(format string) bool {
	return slices.Contains(c.Formats, format)
}

// ParseFormats splits a comma separated format list
func ParseFormats(s string) ([]string, error) {
	var out []string
	for _, f := range strings.Split(s, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if !slices.Contains(Formats, f) {
			return nil, fmt.Errorf("unknown output format %q (supported: %s)", f, strings.Join(Formats, ", "))
		}
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if len(c.Inputs) == 0 {
		return fmt.Errorf("at least one input file is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.ChannelBuffer < 0 {
		return fmt.Errorf("channel buffer must not be negative")
	}
	if c.HasFormat(FormatPostgres) && c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	for _, f := range c.Formats {
		if !slices.Contains(Formats, f) {
			return fmt.Errorf("unknown output format %q", f)
		}
	}
	if c.Projection != proj.SRID4326 && c.Projection != proj.SRID3857 {
		return fmt.Errorf("unsupported projection %d", c.Projection)
	}
	if c.NodeStore == nodeindex.KindMmap && c.FlatNodesFile == "" {
		return fmt.Errorf("flat nodes file is required for the mmap node store")
	}
	if c.NodeStore == nodeindex.KindMmap && len(c.Inputs) > 1 {
		return fmt.Errorf("the mmap node store supports a single input")
	}
	return nil
}
