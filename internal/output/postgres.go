package output

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wegman-software/osm-areas-go/internal/area"
	"github.com/wegman-software/osm-areas-go/internal/config"
	"github.com/wegman-software/osm-areas-go/internal/logger"
	"github.com/wegman-software/osm-areas-go/internal/proj"
	"github.com/wegman-software/osm-areas-go/internal/wkb"
)

// areaColumns is the COPY column order
var areaColumns = []string{"area_id", "osm_id", "osm_type", "tags", "repaired", "geom"}

// PostgresSink streams areas into a PostGIS table using COPY
type PostgresSink struct {
	pool      *pgxpool.Pool
	schema    string
	table     string
	srid      int
	transform *proj.Transformer
	loaded    atomic.Int64
}

// NewPostgresSink connects to PostgreSQL
func NewPostgresSink(ctx context.Context, cfg *config.Config, t *proj.Transformer) (*PostgresSink, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	// one connection for COPY and one for setup and indexes
	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	srid := proj.SRID4326
	if t != nil {
		srid = t.TargetSRID
	}
	return &PostgresSink{
		pool:      pool,
		schema:    cfg.DBSchema,
		table:     cfg.DBTable,
		srid:      srid,
		transform: t,
	}, nil
}

func (s *PostgresSink) Name() string { return "postgres" }

// Loaded returns the number of rows handed to COPY so far
func (s *PostgresSink) Loaded() int64 {
	return s.loaded.Load()
}

func (s *PostgresSink) Consume(ctx context.Context, areas <-chan *area.Area) (int64, error) {
	defer s.pool.Close()
	log := logger.Named("postgres")

	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}
	if err := s.prepareTable(ctx); err != nil {
		return 0, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	log.Info("Starting stream load", zap.String("table", s.fullTableName()))

	rows := make(chan []any, 1024)
	go func() {
		defer close(rows)
		enc := newEncoder(s.transform)
		for {
			select {
			case <-ctx.Done():
				return
			case a, ok := <-areas:
				if !ok {
					return
				}
				select {
				case rows <- areaRow(enc, a):
					s.loaded.Add(1)
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	count, err := conn.Conn().CopyFrom(ctx, pgx.Identifier{s.schema, s.table}, areaColumns, &rowSource{rows: rows})
	if err != nil {
		// unblock the producer so the router is not left waiting
		for range rows {
		}
		return 0, fmt.Errorf("COPY failed: %w", err)
	}

	if _, err := conn.Exec(ctx, fmt.Sprintf("ALTER TABLE %s SET LOGGED", s.fullTableName())); err != nil {
		log.Warn("Failed to set table logged", zap.Error(err))
	}
	log.Info("Stream load complete", zap.String("table", s.fullTableName()), zap.Int64("rows", count))

	if err := s.createIndexes(ctx); err != nil {
		return count, err
	}
	return count, nil
}

func (s *PostgresSink) fullTableName() string {
	return pgx.Identifier{s.schema, s.table}.Sanitize()
}

// ensureSchema creates the PostGIS extension and schema if needed
func (s *PostgresSink) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		return fmt.Errorf("failed to create PostGIS extension: %w", err)
	}
	if s.schema != "public" {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{s.schema}.Sanitize())); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// prepareTable drops and recreates the area table
func (s *PostgresSink) prepareTable(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", s.fullTableName())); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	if _, err := s.pool.Exec(ctx, createTableSQL(s.fullTableName(), s.srid)); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func createTableSQL(table string, srid int) string {
	return fmt.Sprintf(`
		CREATE UNLOGGED TABLE %s (
			area_id BIGINT NOT NULL,
			osm_id BIGINT NOT NULL,
			osm_type CHAR(1) NOT NULL,
			tags JSONB,
			repaired BOOLEAN NOT NULL DEFAULT FALSE,
			geom GEOMETRY(Geometry, %d)
		)
	`, table, srid)
}

// createIndexes adds the spatial and id indexes and analyzes the table
func (s *PostgresSink) createIndexes(ctx context.Context) error {
	log := logger.Named("postgres")
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SET maintenance_work_mem = '2GB'"); err != nil {
		log.Debug("Could not raise maintenance_work_mem", zap.Error(err))
	}

	log.Info("Creating indexes", zap.String("table", s.fullTableName()))
	stmts := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (geom)",
			pgx.Identifier{s.table + "_geom_idx"}.Sanitize(), s.fullTableName()),
		fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (area_id)",
			pgx.Identifier{s.table + "_area_id_idx"}.Sanitize(), s.fullTableName()),
		fmt.Sprintf("ANALYZE %s", s.fullTableName()),
	}
	for _, stmt := range stmts {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run %q: %w", stmt, err)
		}
	}
	log.Info("Indexes created", zap.String("table", s.fullTableName()))
	return nil
}

// areaRow converts an area to COPY values. The EWKB is cloned because the
// encoder reuses its buffer.
func areaRow(enc *wkb.Encoder, a *area.Area) []any {
	return []any{
		a.AreaID(),
		a.ID,
		osmType(a),
		a.Tags.JSON(),
		a.Repaired,
		slices.Clone(enc.EncodeArea(a)),
	}
}

// rowSource implements pgx.CopyFromSource for streaming rows from a channel
type rowSource struct {
	rows    <-chan []any
	current []any
}

func (r *rowSource) Next() bool {
	row, ok := <-r.rows
	if !ok {
		return false
	}
	r.current = row
	return true
}

func (r *rowSource) Values() ([]any, error) {
	return r.current, nil
}

func (r *rowSource) Err() error {
	return nil
}
