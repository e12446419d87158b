// Package postgres implements ports.Index on PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Index implements ports.Index with a pgx connection pool.
type Index struct {
	pool   *pgxpool.Pool
	schema string
}

var _ ports.Index = (*Index)(nil)

type config struct {
	schema string
}

type Option func(*config) *config

// WithSchema places every table in the named schema, created if needed.
func WithSchema(name string) Option {
	return func(c *config) *config {
		c.schema = name
		return c
	}
}

// New connects to url and applies the schema.
func New(ctx context.Context, url string, options ...Option) (*Index, error) {
	c := &config{}
	for _, option := range options {
		c = option(c)
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	if c.schema != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = c.schema
	}
	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	x := &Index{pool: pool, schema: c.schema}
	if err := x.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return x, nil
}

func (x *Index) migrate(ctx context.Context) error {
	if x.schema != "" {
		if _, err := x.pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{x.schema}.Sanitize()); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	if _, err := x.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (x *Index) Close() {
	x.pool.Close()
}

// RequireKind inserts the kind and, when the unique key is already taken,
// returns the persisted row instead.
func (x *Index) RequireKind(ctx context.Context, kind domain.Kind) (domain.Kind, error) {
	params, err := json.Marshal(kind.Params)
	if err != nil {
		return domain.Kind{}, fmt.Errorf("failed to marshal params of %q: %w", kind.Key, err)
	}
	if kind.Params == nil {
		params = []byte("{}")
	}

	_, err = x.pool.Exec(ctx,
		`INSERT INTO "kind" ("key", "name", "variant", "params") VALUES ($1, $2, $3, $4)`,
		kind.Key, kind.Name, string(kind.Variant), params,
	)
	if err != nil {
		if pgerr := new(pgconn.PgError); !errors.As(err, &pgerr) || pgerr.Code != pgerrcode.UniqueViolation {
			return domain.Kind{}, fmt.Errorf("failed to insert kind %q: %w", kind.Key, err)
		}
	}
	return x.kind(ctx, kind.Key)
}

func (x *Index) kind(ctx context.Context, key string) (domain.Kind, error) {
	var (
		k       domain.Kind
		variant string
		params  []byte
	)
	err := x.pool.QueryRow(ctx,
		`SELECT "key", "name", "variant", "params" FROM "kind" WHERE "key" = $1`, key,
	).Scan(&k.Key, &k.Name, &variant, &params)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Kind{}, domain.ErrKindNotFound
	}
	if err != nil {
		return domain.Kind{}, fmt.Errorf("failed to load kind %q: %w", key, err)
	}
	k.Variant = domain.Variant(variant)
	if err := decodeParams(params, &k); err != nil {
		return domain.Kind{}, err
	}
	return k, nil
}

func decodeParams(raw []byte, k *domain.Kind) error {
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return fmt.Errorf("failed to unmarshal params of %q: %w", k.Key, err)
	}
	if len(params) > 0 {
		k.Params = params
	}
	return nil
}

func (x *Index) AddPrerequisite(ctx context.Context, edge domain.Edge) error {
	_, err := x.pool.Exec(ctx,
		`INSERT INTO "prerequisite" ("source", "prerequisite") VALUES ($1, $2)
		 ON CONFLICT ("source", "prerequisite") DO NOTHING`,
		edge.Source, edge.Prerequisite,
	)
	if err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) {
			switch pgerr.Code {
			case pgerrcode.ForeignKeyViolation, pgerrcode.CheckViolation:
				return &domain.StructuralError{Kind: edge.Source, Reason: pgerr.Message}
			}
		}
		return fmt.Errorf("failed to insert edge: %w", err)
	}
	return nil
}

func (x *Index) Kinds(ctx context.Context) ([]domain.Kind, error) {
	rows, err := x.pool.Query(ctx, `SELECT "key", "name", "variant", "params" FROM "kind" ORDER BY "seq"`)
	if err != nil {
		return nil, fmt.Errorf("failed to list kinds: %w", err)
	}
	defer rows.Close()

	var out []domain.Kind
	for rows.Next() {
		var (
			k       domain.Kind
			variant string
			params  []byte
		)
		if err := rows.Scan(&k.Key, &k.Name, &variant, &params); err != nil {
			return nil, err
		}
		k.Variant = domain.Variant(variant)
		if err := decodeParams(params, &k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (x *Index) Prerequisites(ctx context.Context) ([]domain.Edge, error) {
	rows, err := x.pool.Query(ctx, `SELECT "source", "prerequisite" FROM "prerequisite" ORDER BY "seq"`)
	if err != nil {
		return nil, fmt.Errorf("failed to list prerequisites: %w", err)
	}
	defer rows.Close()

	var out []domain.Edge
	for rows.Next() {
		var e domain.Edge
		if err := rows.Scan(&e.Source, &e.Prerequisite); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (x *Index) PutDataset(ctx context.Context, ds domain.Dataset) error {
	_, err := x.pool.Exec(ctx,
		`INSERT INTO "dataset" ("id", "locator", "created", "valid", "error", "samples")
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT ("id") DO UPDATE SET "locator" = EXCLUDED."locator", "created" = EXCLUDED."created"`,
		ds.ID, ds.Locator, ds.Created, ds.Valid, ds.Error, ds.Samples,
	)
	if err != nil {
		return fmt.Errorf("failed to put dataset %s: %w", ds.ID, err)
	}
	return nil
}

const datasetColumns = `"id", "locator", "created", "valid", "error", "samples"`

func scanDataset(row pgx.Row) (domain.Dataset, error) {
	var ds domain.Dataset
	err := row.Scan(&ds.ID, &ds.Locator, &ds.Created, &ds.Valid, &ds.Error, &ds.Samples)
	return ds, err
}

func (x *Index) Dataset(ctx context.Context, id string) (domain.Dataset, error) {
	ds, err := scanDataset(x.pool.QueryRow(ctx,
		`SELECT `+datasetColumns+` FROM "dataset" WHERE "id" = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Dataset{}, domain.ErrDatasetNotFound
	}
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("failed to load dataset %s: %w", id, err)
	}
	return ds, nil
}

func (x *Index) Datasets(ctx context.Context, filter domain.DatasetFilter) ([]domain.Dataset, error) {
	var (
		where []string
		args  []any
	)
	if !filter.IncludeInvalid {
		where = append(where, `"valid"`)
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where = append(where, fmt.Sprintf(`"created" >= $%d`, len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where = append(where, fmt.Sprintf(`"created" < $%d`, len(args)))
	}
	query := `SELECT ` + datasetColumns + ` FROM "dataset"`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY "created", "id"`

	rows, err := x.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var out []domain.Dataset
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

func (x *Index) SetDatasetStatus(ctx context.Context, id string, status domain.DatasetStatus) error {
	tag, err := x.pool.Exec(ctx,
		`UPDATE "dataset" SET "valid" = $2, "error" = $3,
		 "samples" = CASE WHEN $2 THEN $4 ELSE "samples" END
		 WHERE "id" = $1`,
		id, status.Valid, status.Error, status.Samples,
	)
	if err != nil {
		return fmt.Errorf("failed to update dataset %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDatasetNotFound
	}
	return nil
}

// DeleteDataset relies on ON DELETE CASCADE for the artifact rows.
func (x *Index) DeleteDataset(ctx context.Context, id string) error {
	tag, err := x.pool.Exec(ctx, `DELETE FROM "dataset" WHERE "id" = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDatasetNotFound
	}
	return nil
}

func (x *Index) Artifact(ctx context.Context, datasetID, key string) (domain.Artifact, error) {
	var a domain.Artifact
	err := x.pool.QueryRow(ctx,
		`SELECT "dataset_id", "key", "created" FROM "artifact" WHERE "dataset_id" = $1 AND "key" = $2`,
		datasetID, key,
	).Scan(&a.DatasetID, &a.Key, &a.Created)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Artifact{}, domain.ErrArtifactNotFound
	}
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("failed to load artifact: %w", err)
	}
	return a, nil
}

func (x *Index) Artifacts(ctx context.Context, datasetID string) ([]domain.Artifact, error) {
	rows, err := x.pool.Query(ctx,
		`SELECT "dataset_id", "key", "created" FROM "artifact" WHERE "dataset_id" = $1 ORDER BY "key"`,
		datasetID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		if err := rows.Scan(&a.DatasetID, &a.Key, &a.Created); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (x *Index) Begin(ctx context.Context) (ports.IndexTx, error) {
	t, err := x.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &tx{tx: t}, nil
}

type tx struct {
	tx   pgx.Tx
	done bool
}

// InsertArtifact relies on the (dataset_id, key) primary key: a concurrent
// insert of the same pair waits for the other transaction and then conflicts.
func (t *tx) InsertArtifact(ctx context.Context, a domain.Artifact) error {
	tag, err := t.tx.Exec(ctx,
		`INSERT INTO "artifact" ("dataset_id", "key", "created") VALUES ($1, $2, $3)
		 ON CONFLICT ("dataset_id", "key") DO NOTHING`,
		a.DatasetID, a.Key, a.Created,
	)
	if err != nil {
		return fmt.Errorf("failed to insert artifact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrArtifactExists
	}
	return nil
}

func (t *tx) DeleteArtifact(ctx context.Context, datasetID, key string) error {
	_, err := t.tx.Exec(ctx,
		`DELETE FROM "artifact" WHERE "dataset_id" = $1 AND "key" = $2`, datasetID, key)
	if err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	t.done = true
	err := t.tx.Commit(ctx)
	if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UniqueViolation {
		return domain.ErrArtifactExists
	}
	return err
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback(ctx)
}
