package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pairdb/ring/internal/store"
	"github.com/pairdb/ring/internal/versioning"
)

// PostgresInnerStore is an alternate, durable InnerStore backend (C12),
// grounded on coordinator/internal/store/metadata_store.go's pgxpool
// usage. Enabled via config's metadata.backend: postgres; the default
// remains MemoryInnerStore.
//
// Table layout:
//
//	meta_key   text primary key
//	meta_value text not null
//	clock      bytea not null
type PostgresInnerStore struct {
	pool *pgxpool.Pool
}

// NewPostgresInnerStore connects to connString and returns a ready
// InnerStore. Callers must have already applied the schema above.
func NewPostgresInnerStore(ctx context.Context, connString string) (*PostgresInnerStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("metadata: postgres connect: %w", err)
	}
	return &PostgresInnerStore{pool: pool}, nil
}

func (p *PostgresInnerStore) Get(key string) ([]versioning.Versioned[string], error) {
	ctx := context.Background()
	row := p.pool.QueryRow(ctx, `SELECT meta_value, clock FROM metadata_kv WHERE meta_key = $1`, key)

	var value string
	var clockBytes []byte
	if err := row.Scan(&value, &clockBytes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("metadata: postgres get %q: %w", key, err)
	}
	clock, err := versioning.FromBytes(clockBytes)
	if err != nil {
		return nil, err
	}
	return []versioning.Versioned[string]{versioning.NewVersioned(value, clock)}, nil
}

func (p *PostgresInnerStore) Put(key string, value versioning.Versioned[string]) error {
	ctx := context.Background()
	existing, err := p.Get(key)
	if err != nil {
		return err
	}
	if len(existing) == 1 {
		switch existing[0].Version.Compare(value.Version) {
		case versioning.After, versioning.Equal:
			return store.ErrObsoleteVersion
		}
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO metadata_kv (meta_key, meta_value, clock)
		VALUES ($1, $2, $3)
		ON CONFLICT (meta_key) DO UPDATE SET meta_value = $2, clock = $3
	`, key, value.Value, value.Version.ToBytes())
	if err != nil {
		return fmt.Errorf("metadata: postgres put %q: %w", key, err)
	}
	return nil
}

func (p *PostgresInnerStore) Close() error {
	p.pool.Close()
	return nil
}
