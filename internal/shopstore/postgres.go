package shopstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/signshop/internal/shop"
	"github.com/MrWong99/signshop/pkg/types"
)

// Schema is the SQL DDL for the sign_shops table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS sign_shops (
    world      TEXT    NOT NULL,
    x          INTEGER NOT NULL,
    y          INTEGER NOT NULL,
    z          INTEGER NOT NULL,
    kind       TEXT    NOT NULL,
    owner      TEXT,
    price      INTEGER NOT NULL CHECK (price >= 0),
    stock      JSONB,
    device     JSONB,
    items      JSONB   NOT NULL DEFAULT '{}',
    give       JSONB   NOT NULL DEFAULT '{}',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (world, x, y, z)
);
CREATE INDEX IF NOT EXISTS idx_sign_shops_owner ON sign_shops(owner);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database. Each shop is
// one row keyed by its anchor; locations and item templates are JSONB.
type PostgresStore struct {
	db    DB
	close func()
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller keeps ownership of db and is responsible for
// calling [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects a pool to dsn, applies [Schema] and returns a store
// that closes the pool on [PostgresStore.Close].
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("shopstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("shopstore: ping: %w", err)
	}
	s := &PostgresStore{db: pool, close: pool.Close}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate executes the [Schema] DDL against the database, creating the
// sign_shops table and index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("shopstore: migrate: %w", err)
	}
	return nil
}

// Ping checks that the database answers queries.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("shopstore: ping: %w", err)
	}
	return nil
}

// Load implements [Store.Load].
func (s *PostgresStore) Load(ctx context.Context) ([]shop.Record, error) {
	const query = `
		SELECT world, x, y, z, kind, owner, price, stock, device, items, give
		FROM sign_shops
		ORDER BY world, x, y, z`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("shopstore: load: %w", err)
	}
	defer rows.Close()

	records := []shop.Record{}
	for rows.Next() {
		var (
			r                                  shop.Record
			kind                               string
			owner                              *string
			stockJSON, deviceJSON, items, give []byte
		)
		if err := rows.Scan(
			&r.Anchor.World, &r.Anchor.X, &r.Anchor.Y, &r.Anchor.Z,
			&kind, &owner, &r.Price, &stockJSON, &deviceJSON, &items, &give,
		); err != nil {
			return nil, fmt.Errorf("shopstore: load scan: %w", err)
		}
		r.Kind = shop.Kind(kind)
		if owner != nil {
			id, err := uuid.Parse(*owner)
			if err != nil {
				return nil, fmt.Errorf("shopstore: shop at %s: owner %q: %w", r.Anchor, *owner, err)
			}
			r.Owner = &id
		}
		if err := unmarshalColumns(&r, stockJSON, deviceJSON, items, give); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("shopstore: load: %w", err)
	}
	return records, nil
}

// Save implements [Store.Save]. The table is cleared and refilled in one
// transaction.
func (s *PostgresStore) Save(ctx context.Context, records []shop.Record) error {
	const insert = `
		INSERT INTO sign_shops (world, x, y, z, kind, owner, price, stock, device, items, give)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM sign_shops`); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		for _, r := range records {
			args, err := rowArgs(r)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, insert, args...); err != nil {
				return fmt.Errorf("insert shop at %s: %w", r.Anchor, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("shopstore: save: %w", err)
	}
	return nil
}

// Close implements [Store.Close]. It closes the pool opened by
// [OpenPostgres]; stores built with [NewPostgresStore] leave db open.
func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

// rowArgs flattens r into the insert parameters.
func rowArgs(r shop.Record) ([]any, error) {
	var owner *string
	if r.Owner != nil {
		id := r.Owner.String()
		owner = &id
	}
	stock, err := marshalLocation(r.Stock)
	if err != nil {
		return nil, fmt.Errorf("marshal stock: %w", err)
	}
	device, err := marshalLocation(r.Device)
	if err != nil {
		return nil, fmt.Errorf("marshal device: %w", err)
	}
	items, err := json.Marshal(emptyItems(r.Items))
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}
	give, err := json.Marshal(emptyItems(r.Give))
	if err != nil {
		return nil, fmt.Errorf("marshal give: %w", err)
	}
	return []any{
		r.Anchor.World, r.Anchor.X, r.Anchor.Y, r.Anchor.Z,
		string(r.Kind), owner, r.Price, stock, device, items, give,
	}, nil
}

// marshalLocation encodes loc as JSON, or SQL NULL when loc is nil.
func marshalLocation(loc *types.Location) ([]byte, error) {
	if loc == nil {
		return nil, nil
	}
	return json.Marshal(loc)
}

// unmarshalColumns deserialises the JSONB columns into r.
func unmarshalColumns(r *shop.Record, stock, device, items, give []byte) error {
	if len(stock) > 0 {
		r.Stock = &types.Location{}
		if err := json.Unmarshal(stock, r.Stock); err != nil {
			return fmt.Errorf("shopstore: unmarshal stock: %w", err)
		}
	}
	if len(device) > 0 {
		r.Device = &types.Location{}
		if err := json.Unmarshal(device, r.Device); err != nil {
			return fmt.Errorf("shopstore: unmarshal device: %w", err)
		}
	}
	if err := json.Unmarshal(items, &r.Items); err != nil {
		return fmt.Errorf("shopstore: unmarshal items: %w", err)
	}
	if err := json.Unmarshal(give, &r.Give); err != nil {
		return fmt.Errorf("shopstore: unmarshal give: %w", err)
	}
	if len(r.Items) == 0 {
		r.Items = nil
	}
	if len(r.Give) == 0 {
		r.Give = nil
	}
	return nil
}

// emptyItems returns it if non-nil, otherwise an empty map. This ensures
// JSON marshalling produces "{}" instead of "null".
func emptyItems(it types.Items) types.Items {
	if it == nil {
		return types.Items{}
	}
	return it
}
