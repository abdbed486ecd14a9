package keydb

import (
	"context"
	"database/sql"
	"log/slog"

	_ "embed"
)

//go:embed schema.sql
var Schema string

// Store persists code records. Records are appended and updated, never
// physically deleted. A single writer is assumed per store.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) Store {
	return Store{db: db}
}

// Query returns records matching the filters in insertion order.
// An empty platform or game matches everything; a concrete platform
// additionally matches universal records.
func (s Store) Query(ctx context.Context, platform Platform, game Game, includeRedeemed bool) ([]*Code, error) {
	qry := `SELECT id, description, code, platform, game, redeemed, expires, note, source FROM keys`
	var conds []string
	var params []any

	if platform != "" {
		conds = append(conds, "(platform = ? OR platform = 'universal')")
		params = append(params, string(platform))
	}
	if game != "" {
		conds = append(conds, "game = ?")
		params = append(params, string(game))
	}
	if !includeRedeemed {
		conds = append(conds, "redeemed = 0")
	}
	for i, cond := range conds {
		if i == 0 {
			qry += " WHERE " + cond
		} else {
			qry += " AND " + cond
		}
	}
	qry += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, qry, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []*Code
	for rows.Next() {
		c := &Code{}
		err := rows.Scan(
			&c.ID, &c.Description, &c.Code, &c.Platform,
			&c.Game, &c.Redeemed, &c.Expires, &c.Note, &c.Source,
		)
		if err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// Insert persists a new record unless one with the same
// (code, platform, game) identity exists. Reports whether a row was
// written; on success the record's ID is set and its dirty flag cleared.
func (s Store) Insert(ctx context.Context, code *Code) (bool, error) {
	key := code.Key()

	var existing int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM keys WHERE code = ? AND platform = ? AND game = ?`,
		key.Code, string(key.Platform), string(key.Game),
	).Scan(&existing)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, err
	}

	slog.DebugContext(ctx, "inserting key",
		"game", code.Game, "code", key.Code, "platform", code.Platform)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO keys (description, code, platform, game, redeemed, expires, note, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		code.Description, key.Code, string(key.Platform), string(key.Game),
		code.Redeemed, code.Expires, code.Note, code.Source,
	)
	if err != nil {
		return false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	code.ID = id
	code.Code = key.Code
	code.dirty = false
	return true, nil
}

// Commit writes the mutable fields of an already-persisted record and
// clears its dirty flag.
func (s Store) Commit(ctx context.Context, code *Code) error {
	if code.ID == 0 {
		_, err := s.Insert(ctx, code)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE keys SET description = ?, redeemed = ?, expires = ?, note = ? WHERE id = ?`,
		code.Description, code.Redeemed, code.Expires, code.Note, code.ID,
	)
	if err != nil {
		return err
	}
	code.dirty = false
	return nil
}

// SetRedeemed marks the record redeemed and persists it.
func (s Store) SetRedeemed(ctx context.Context, code *Code) error {
	code.MarkRedeemed()
	return s.Commit(ctx, code)
}

// Load reads matching records into a fresh collection.
func (s Store) Load(ctx context.Context, platform Platform, game Game, includeRedeemed bool) (*Collection, error) {
	codes, err := s.Query(ctx, platform, game, includeRedeemed)
	if err != nil {
		return nil, err
	}
	col := NewCollection()
	for _, c := range codes {
		col.Insert(c)
	}
	return col, nil
}
