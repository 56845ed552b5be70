package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hpungsan/klip/internal/entry"
)

const insertEntry = `
	INSERT INTO entries (
		position, id, kind, text, formatted, image_json, files_json,
		preview, size_bytes, created_at, last_used_at, usage_count,
		favorite, tags_json, assets_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectEntries = `
	SELECT id, kind, text, formatted, image_json, files_json,
		preview, size_bytes, created_at, last_used_at, usage_count,
		favorite, tags_json, assets_json
	FROM entries
	ORDER BY position ASC
`

// SaveEntries replaces the stored history with entries, newest first.
// The write is a single transaction, so readers see either the old or the new snapshot.
func SaveEntries(ctx context.Context, db *sql.DB, entries []entry.Entry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertEntry)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		row, err := toRow(e)
		if err != nil {
			return fmt.Errorf("encode entry %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			i, e.ID, string(e.Kind), row.text, row.formatted, row.image, row.files,
			e.Preview, e.SizeBytes, e.CreatedAt.UnixNano(), row.lastUsed, e.UsageCount,
			e.Favorite, row.tags, row.assets,
		); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// LoadEntries returns the stored history in saved order.
// Rows are returned as stored; validation is the history store's job.
func LoadEntries(ctx context.Context, db *sql.DB) ([]entry.Entry, error) {
	rows, err := db.QueryContext(ctx, selectEntries)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []entry.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// CountEntries returns the number of stored entries.
func CountEntries(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

type entryRow struct {
	text, formatted sql.NullString
	image, files    sql.NullString
	tags, assets    sql.NullString
	lastUsed        sql.NullInt64
}

func toRow(e entry.Entry) (entryRow, error) {
	var r entryRow
	r.text = toNullString(e.Text)
	r.formatted = toNullString(e.Formatted)

	var err error
	if e.Image != nil {
		if r.image, err = toNullJSON(e.Image); err != nil {
			return r, err
		}
	}
	if e.Files != nil {
		if r.files, err = toNullJSON(e.Files); err != nil {
			return r, err
		}
	}
	if len(e.Tags) > 0 {
		if r.tags, err = toNullJSON(e.Tags); err != nil {
			return r, err
		}
	}
	if len(e.Assets) > 0 {
		if r.assets, err = toNullJSON(e.Assets); err != nil {
			return r, err
		}
	}
	if e.LastUsedAt != nil {
		r.lastUsed = sql.NullInt64{Int64: e.LastUsedAt.UnixNano(), Valid: true}
	}
	return r, nil
}

func scanEntry(rows *sql.Rows) (entry.Entry, error) {
	var (
		e         entry.Entry
		kind      string
		r         entryRow
		createdAt int64
	)
	if err := rows.Scan(
		&e.ID, &kind, &r.text, &r.formatted, &r.image, &r.files,
		&e.Preview, &e.SizeBytes, &createdAt, &r.lastUsed, &e.UsageCount,
		&e.Favorite, &r.tags, &r.assets,
	); err != nil {
		return e, fmt.Errorf("scan entry: %w", err)
	}

	e.Kind = entry.Kind(kind)
	e.Text = r.text.String
	e.Formatted = r.formatted.String
	e.CreatedAt = time.Unix(0, createdAt).UTC()
	if r.lastUsed.Valid {
		t := time.Unix(0, r.lastUsed.Int64).UTC()
		e.LastUsedAt = &t
	}

	if r.image.Valid {
		e.Image = &entry.ImageMeta{}
		if err := json.Unmarshal([]byte(r.image.String), e.Image); err != nil {
			return e, fmt.Errorf("decode image of %s: %w", e.ID, err)
		}
	}
	if r.files.Valid {
		e.Files = &entry.FileListMeta{}
		if err := json.Unmarshal([]byte(r.files.String), e.Files); err != nil {
			return e, fmt.Errorf("decode files of %s: %w", e.ID, err)
		}
	}
	if r.tags.Valid {
		if err := json.Unmarshal([]byte(r.tags.String), &e.Tags); err != nil {
			return e, fmt.Errorf("decode tags of %s: %w", e.ID, err)
		}
	}
	if r.assets.Valid {
		if err := json.Unmarshal([]byte(r.assets.String), &e.Assets); err != nil {
			return e, fmt.Errorf("decode assets of %s: %w", e.ID, err)
		}
	}
	return e, nil
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toNullJSON(v any) (sql.NullString, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
