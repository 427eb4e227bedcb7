package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/changelog"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// RecordStore implements driven.RecordStore and driven.ChangeFeed.
type RecordStore struct {
	store *Store
}

var (
	_ driven.RecordStore = (*RecordStore)(nil)
	_ driven.ChangeFeed  = (*RecordStore)(nil)
)

// Get retrieves the canonical record for a GUID.
// Returns nil and no error if the record does not exist.
func (r *RecordStore) Get(ctx context.Context, guid domain.GUID) (*domain.Record, error) {
	ctx, cancel := r.store.bound(ctx)
	defer cancel()

	var body string
	err := r.store.db.QueryRowContext(ctx, "SELECT body FROM records WHERE guid = ?", string(guid)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying record %s: %w", guid, err)
	}
	rec, err := decodeRecord(body)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Put writes a new canonical revision. The revision check and the write
// are one statement, and the change entry is appended in the same
// transaction.
func (r *RecordStore) Put(ctx context.Context, record domain.Record) (int, error) {
	ctx, cancel := r.store.bound(ctx)
	defer cancel()

	if err := record.Validate(); err != nil {
		return 0, err
	}
	body, err := json.Marshal(record)
	if err != nil {
		return 0, fmt.Errorf("marshalling record: %w", err)
	}
	now := formatTime(r.store.clock.Now())

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var res sql.Result
	if record.Revision == 1 {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO records (guid, kind, revision, tombstone, feed_guid, body, updated_at)
			VALUES (?, ?, 1, ?, ?, ?, ?)
			ON CONFLICT(guid) DO NOTHING
		`, string(record.GUID), string(record.Kind), boolToInt(record.Tombstone), feedOf(record), string(body), now)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE records SET kind = ?, revision = ?, tombstone = ?, feed_guid = ?, body = ?, updated_at = ?
			WHERE guid = ? AND revision = ?
		`, string(record.Kind), record.Revision, boolToInt(record.Tombstone), feedOf(record), string(body), now,
			string(record.GUID), record.Revision-1)
	}
	if err != nil {
		return 0, fmt.Errorf("writing record %s: %w", record.GUID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, r.conflict(ctx, tx, record)
	}

	if err := appendChange(ctx, tx, domain.ChangeFromRecord(record), body, now); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing record %s: %w", record.GUID, err)
	}
	r.store.notify()
	return record.Revision, nil
}

// conflict builds the revision conflict error for a rejected Put.
func (r *RecordStore) conflict(ctx context.Context, tx *sql.Tx, record domain.Record) error {
	expected := 1
	var stored int
	err := tx.QueryRowContext(ctx, "SELECT revision FROM records WHERE guid = ?", string(record.GUID)).Scan(&stored)
	if err == nil {
		expected = stored + 1
	}
	return fmt.Errorf("%w: %s revision %d, expected %d",
		domain.ErrRevisionConflict, record.GUID, record.Revision, expected)
}

// PutSibling keeps a candidate revision beside the canonical record.
// Identical content is stored once.
func (r *RecordStore) PutSibling(ctx context.Context, record domain.Record) error {
	ctx, cancel := r.store.bound(ctx)
	defer cancel()

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshalling sibling: %w", err)
	}
	now := formatTime(r.store.clock.Now())

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
		INSERT INTO record_siblings (guid, hash, body, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guid, hash) DO NOTHING
	`, string(record.GUID), record.ContentHash(), string(body), now)
	if err != nil {
		return fmt.Errorf("saving sibling %s: %w", record.GUID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	change := domain.ChangeFromRecord(record)
	change.Type = domain.ChangeSibling
	if err := appendChange(ctx, tx, change, body, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing sibling %s: %w", record.GUID, err)
	}
	r.store.notify()
	return nil
}

// Siblings returns the pending sibling revisions for a GUID, oldest first.
func (r *RecordStore) Siblings(ctx context.Context, guid domain.GUID) ([]domain.Record, error) {
	ctx, cancel := r.store.bound(ctx)
	defer cancel()

	rows, err := r.store.db.QueryContext(ctx,
		"SELECT body FROM record_siblings WHERE guid = ? ORDER BY id", string(guid))
	if err != nil {
		return nil, fmt.Errorf("querying siblings: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ClearSiblings removes the siblings whose content hash is listed.
func (r *RecordStore) ClearSiblings(ctx context.Context, guid domain.GUID, hashes []string) error {
	ctx, cancel := r.store.bound(ctx)
	defer cancel()

	if len(hashes) == 0 {
		return nil
	}
	args := make([]any, 0, len(hashes)+1)
	args = append(args, string(guid))
	for _, h := range hashes {
		args = append(args, h)
	}
	_, err := r.store.db.ExecContext(ctx,
		"DELETE FROM record_siblings WHERE guid = ? AND hash IN ("+placeholders(len(hashes))+")", args...)
	if err != nil {
		return fmt.Errorf("clearing siblings: %w", err)
	}
	return nil
}

// PostsByFeed returns the live posts referencing feed.
func (r *RecordStore) PostsByFeed(ctx context.Context, feed domain.GUID) ([]domain.GUID, error) {
	ctx, cancel := r.store.bound(ctx)
	defer cancel()

	rows, err := r.store.db.QueryContext(ctx, `
		SELECT guid FROM records
		WHERE feed_guid = ? AND kind = 'post' AND tombstone = 0
		ORDER BY guid
	`, string(feed))
	if err != nil {
		return nil, fmt.Errorf("querying posts of %s: %w", feed, err)
	}
	defer rows.Close()

	var guids []domain.GUID
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scanning post guid: %w", err)
		}
		guids = append(guids, domain.GUID(g))
	}
	return guids, rows.Err()
}

// feedOf returns the feed column value for a record, NULL for non-posts.
func feedOf(record domain.Record) any {
	if record.Post == nil || record.Post.Feed.IsZero() {
		return nil
	}
	return string(record.Post.Feed.GUID)
}

// List returns canonical records of a kind ordered by GUID. An empty kind
// lists every record.
func (r *RecordStore) List(ctx context.Context, kind domain.RecordKind, limit, offset int) ([]domain.Record, error) {
	ctx, cancel := r.store.bound(ctx)
	defer cancel()

	if offset < 0 {
		offset = 0
	}
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT body FROM records
		WHERE ? = '' OR kind = ?
		ORDER BY guid
		LIMIT ? OFFSET ?
	`, string(kind), string(kind), sqlLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Changes returns up to limit changes after since, in Seq order.
func (r *RecordStore) Changes(ctx context.Context, since int64, limit int) ([]domain.Change, error) {
	ctx, cancel := r.store.bound(ctx)
	defer cancel()

	rows, err := r.store.db.QueryContext(ctx, `
		SELECT seq, guid, kind, revision, type, origin, body, at
		FROM changes
		WHERE seq > ?
		ORDER BY seq
		LIMIT ?
	`, since, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying changes: %w", err)
	}
	defer rows.Close()

	var changes []domain.Change //nolint:prealloc // size unknown from query
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating changes: %w", err)
	}
	return changes, nil
}

// Subscribe streams changes after since. Writes through this Store wake
// the subscription; writes by other processes are seen on the next poll.
func (r *RecordStore) Subscribe(ctx context.Context, since int64) (<-chan domain.ChangeBatch, <-chan error) {
	opts := r.store.subscribeOpts
	opts.Wake = r.store.wakeChan
	opts.Clock = r.store.clock
	return changelog.Subscribe(ctx, since, r.Changes, opts)
}

// LatestSeq returns the highest sequence in the log.
func (r *RecordStore) LatestSeq(ctx context.Context) (int64, error) {
	ctx, cancel := r.store.bound(ctx)
	defer cancel()

	var seq int64
	if err := r.store.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM changes").Scan(&seq); err != nil {
		return 0, fmt.Errorf("querying latest sequence: %w", err)
	}
	return seq, nil
}

// appendChange adds an entry to the change log.
func appendChange(ctx context.Context, tx *sql.Tx, c domain.Change, body []byte, at string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO changes (guid, kind, revision, type, origin, body, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(c.GUID), string(c.Kind), c.Revision, int(c.Type), string(c.Origin), string(body), at)
	if err != nil {
		return fmt.Errorf("appending change for %s: %w", c.GUID, err)
	}
	return nil
}

func scanChange(rows *sql.Rows) (domain.Change, error) {
	var (
		c                  domain.Change
		guid, kind, origin string
		typ                int
		body, at           sql.NullString
	)
	if err := rows.Scan(&c.Seq, &guid, &kind, &c.Revision, &typ, &origin, &body, &at); err != nil {
		return c, fmt.Errorf("scanning change: %w", err)
	}
	c.GUID = domain.GUID(guid)
	c.Kind = domain.RecordKind(kind)
	c.Type = domain.ChangeType(typ)
	c.Origin = domain.Source(origin)
	c.At = parseNullableTime(at)
	if body.Valid && body.String != "" {
		rec, err := decodeRecord(body.String)
		if err != nil {
			return c, err
		}
		c.Record = &rec
	}
	return c, nil
}

func scanRecords(rows *sql.Rows) ([]domain.Record, error) {
	var records []domain.Record //nolint:prealloc // size unknown from query
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec, err := decodeRecord(body)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

func decodeRecord(body string) (domain.Record, error) {
	var rec domain.Record
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return rec, fmt.Errorf("unmarshalling record: %w", err)
	}
	return rec, nil
}
