// Package ledger provides a verifiable, append-only audit log of changes to
// the entity stores. Every entry is hash-chained to the previous entry, so
// editing or deleting a row is detectable.
package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantumlife/lifectx/internal/logging"
	"github.com/quantumlife/lifectx/internal/store"
)

// Genesis is the prev_hash of the first entry
const Genesis = "GENESIS:0000000000000000000000000000000000000000000000000000000000000000"

// Store manages the append-only audit ledger
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates a ledger store on a migrated database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Entry represents an immutable audit log entry
type Entry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`      // "task.created", "event.updated", ...
	Actor      string    `json:"actor"`       // "user", "system", "calendar"
	EntityType string    `json:"entity_type"` // "task", "context", "event"
	EntityID   string    `json:"entity_id"`
	Details    string    `json:"details"` // JSON blob
	PrevHash   string    `json:"prev_hash"`
	Hash       string    `json:"hash"`
}

// Actor constants
const (
	ActorUser     = "user"
	ActorSystem   = "system"
	ActorCalendar = "calendar"
)

// Action builds the action name for a store change, e.g. "task.created"
func Action(family string, op store.Op) string {
	return family + "." + string(op)
}

// Append adds a new entry chained to the current head.
// It is the only way entries are written.
func (s *Store) Append(ctx context.Context, action, actor, entityType, entityID string, details any) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var detailsJSON string
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return nil, fmt.Errorf("marshal details: %w", err)
		}
		detailsJSON = string(data)
	}

	prevHash, err := s.lastHash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get last hash: %w", err)
	}

	entry := &Entry{
		ID:         uuid.NewString(),
		Timestamp:  s.now().UTC(),
		Action:     action,
		Actor:      actor,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    detailsJSON,
		PrevHash:   prevHash,
	}
	entry.Hash = computeHash(entry)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledger (id, timestamp, action, actor, entity_type, entity_id, details, prev_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, formatTime(entry.Timestamp), entry.Action, entry.Actor, entry.EntityType, entry.EntityID,
		entry.Details, entry.PrevHash, entry.Hash)
	if err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	return entry, nil
}

func (s *Store) lastHash(ctx context.Context) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM ledger ORDER BY seq DESC LIMIT 1`).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Genesis, nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// computeHash is the SHA-256 of the entry's canonical form, excluding Hash
func computeHash(entry *Entry) string {
	canonical := struct {
		ID         string `json:"id"`
		Timestamp  string `json:"timestamp"`
		Action     string `json:"action"`
		Actor      string `json:"actor"`
		EntityType string `json:"entity_type"`
		EntityID   string `json:"entity_id"`
		Details    string `json:"details"`
		PrevHash   string `json:"prev_hash"`
	}{
		ID:         entry.ID,
		Timestamp:  formatTime(entry.Timestamp),
		Action:     entry.Action,
		Actor:      entry.Actor,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Details:    entry.Details,
		PrevHash:   entry.PrevHash,
	}

	data, _ := json.Marshal(canonical)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

const selectColumns = `SELECT id, timestamp, action, actor, entity_type, entity_id, details, prev_hash, hash FROM ledger`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var entry Entry
	var ts string
	var entityType, entityID, details, prevHash sql.NullString

	if err := row.Scan(
		&entry.ID, &ts, &entry.Action, &entry.Actor,
		&entityType, &entityID, &details, &prevHash, &entry.Hash,
	); err != nil {
		return nil, err
	}

	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("entry %s: bad timestamp %q: %w", entry.ID, ts, err)
	}
	entry.Timestamp = parsed
	entry.EntityType = entityType.String
	entry.EntityID = entityID.String
	entry.Details = details.String
	entry.PrevHash = prevHash.String
	return &entry, nil
}

// VerifyChain walks the ledger in append order. It returns nil if every link
// holds, or a *ChainError for the first broken one.
func (s *Store) VerifyChain(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	expectedPrevHash := Genesis
	entryNum := 0

	for rows.Next() {
		entryNum++
		entry, err := scanEntry(rows)
		if err != nil {
			return fmt.Errorf("scan entry %d: %w", entryNum, err)
		}

		if entry.PrevHash != expectedPrevHash {
			return &ChainError{
				EntryNum:     entryNum,
				EntryID:      entry.ID,
				ExpectedHash: expectedPrevHash,
				ActualHash:   entry.PrevHash,
				Type:         ChainBroken,
			}
		}

		if expected := computeHash(entry); entry.Hash != expected {
			return &ChainError{
				EntryNum:     entryNum,
				EntryID:      entry.ID,
				ExpectedHash: expected,
				ActualHash:   entry.Hash,
				Type:         HashMismatch,
			}
		}

		expectedPrevHash = entry.Hash
	}

	return rows.Err()
}

// ChainError kinds
const (
	ChainBroken  = "chain_broken"
	HashMismatch = "hash_mismatch"
)

// ChainError represents a broken chain error
type ChainError struct {
	EntryNum     int
	EntryID      string
	ExpectedHash string
	ActualHash   string
	Type         string // ChainBroken or HashMismatch
}

func (e *ChainError) Error() string {
	if e.Type == ChainBroken {
		return fmt.Sprintf("chain broken at entry %d (ID: %s): expected prev_hash %s, got %s",
			e.EntryNum, e.EntryID, abbrev(e.ExpectedHash), abbrev(e.ActualHash))
	}
	return fmt.Sprintf("hash mismatch at entry %d (ID: %s): expected %s, got %s",
		e.EntryNum, e.EntryID, abbrev(e.ExpectedHash), abbrev(e.ActualHash))
}

func abbrev(h string) string {
	if len(h) <= 16 {
		return h
	}
	return h[:16] + "..."
}

// QueryOptions filters a listing. Zero fields place no constraint.
type QueryOptions struct {
	Action     string
	Actor      string
	EntityType string
	EntityID   string
	Limit      int
	Offset     int
}

// Query returns matching entries, newest first
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]*Entry, error) {
	query := selectColumns + ` WHERE 1=1`
	var args []any

	if opts.Action != "" {
		query += " AND action = ?"
		args = append(args, opts.Action)
	}
	if opts.Actor != "" {
		query += " AND actor = ?"
		args = append(args, opts.Actor)
	}
	if opts.EntityType != "" {
		query += " AND entity_type = ?"
		args = append(args, opts.EntityType)
	}
	if opts.EntityID != "" {
		query += " AND entity_id = ?"
		args = append(args, opts.EntityID)
	}

	query += " ORDER BY seq DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetByID returns a single entry, or nil when no entry has that id
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	entry, err := scanEntry(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query entry: %w", err)
	}
	return entry, nil
}

// Count returns the total number of entries
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ledger").Scan(&count)
	return count, err
}

// History returns all entries for one record, newest first
func (s *Store) History(ctx context.Context, entityType, entityID string) ([]*Entry, error) {
	return s.Query(ctx, QueryOptions{EntityType: entityType, EntityID: entityID})
}

// Summary statistics
type Summary struct {
	TotalEntries int            `json:"total_entries"`
	ByAction     map[string]int `json:"by_action"`
	ByEntityType map[string]int `json:"by_entity_type"`
	ChainValid   bool           `json:"chain_valid"`
	ChainError   string         `json:"chain_error,omitempty"`
}

// Summarize returns counts and the chain status
func (s *Store) Summarize(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		ByAction:     make(map[string]int),
		ByEntityType: make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ledger").Scan(&summary.TotalEntries); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "action", summary.ByAction); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "entity_type", summary.ByEntityType); err != nil {
		return nil, err
	}

	if err := s.VerifyChain(ctx); err != nil {
		summary.ChainError = err.Error()
	} else {
		summary.ChainValid = true
	}
	return summary, nil
}

// countBy fills into with row counts grouped by column, which must be a
// trusted column name.
func (s *Store) countBy(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM ledger WHERE "+column+" IS NOT NULL AND "+column+" != '' GROUP BY "+column)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

// Recorder appends an entry for every store change it is subscribed to
type Recorder struct {
	store *Store
	actor string
}

// NewRecorder creates a recorder attributing entries to actor
func NewRecorder(store *Store, actor string) *Recorder {
	return &Recorder{store: store, actor: actor}
}

// Record appends an entry for ch. Loads are not recorded.
func (r *Recorder) Record(ctx context.Context, ch store.Change) error {
	if ch.Op == store.OpLoaded {
		return nil
	}
	_, err := r.store.Append(ctx, Action(ch.Family, ch.Op), r.actor, ch.Family, ch.ID, ch.Record)
	return err
}

// Observe is a store subscriber. Ledger failures are logged, never returned
// to the mutating caller, whose change has already been persisted.
func (r *Recorder) Observe(ch store.Change) {
	if err := r.Record(context.Background(), ch); err != nil {
		logging.WithFields(map[string]interface{}{
			"family": ch.Family,
			"op":     string(ch.Op),
			"id":     ch.ID,
		}).Error("ledger append failed: %v", err)
	}
}
