package savestate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrSlotNotFound indicates the requested slot holds no save.
var ErrSlotNotFound = errors.New("save slot not found")

// SlotInfo describes a used slot without decoding its save.
type SlotInfo struct {
	Slot    int
	Name    string
	Game    string
	Tick    uint64
	SavedAt time.Time
}

// Store keeps saves in a SQLite database, one row per slot.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// Open opens or creates the save database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating save directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS saves (
		slot INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		game TEXT NOT NULL,
		tick INTEGER NOT NULL,
		saved_at INTEGER NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save writes g to slot, replacing what was there.
func (s *Store) Save(ctx context.Context, slot int, name string, g *SaveGame) error {
	data, err := Marshal(g)
	if err != nil {
		return fmt.Errorf("encoding save: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO saves (slot, name, game, tick, saved_at, data) VALUES (?, ?, ?, ?, ?, ?)",
		slot, name, g.Game, int64(g.Scheduler.Tick), s.now().UnixMilli(), data,
	)
	if err != nil {
		return fmt.Errorf("saving slot %d: %w", slot, err)
	}
	return nil
}

// Load reads the save in slot.
func (s *Store) Load(ctx context.Context, slot int) (*SaveGame, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM saves WHERE slot = ?", slot).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("slot %d: %w", slot, ErrSlotNotFound)
		}
		return nil, fmt.Errorf("querying slot %d: %w", slot, err)
	}
	return Unmarshal(data)
}

// List returns the used slots in slot order.
func (s *Store) List(ctx context.Context) ([]SlotInfo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT slot, name, game, tick, saved_at FROM saves ORDER BY slot")
	if err != nil {
		return nil, fmt.Errorf("listing saves: %w", err)
	}
	defer rows.Close()

	var slots []SlotInfo
	for rows.Next() {
		var info SlotInfo
		var tick, savedAt int64
		if err := rows.Scan(&info.Slot, &info.Name, &info.Game, &tick, &savedAt); err != nil {
			return nil, fmt.Errorf("scanning save: %w", err)
		}
		info.Tick = uint64(tick)
		info.SavedAt = time.UnixMilli(savedAt)
		slots = append(slots, info)
	}
	return slots, rows.Err()
}

// Delete empties slot.
func (s *Store) Delete(ctx context.Context, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM saves WHERE slot = ?", slot)
	if err != nil {
		return fmt.Errorf("deleting slot %d: %w", slot, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("slot %d: %w", slot, ErrSlotNotFound)
	}
	return nil
}
