package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/puntazo/puntazo/internal/database"
)

// Record is a cached authorization. Expiry is in epoch milliseconds.
type Record struct {
	Authorized bool  `json:"authorized"`
	Expiry     int64 `json:"expiry"`
}

// Valid reports whether the record still grants access at now.
func (r Record) Valid(now time.Time) bool {
	return r.Authorized && now.UnixMilli() < r.Expiry
}

// Store persists authorization records. Expired records are left in place
// and ignored on read.
type Store interface {
	Get(ctx context.Context, key string) (Record, bool, error)
	Put(ctx context.Context, key string, rec Record) error
}

type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = rec
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// FileStore keeps records in one JSON object on disk, replaced atomically
// on every write.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(_ context.Context, key string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := records[key]
	return rec, ok, nil
}

func (s *FileStore) Put(_ context.Context, key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return err
	}
	records[key] = rec
	return s.save(records)
}

func (s *FileStore) load() (map[string]Record, error) {
	records := make(map[string]Record)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return records, nil
		}
		return nil, fmt.Errorf("read gate records: %w", err)
	}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode gate records: %w", err)
	}
	return records, nil
}

func (s *FileStore) save(records map[string]Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open tmp: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode gate records: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename tmp: %w", err)
	}
	return nil
}

// PGStore shares records between clients through the gate_authorizations
// table.
type PGStore struct {
	db database.DBTX
}

func NewPGStore(db database.DBTX) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Get(ctx context.Context, key string) (Record, bool, error) {
	var authorized bool
	var expiresAt time.Time
	err := s.db.QueryRow(ctx,
		`SELECT authorized, expires_at FROM gate_authorizations WHERE record_key = $1`,
		key,
	).Scan(&authorized, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get gate record: %w", err)
	}
	return Record{Authorized: authorized, Expiry: expiresAt.UnixMilli()}, true, nil
}

func (s *PGStore) Put(ctx context.Context, key string, rec Record) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO gate_authorizations (record_key, authorized, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (record_key) DO UPDATE
		 SET authorized = EXCLUDED.authorized, expires_at = EXCLUDED.expires_at, updated_at = now()`,
		key, rec.Authorized, time.UnixMilli(rec.Expiry).UTC(),
	)
	if err != nil {
		return fmt.Errorf("put gate record: %w", err)
	}
	return nil
}
