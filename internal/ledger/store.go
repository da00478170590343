package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"MarketForecast/internal/model"
)

// Store persists the whole ledger as one ordered, newest-first snapshot.
type Store interface {
	Load(ctx context.Context) ([]model.PredictionRecord, error)
	Save(ctx context.Context, records []model.PredictionRecord) error
}

// MemoryStore keeps the snapshot in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records []model.PredictionRecord
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(_ context.Context) ([]model.PredictionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PredictionRecord(nil), s.records...), nil
}

func (s *MemoryStore) Save(_ context.Context, records []model.PredictionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]model.PredictionRecord(nil), records...)
	return nil
}

// FileStore keeps the snapshot as a JSON array in a single file.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore { return &FileStore{Path: path} }

// Load returns an empty ledger if the file doesn't exist.
func (s *FileStore) Load(_ context.Context) ([]model.PredictionRecord, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return decode(data)
}

// Save writes to a temp file in the same directory and renames it into place.
func (s *FileStore) Save(_ context.Context, records []model.PredictionRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path)
}

func decode(data []byte) ([]model.PredictionRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var records []model.PredictionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	return records, nil
}
