package store

import (
	"sync"

	"github.com/mcclellann/hpgLedger/pkg/models"
	"github.com/sirupsen/logrus"
)

// MemoryStore is a Storage held in process memory. It goes through the same
// encoding as the SQLite store, so it doubles as a key-value medium for tests.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
	logger *logrus.Logger
}

func NewMemoryStore(logger *logrus.Logger) *MemoryStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MemoryStore{values: map[string][]byte{}, logger: logger}
}

func (m *MemoryStore) Load() (models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Decode(m.values, m.logger), nil
}

func (m *MemoryStore) Save(snapshot models.Snapshot) error {
	values, err := Encode(snapshot)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.values = values
	m.mu.Unlock()
	return nil
}

// Put overwrites one raw key.
func (m *MemoryStore) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Get returns one raw key.
func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStore) Close() error {
	return nil
}
