package storage

import (
	"context"
	"slices"
	"sync"
)

// MemoryBlobs is an in-memory BlobStore. It backs MockStorage and the
// "memory" storage backend.
type MemoryBlobs struct {
	mu        sync.RWMutex
	blobs     map[string]map[string][]byte
	pingError error
	putError  error
	docErrors map[string]error // Put failures by document name
}

// Ensure MemoryBlobs implements BlobStore interface
var _ BlobStore = (*MemoryBlobs)(nil)

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{blobs: make(map[string]map[string][]byte)}
}

func (m *MemoryBlobs) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MemoryBlobs) Close() error {
	return nil
}

func (m *MemoryBlobs) Get(ctx context.Context, campaignID, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[campaignID][name]
	if !ok {
		return nil, nil
	}
	return slices.Clone(data), nil
}

func (m *MemoryBlobs) Put(ctx context.Context, campaignID, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putError != nil {
		return m.putError
	}
	if err := m.docErrors[name]; err != nil {
		return err
	}
	docs, ok := m.blobs[campaignID]
	if !ok {
		docs = make(map[string][]byte)
		m.blobs[campaignID] = docs
	}
	docs[name] = slices.Clone(data)
	return nil
}

func (m *MemoryBlobs) Delete(ctx context.Context, campaignID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, campaignID)
	return nil
}

func (m *MemoryBlobs) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.blobs))
	for id := range m.blobs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// MockStorage is an in-memory Storage for tests. Documents go through the
// same migration and decoding path as the real backends.
type MockStorage struct {
	*DocumentStore
	mem *MemoryBlobs
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	mem := NewMemoryBlobs()
	return &MockStorage{
		DocumentStore: NewDocumentStore(mem, nil),
		mem:           mem,
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mem.mu.Lock()
	defer m.mem.mu.Unlock()
	m.mem.pingError = err
}

// SetSaveError makes every subsequent save fail with err. Pass nil to clear.
func (m *MockStorage) SetSaveError(err error) {
	m.mem.mu.Lock()
	defer m.mem.mu.Unlock()
	m.mem.putError = err
}

// SetDocumentSaveError makes saves of one document, e.g. ContentFile, fail
// with err. Pass nil to clear.
func (m *MockStorage) SetDocumentSaveError(name string, err error) {
	m.mem.mu.Lock()
	defer m.mem.mu.Unlock()
	if m.mem.docErrors == nil {
		m.mem.docErrors = make(map[string]error)
	}
	if err == nil {
		delete(m.mem.docErrors, name)
		return
	}
	m.mem.docErrors[name] = err
}

// PutRaw stores a document verbatim, bypassing encoding (for testing)
func (m *MockStorage) PutRaw(campaignID, name string, data []byte) {
	m.mem.mu.Lock()
	defer m.mem.mu.Unlock()
	docs, ok := m.mem.blobs[campaignID]
	if !ok {
		docs = make(map[string][]byte)
		m.mem.blobs[campaignID] = docs
	}
	docs[name] = slices.Clone(data)
}

// Raw returns a stored document verbatim (for testing)
func (m *MockStorage) Raw(campaignID, name string) []byte {
	data, _ := m.mem.Get(context.Background(), campaignID, name)
	return data
}
