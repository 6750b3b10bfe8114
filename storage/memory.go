package storage

import (
	"encoding"
	"sync"

	"github.com/pkg/errors"

	"github.com/notargets/gobethe/gf"
)

// Memory keeps the archive in a map, for tests and throwaway runs.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
	done map[int]bool
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte), done: make(map[int]bool)}
}

func (m *Memory) Save(name string, loop int, v encoding.BinaryMarshaler) (err error) {
	var data []byte
	if data, err = v.MarshalBinary(); err != nil {
		return errors.Wrapf(err, "encoding %s of loop %d", name, loop)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key(loop, name))] = data
	if name == MuName {
		m.done[loop] = true
	}
	return
}

func (m *Memory) get(k []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[string(k)]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (m *Memory) Load(name string, offset int, into encoding.BinaryUnmarshaler) error {
	return load(m, m.get, name, offset, into)
}

func (m *Memory) LoadMu(offset int) (*gf.BlockMatrix, error) { return loadMu(m, offset) }

// CompletedLoops counts the consecutive completed loops starting at 0.
func (m *Memory) CompletedLoops() (n int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for m.done[n] {
		n++
	}
	return
}

func (m *Memory) Close() error { return nil }
