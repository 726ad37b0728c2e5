package storage

import (
	"fmt"
	"io/fs"
	"os"
	"sync"
)

type memFile struct {
	data []byte
	mode os.FileMode
}

// MemoryStore implements Store in memory. Each file carries owner mode bits
// that decide CanRead and CanWrite.
// Useful for testing and for throwaway deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]*memFile
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string]*memFile),
	}
}

// Exists reports whether a file is stored at path.
func (s *MemoryStore) Exists(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.files[path]
	return ok
}

// CanRead reports whether path exists with the owner read bit set.
func (s *MemoryStore) CanRead(path string) bool {
	return s.hasMode(path, 0400)
}

// CanWrite reports whether path exists with the owner write bit set.
func (s *MemoryStore) CanWrite(path string) bool {
	return s.hasMode(path, 0200)
}

func (s *MemoryStore) hasMode(path string, bit os.FileMode) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[path]
	return ok && f.mode&bit != 0
}

// Size returns the stored length of path.
func (s *MemoryStore) Size(path string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[path]
	if !ok {
		return 0, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return int64(len(f.data)), nil
}

// ReadAll returns a copy of at most size bytes of path.
func (s *MemoryStore) ReadAll(path string, size int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	n := int64(len(f.data))
	if size < n {
		n = size
	}
	out := make([]byte, n)
	copy(out, f.data)
	return out, nil
}

// WriteAll replaces the contents of path. Existing mode bits are kept.
func (s *MemoryStore) WriteAll(path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)

	if f, ok := s.files[path]; ok {
		if f.mode&0200 == 0 {
			return &fs.PathError{Op: "open", Path: path, Err: fs.ErrPermission}
		}
		f.data = buf
		return nil
	}
	s.files[path] = &memFile{data: buf, mode: 0644}
	return nil
}

// Delete removes path.
func (s *MemoryStore) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.files, path)
	return nil
}

// Chmod sets the mode bits of an existing file.
func (s *MemoryStore) Chmod(path string, mode os.FileMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[path]
	if !ok {
		return fmt.Errorf("chmod %s: %w", path, fs.ErrNotExist)
	}
	f.mode = mode
	return nil
}
