// Package storage performs byte-level file I/O on resolved paths.
package storage

import (
	"fmt"
)

// Store is the storage primitive behind the file service. All paths are
// absolute paths already confined by the path resolver. Permission answers
// come from the storage medium itself; callers do not reimplement them.
type Store interface {
	// Exists reports whether something is present at path.
	Exists(path string) bool

	// CanRead reports whether the medium permits reading path.
	// A missing path is not readable.
	CanRead(path string) bool

	// CanWrite reports whether the medium permits writing path.
	// A missing path is not writable.
	CanWrite(path string) bool

	// Size returns the length of the file at path in bytes.
	Size(path string) (int64, error)

	// ReadAll reads at most size bytes. If the file turns out to be shorter,
	// the short slice is returned without error.
	ReadAll(path string, size int64) ([]byte, error)

	// WriteAll replaces the file at path with data, creating it and any
	// missing parent directories.
	WriteAll(path string, data []byte) error

	// Delete removes path. Removing a missing path is not an error.
	Delete(path string) error
}

// Backend names accepted by New.
const (
	BackendDisk   = "disk"
	BackendMemory = "memory"
)

// New creates a store for the named backend.
func New(backend string) (Store, error) {
	switch backend {
	case BackendDisk, "":
		return NewDiskStore(), nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// Ensure implementations satisfy the interface
var (
	_ Store = (*DiskStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
