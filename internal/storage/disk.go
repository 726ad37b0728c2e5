package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DiskStore implements Store on the local file system. Read and write
// permission is decided by access(2) for the server process.
type DiskStore struct {
	dirMode  os.FileMode
	fileMode os.FileMode
}

// NewDiskStore creates a disk store that creates directories 0755 and files 0644.
func NewDiskStore() *DiskStore {
	return &DiskStore{dirMode: 0755, fileMode: 0644}
}

// Exists reports whether something is present at path.
func (s *DiskStore) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CanRead reports whether the process may read path.
func (s *DiskStore) CanRead(path string) bool {
	return unix.Access(path, unix.R_OK) == nil
}

// CanWrite reports whether the process may write path.
func (s *DiskStore) CanWrite(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}

// Size returns the length of the file at path in bytes.
func (s *DiskStore) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ReadAll reads at most size bytes from path.
func (s *DiskStore) ReadAll(path string, size int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, size)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return buf[:n], nil
}

// WriteAll replaces the file at path with data.
func (s *DiskStore) WriteAll(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), s.dirMode); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, s.fileMode)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// Delete removes path.
func (s *DiskStore) Delete(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
