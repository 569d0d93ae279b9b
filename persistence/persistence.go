// Package persistence provides atomic file persistence helpers.
//
// Both the vector index and the metadata store re-derive their state from
// disk on startup, so a half-written file is never acceptable: every save
// goes through a temp file in the target directory, fsync, and an atomic
// rename over the previous durable copy.
package persistence

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
)

// SaveToFile writes data produced by writeFunc to filename atomically.
//
// The data is written to a temp file in the same directory (so the rename
// cannot cross filesystems), flushed, fsynced, and renamed over the
// target. On POSIX the directory is fsynced afterwards so the rename
// itself is durable.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	// Match typical file permissions (best-effort).
	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	// Success: prevent deferred cleanup from removing the final file.
	tmpName = ""
	return nil
}

// LoadFromFile opens filename and passes a buffered reader to readFunc.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := bufio.NewReaderSize(f, 256*1024)
	return readFunc(buf)
}
