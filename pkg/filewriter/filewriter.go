// Package filewriter writes files atomically.
package filewriter

import (
	"os"
	"path/filepath"
)

// FileWriter writes to a temp file in the target's directory and renames it
// over the target on Close. After the first write error every later write
// is a no-op and Close returns that error without touching the target.
type FileWriter struct {
	p    string   // target filename
	f    *os.File // temp file
	werr error    // first error encountered while writing
	done bool
}

// New returns a FileWriter for p. The parent directory must exist.
func New(p string) (*FileWriter, error) {
	f, err := os.CreateTemp(filepath.Dir(p), filepath.Base(p)+".*")
	if err != nil {
		return nil, err
	}
	return &FileWriter{p: p, f: f}, nil
}

// Write implements io.Writer.
func (fw *FileWriter) Write(b []byte) (int, error) {
	if fw.werr != nil {
		return 0, fw.werr
	}
	var n int
	n, fw.werr = fw.f.Write(b)
	return n, fw.werr
}

// Close renames the temp file to the path passed to New.
func (fw *FileWriter) Close() error {
	if fw.done {
		return nil
	}
	fw.done = true
	defer os.Remove(fw.f.Name()) // no-op on success
	cerr := fw.f.Close()
	if fw.werr != nil {
		return fw.werr
	}
	if cerr != nil {
		return cerr
	}
	return os.Rename(fw.f.Name(), fw.p)
}

// Abort discards the temp file and leaves the target untouched.
func (fw *FileWriter) Abort() {
	if fw.done {
		return
	}
	fw.done = true
	fw.f.Close()
	os.Remove(fw.f.Name())
}
