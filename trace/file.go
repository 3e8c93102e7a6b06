package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// File is a Source backed by a trace file on disk. Files whose name ends in
// ".gz" are decompressed transparently.
type File struct {
	*Reader

	path string
	file *os.File
	gz   *gzip.Reader
}

// Open opens the trace at path. The caller owns the returned File and must
// Close it.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	tf := &File{path: path, file: f}

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to open compressed trace: %w", err)
		}
		tf.gz = gz
		r = gz
	}

	tf.Reader = NewReader(r)

	return tf, nil
}

// Path returns the path the trace was opened from.
func (f *File) Path() string {
	return f.path
}

// Close releases the underlying file handle.
func (f *File) Close() error {
	var gzErr error
	if f.gz != nil {
		gzErr = f.gz.Close()
	}

	return errors.Join(gzErr, f.file.Close())
}
