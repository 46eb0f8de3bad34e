// Package mmap maps files into memory so large dataset reads come
// straight from the page cache instead of double-buffering through
// stream copies. Callers must copy anything they keep before Close;
// the CSV and JSON parsers do, the Arrow reader does not, which is why
// the dataset layer maps only the text formats.
package mmap

import (
	"os"
	"sync"

	"github.com/quiverdata/quiver/pkg/errors"
)

// Reader is a read-only memory-mapped file. Safe for concurrent reads;
// Close may be called once readers are done with the mapped bytes.
type Reader struct {
	mu   sync.Mutex
	file *os.File
	data []byte
}

// Open maps the file at path into memory and advises the kernel of
// sequential access. Empty files cannot be mapped and return an error.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeIO, "opening %s", path)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, errors.ErrorTypeIO, "stating %s", path)
	}
	size := stat.Size()
	if size == 0 {
		f.Close()
		return nil, errors.Newf(errors.ErrorTypeIO, "cannot map empty file %s", path)
	}

	data, err := mmap(int(f.Fd()), 0, int(size), protRead, mapShared)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, errors.ErrorTypeIO, "mapping %s", path)
	}

	// Advice only; mapping works without it.
	_ = madvise(data, madvSequential)

	return &Reader{file: f, data: data}, nil
}

// Bytes returns the mapped file contents. The slice is valid until
// Close.
func (r *Reader) Bytes() []byte {
	return r.data
}

// Len returns the mapped file size in bytes.
func (r *Reader) Len() int64 {
	return int64(len(r.data))
}

// Close unmaps and closes the file. Safe to call more than once.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.data != nil {
		err = munmap(r.data)
		r.data = nil
	}
	if r.file != nil {
		if cerr := r.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		r.file = nil
	}
	return err
}
