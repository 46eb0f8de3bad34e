package compression

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ByExtension inspects the final extension of path and returns the
// codec it implies plus the path with that extension removed, so
// "trades.csv.zst" yields (Zstd, "trades.csv"). Paths with no codec
// extension return (None, path) unchanged.
func ByExtension(path string) (Algorithm, string) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return Gzip, strings.TrimSuffix(path, filepath.Ext(path))
	case ".zst":
		return Zstd, strings.TrimSuffix(path, filepath.Ext(path))
	case ".lz4":
		return LZ4, strings.TrimSuffix(path, filepath.Ext(path))
	case ".snappy":
		return Snappy, strings.TrimSuffix(path, filepath.Ext(path))
	case ".s2":
		return S2, strings.TrimSuffix(path, filepath.Ext(path))
	default:
		return None, path
	}
}

// Extension returns the canonical file extension for a codec, with the
// leading dot, or "" for None and Deflate (which has no conventional
// standalone extension).
func Extension(algo Algorithm) string {
	switch algo {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	case LZ4:
		return ".lz4"
	case Snappy:
		return ".snappy"
	case S2:
		return ".s2"
	default:
		return ""
	}
}

// NewStreamWriter wraps dst so writes are compressed with algo at the
// given level. Closing the returned writer flushes the codec but does
// not close dst.
func NewStreamWriter(dst io.Writer, algo Algorithm, level Level) (io.WriteCloser, error) {
	switch algo {
	case None:
		return nopWriteCloser{dst}, nil
	case Gzip:
		return gzip.NewWriterLevel(dst, mapGzipLevel(level))
	case Snappy:
		return snappy.NewBufferedWriter(dst), nil
	case LZ4:
		w := lz4.NewWriter(dst)
		if err := w.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, err
		}
		return w, nil
	case Zstd:
		return zstd.NewWriter(dst, zstd.WithEncoderLevel(mapZstdLevel(level)))
	case S2:
		return s2.NewWriter(dst), nil
	case Deflate:
		return flate.NewWriter(dst, mapDeflateLevel(level))
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algo)
	}
}

// NewStreamReader wraps src so reads see the decompressed stream.
// Closing the returned reader releases codec state but does not close
// src.
func NewStreamReader(src io.Reader, algo Algorithm) (io.ReadCloser, error) {
	switch algo {
	case None:
		return io.NopCloser(src), nil
	case Gzip:
		return gzip.NewReader(src)
	case Snappy:
		return io.NopCloser(snappy.NewReader(src)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(src)), nil
	case Zstd:
		dec, err := zstd.NewReader(src)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case S2:
		return io.NopCloser(s2.NewReader(src)), nil
	case Deflate:
		return flate.NewReader(src), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algo)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
