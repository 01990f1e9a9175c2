// Package source defines where disc image bytes come from.
//
// A Source is an immutable, random-access byte range: a local image file,
// an object in S3, or a buffer held in memory. Sources never accept writes;
// every implementation rejects them with ErrReadOnly.
//
// Implementations live in sub-packages:
//   - fs: local files (os.File + ReadAt)
//   - s3: objects read with ranged GetObject requests
//   - memory: in-memory byte slices, mostly for tests
//   - cache: a block cache wrapper that can sit in front of any Source
package source

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when the image location does not exist.
	ErrNotFound = errors.New("image source not found")

	// ErrReadOnly is returned by every write attempt on a source.
	ErrReadOnly = errors.New("image source is read-only")

	// ErrClosed is returned when reading from a closed source or stream.
	ErrClosed = errors.New("image source is closed")
)

// Source is a read-only, random-access view of one disc image.
//
// ReadAt follows io.ReaderAt semantics with an added context: it returns
// io.EOF when fewer than len(p) bytes are available at off.
//
// Implementations must be safe for concurrent use.
type Source interface {
	// ReadAt reads len(p) bytes starting at off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// Size returns the total image length in bytes.
	Size() int64

	// Name identifies the source in logs (file path, s3 URL, ...).
	Name() string

	// Close releases handles held by the source. Safe to call twice.
	Close() error
}

// Opener creates a fresh Source handle. One handle is opened per session.
type Opener func(ctx context.Context) (Source, error)

// File adapts a Source to the io.ReaderAt + io.WriterAt + io.Seeker triple
// that format readers expect from a block device.
//
// The context is bound at construction: format readers issue reads without
// one. Writes always fail with ErrReadOnly.
type File struct {
	ctx context.Context
	src Source
	pos int64
}

// NewFile binds src to ctx.
func NewFile(ctx context.Context, src Source) *File {
	return &File{ctx: ctx, src: src}
}

// ReadAt implements io.ReaderAt.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if err := f.ctx.Err(); err != nil {
		return 0, err
	}
	return f.src.ReadAt(f.ctx, p, off)
}

// WriteAt implements io.WriterAt and always fails.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	return 0, ErrReadOnly
}

// Seek implements io.Seeker over the source's length.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.pos + offset
	case io.SeekEnd:
		abs = f.src.Size() + offset
	default:
		return 0, errors.New("source: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("source: negative position")
	}
	f.pos = abs
	return abs, nil
}

// ReadFull reads exactly len(p) bytes unless the source ends first, in which
// case it returns the short count and io.EOF. Sources that return short reads
// without an error are retried until they make no progress.
func ReadFull(ctx context.Context, src Source, p []byte, off int64) (int, error) {
	total := 0
	for total < len(p) {
		n, err := src.ReadAt(ctx, p[total:], off+int64(total))
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.EOF
		}
	}
	return total, nil
}
