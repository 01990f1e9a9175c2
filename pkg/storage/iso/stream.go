package iso

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"

	"github.com/marmos91/dittoiso/pkg/image"
	"github.com/marmos91/dittoiso/pkg/source"
	"github.com/marmos91/dittoiso/pkg/storage"
)

// DefaultReadChunkSize bounds a single underlying extent read.
const DefaultReadChunkSize = 64 * 1024

// Stream is a bounded, sequential reader over one file extent.
//
// Every Read performs at most one ReadExtent call of at most the chunk
// size, after checking the stream's context, so a cancelled download
// stops at the next chunk boundary. Reads never go past the recorded
// file length, whatever the image holds after it.
type Stream struct {
	ctx    context.Context
	reader image.Reader
	entry  *image.Entry
	path   string

	pos   int64
	end   int64
	chunk int

	onRead func(n int)

	mu     sync.Mutex
	closed bool
}

// openRange opens e for reading from offset. A negative length reads to
// the end. An offset at or past the end gives an exhausted stream.
func (s *Session) openRange(ctx context.Context, e *image.Entry, p string, offset, length int64) (*Stream, error) {
	if e.Kind != image.KindFile {
		return nil, storage.NewError(storage.ErrNotFile, "not a regular file", p)
	}
	if offset < 0 {
		return nil, storage.NewError(storage.ErrInvalidArgument, fmt.Sprintf("negative offset %d", offset), p)
	}

	size := max(e.Size, 0)
	start := min(offset, size)
	end := size
	if length >= 0 && start+length < end {
		end = start + length
	}

	return &Stream{
		ctx:    ctx,
		reader: s.reader,
		entry:  e,
		path:   p,
		pos:    start,
		end:    end,
		chunk:  s.chunkSize,
		onRead: s.metrics.RecordBytesRead,
	}, nil
}

// Read implements io.Reader.
func (st *Stream) Read(p []byte) (int, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		return 0, source.ErrClosed
	}
	if st.pos >= st.end {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := st.ctx.Err(); err != nil {
		return 0, ioError("read canceled", st.path, err)
	}

	want := min(int64(len(p)), int64(st.chunk), st.end-st.pos)

	n, err := st.reader.ReadExtent(st.ctx, st.entry, p[:want], st.pos)
	if n > int(want) {
		n = int(want)
	}
	st.pos += int64(n)
	if n > 0 && st.onRead != nil {
		st.onRead(n)
	}

	switch {
	case err == nil && n == 0:
		return 0, ioError("image returned no data", st.path, image.ErrMalformedImage)
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF) && int64(n) == want:
		return n, nil
	case errors.Is(err, io.EOF):
		return n, ioError("file extent runs past the end of the image", st.path, image.ErrMalformedImage)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return n, ioError("read canceled", st.path, err)
	default:
		return n, ioError("failed to read file extent", st.path, err)
	}
}

// Chunks yields the remaining bytes one underlying read at a time. The
// yielded slice is reused between iterations.
func (st *Stream) Chunks() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, st.chunk)
		for {
			n, err := st.Read(buf)
			if n > 0 && !yield(buf[:n], nil) {
				return
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// Remaining returns the number of bytes left to read.
func (st *Stream) Remaining() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.end - st.pos
}

// Offset returns the current position within the file.
func (st *Stream) Offset() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.pos
}

// Close releases the stream. It is idempotent and does not close the
// session's image reader.
func (st *Stream) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		return nil
	}
	st.closed = true
	st.reader = nil
	st.entry = nil
	return nil
}
