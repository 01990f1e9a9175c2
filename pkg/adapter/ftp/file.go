package ftp

import (
	"errors"
	"io"
	"os"
	"syscall"
	"time"
)

// fileHandle is an open regular file.
//
// The backend stream is opened lazily at the current offset on the first
// Read, so a Seek before reading (REST) costs nothing. Seeking after a
// read closes the stream and the next Read reopens it at the new offset.
type fileHandle struct {
	fs     *clientFs
	name   string
	info   os.FileInfo
	offset int64
	stream io.ReadCloser
	closed bool
}

func (h *fileHandle) Name() string               { return h.name }
func (h *fileHandle) Stat() (os.FileInfo, error) { return h.info, nil }
func (h *fileHandle) Sync() error                { return nil }

func (h *fileHandle) Read(p []byte) (int, error) {
	if h.closed {
		return 0, &os.PathError{Op: "read", Path: h.name, Err: os.ErrClosed}
	}
	if h.stream == nil {
		start := time.Now()
		stream, err := h.fs.backend.Retrieve(h.fs.ctx, h.name, h.offset)
		h.fs.observe("retrieve", h.name, start, err)
		if err != nil {
			return 0, pathError("read", h.name, err)
		}
		h.stream = stream
	}

	n, err := h.stream.Read(p)
	h.offset += int64(n)
	if n > 0 {
		h.fs.metrics.RecordBytesSent(int64(n))
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return n, pathError("read", h.name, err)
	}
	return n, err
}

func (h *fileHandle) ReadAt(p []byte, off int64) (int, error) {
	if h.closed {
		return 0, &os.PathError{Op: "readat", Path: h.name, Err: os.ErrClosed}
	}

	rc, err := h.fs.backend.RetrieveRange(h.fs.ctx, h.name, off, int64(len(p)))
	if err != nil {
		return 0, pathError("readat", h.name, err)
	}
	defer rc.Close()

	n, err := io.ReadFull(rc, p)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return n, io.EOF
	default:
		return n, pathError("readat", h.name, err)
	}
}

func (h *fileHandle) Seek(offset int64, whence int) (int64, error) {
	if h.closed {
		return 0, &os.PathError{Op: "seek", Path: h.name, Err: os.ErrClosed}
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = h.offset + offset
	case io.SeekEnd:
		target = h.info.Size() + offset
	default:
		return h.offset, &os.PathError{Op: "seek", Path: h.name, Err: os.ErrInvalid}
	}
	if target < 0 {
		return h.offset, &os.PathError{Op: "seek", Path: h.name, Err: os.ErrInvalid}
	}

	if target != h.offset && h.stream != nil {
		_ = h.stream.Close()
		h.stream = nil
	}
	h.offset = target
	return target, nil
}

func (h *fileHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	if h.stream != nil {
		return h.stream.Close()
	}
	return nil
}

func (h *fileHandle) Write(p []byte) (int, error)              { return 0, denied("write", h.name) }
func (h *fileHandle) WriteAt(p []byte, off int64) (int, error) { return 0, denied("write", h.name) }
func (h *fileHandle) WriteString(s string) (int, error)        { return 0, denied("write", h.name) }
func (h *fileHandle) Truncate(size int64) error                { return denied("truncate", h.name) }

func (h *fileHandle) Readdir(count int) ([]os.FileInfo, error) {
	return nil, &os.PathError{Op: "readdir", Path: h.name, Err: syscall.ENOTDIR}
}

func (h *fileHandle) Readdirnames(n int) ([]string, error) {
	return nil, &os.PathError{Op: "readdir", Path: h.name, Err: syscall.ENOTDIR}
}

// dirHandle is an open directory. Entries are listed once, on the first
// Readdir call.
type dirHandle struct {
	fs      *clientFs
	name    string
	info    os.FileInfo
	entries []os.FileInfo
	loaded  bool
	pos     int
}

func (d *dirHandle) Name() string               { return d.name }
func (d *dirHandle) Stat() (os.FileInfo, error) { return d.info, nil }
func (d *dirHandle) Sync() error                { return nil }
func (d *dirHandle) Close() error               { return nil }

func (d *dirHandle) Readdir(count int) ([]os.FileInfo, error) {
	if !d.loaded {
		entries, err := d.fs.ReadDir(d.name)
		if err != nil {
			return nil, err
		}
		d.entries = entries
		d.loaded = true
	}

	remaining := d.entries[d.pos:]
	if count <= 0 {
		d.pos = len(d.entries)
		return remaining, nil
	}
	if len(remaining) == 0 {
		return nil, io.EOF
	}

	n := min(count, len(remaining))
	d.pos += n
	return remaining[:n], nil
}

func (d *dirHandle) Readdirnames(n int) ([]string, error) {
	infos, err := d.Readdir(n)
	names := make([]string, len(infos))
	for i, fi := range infos {
		names[i] = fi.Name()
	}
	return names, err
}

func (d *dirHandle) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && whence == io.SeekStart {
		d.pos = 0
		return 0, nil
	}
	return 0, &os.PathError{Op: "seek", Path: d.name, Err: syscall.EISDIR}
}

func (d *dirHandle) Read(p []byte) (int, error) {
	return 0, &os.PathError{Op: "read", Path: d.name, Err: syscall.EISDIR}
}

func (d *dirHandle) ReadAt(p []byte, off int64) (int, error) {
	return 0, &os.PathError{Op: "read", Path: d.name, Err: syscall.EISDIR}
}

func (d *dirHandle) Write(p []byte) (int, error)              { return 0, denied("write", d.name) }
func (d *dirHandle) WriteAt(p []byte, off int64) (int, error) { return 0, denied("write", d.name) }
func (d *dirHandle) WriteString(s string) (int, error)        { return 0, denied("write", d.name) }
func (d *dirHandle) Truncate(size int64) error                { return denied("truncate", d.name) }
