// Package storage defines the storage backend contract consumed by the
// protocol adapters.
//
// A Backend is path-addressed and session-scoped: adapters open one
// Backend per client connection through a Factory, issue one call per
// client command, and close it when the connection ends. Paths are
// absolute, slash-separated and relative to the backend root; "" and "/"
// both denote the root.
//
// The contract carries the full mutating capability set (store, delete,
// rename, mkdir, rmdir, set-attrs) so that read-only backends can refuse
// them explicitly with ErrPermissionDenied instead of the adapter guessing.
package storage

import (
	"context"
	"io"
	"io/fs"
	"time"
)

// Kind is the type of a backend entry.
type Kind uint8

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Metadata is the generic attribute set of an entry.
type Metadata struct {
	Kind    Kind
	Size    uint64
	ModTime time.Time

	// Mode holds permission bits only (no type bits)
	Mode fs.FileMode

	UID uint32
	GID uint32
}

func (m *Metadata) IsDir() bool     { return m.Kind == KindDirectory }
func (m *Metadata) IsFile() bool    { return m.Kind == KindFile }
func (m *Metadata) IsSymlink() bool { return m.Kind == KindSymlink }

// FileMode returns Mode with the type bits of Kind set, as os.FileInfo expects.
func (m *Metadata) FileMode() fs.FileMode {
	switch m.Kind {
	case KindDirectory:
		return m.Mode | fs.ModeDir
	case KindSymlink:
		return m.Mode | fs.ModeSymlink
	default:
		return m.Mode
	}
}

// FileInfo pairs a display name with its metadata.
type FileInfo struct {
	Name     string
	Metadata Metadata
}

// Attrs is the set of attributes a client may ask to change.
// Nil fields are left untouched.
type Attrs struct {
	Mode    *fs.FileMode
	ModTime *time.Time
	UID     *uint32
	GID     *uint32
}

// Backend is one session's view of a storage tree.
//
// Backends are used serially by a single connection and need not be safe
// for concurrent use.
type Backend interface {
	// Stat returns the metadata of the entry at path.
	Stat(ctx context.Context, path string) (*Metadata, error)

	// List returns the immediate children of the directory at path in a
	// deterministic order. "." and ".." are never included.
	List(ctx context.Context, path string) ([]FileInfo, error)

	// Retrieve opens the file at path for sequential reading from offset.
	// An offset at or beyond the end yields an empty reader.
	Retrieve(ctx context.Context, path string, offset int64) (io.ReadCloser, error)

	// RetrieveRange is Retrieve limited to at most length bytes.
	// A negative length reads to the end of the file.
	RetrieveRange(ctx context.Context, path string, offset, length int64) (io.ReadCloser, error)

	// Cwd checks that path names a directory a client may change into.
	Cwd(ctx context.Context, path string) error

	// Readlink returns the target of the symbolic link at path.
	Readlink(ctx context.Context, path string) (string, error)

	Store(ctx context.Context, path string, r io.Reader, offset int64) (int64, error)
	Delete(ctx context.Context, path string) error
	Rename(ctx context.Context, from, to string) error
	Mkdir(ctx context.Context, path string) error
	Rmdir(ctx context.Context, path string) error
	SetAttrs(ctx context.Context, path string, attrs Attrs) error

	// Close ends the session and releases its handles. Safe to call twice.
	Close() error
}

// Factory opens one Backend per client session.
type Factory interface {
	NewSession(ctx context.Context) (Backend, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context) (Backend, error)

// NewSession calls f.
func (f FactoryFunc) NewSession(ctx context.Context) (Backend, error) {
	return f(ctx)
}
