// Package iso implements a read-only storage backend over an ISO 9660
// disc image.
//
// A Session is one connection's view of the image. It resolves client
// paths against the naming convention chosen for the image (Rock Ridge,
// Joliet or the primary identifiers), projects directory records into
// generic metadata, lists directories, streams file extents in bounded
// chunks and refuses every mutating operation.
package iso

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/marmos91/dittoiso/internal/logger"
	"github.com/marmos91/dittoiso/pkg/image"
	"github.com/marmos91/dittoiso/pkg/storage"
)

// Options configures sessions.
type Options struct {
	// Prefer orders the naming conventions; empty means DefaultPreference
	Prefer []Convention

	// ReadChunkSize bounds each underlying extent read; zero means
	// DefaultReadChunkSize
	ReadChunkSize int

	// Metrics is optional
	Metrics Metrics
}

// ReaderOpener opens a fresh format reader for one session.
type ReaderOpener func(ctx context.Context) (image.Reader, error)

// Session is a read-only storage.Backend over one open image reader.
//
// Thread safety:
// The session itself holds no mutable state besides the close latch. It is
// as safe for concurrent use as its reader; the iso9660 reader guards its
// directory cache, the other readers are meant for one connection at a
// time. Streams serialize their own reads.
type Session struct {
	id       string
	reader   image.Reader
	names    namer
	volume   image.Volume
	features image.Features

	chunkSize int
	metrics   Metrics
	log       *logger.Entry

	closeOnce sync.Once
	closeErr  error
}

var _ storage.Backend = (*Session)(nil)

// NewSession wraps an open reader. The session owns the reader and closes
// it on Close.
//
// The naming convention is fixed here, from opts.Prefer and the extensions
// the reader reports, and stays the same for the lifetime of the session.
//
// Parameters:
//   - reader: An open format reader, owned by the session from now on
//   - opts: Naming preference, stream chunk size and metrics; zero values
//     select DefaultReadChunkSize and no metrics
//
// Returns a session ready to serve requests.
func NewSession(reader image.Reader, opts Options) *Session {
	chunk := opts.ReadChunkSize
	if chunk <= 0 {
		chunk = DefaultReadChunkSize
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	features := reader.Features()
	id := uuid.NewString()

	s := &Session{
		id:        id,
		reader:    reader,
		names:     newNamer(opts.Prefer, features),
		volume:    reader.Volume(),
		features:  features,
		chunkSize: chunk,
		metrics:   metrics,
		log:       logger.With(logger.Fields{"session": id}),
	}

	s.metrics.SessionOpened()
	s.log.Debug("Opened image session: label=%q joliet=%t rockridge=%t naming=%s",
		s.volume.Label, features.Joliet, features.RockRidge, s.names)

	return s
}

// Open opens a reader and wraps it in a session.
//
// Parameters:
//   - ctx: Bounds the descriptor reads done while opening
//   - open: Produces a fresh reader, usually over its own image source
//   - opts: Session options, see NewSession
//
// Returns:
//   - *Session: The new session
//   - error: The opener's error, wrapped; its storage code is preserved
func Open(ctx context.Context, open ReaderOpener, opts Options) (*Session, error) {
	reader, err := open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return NewSession(reader, opts), nil
}

// Factory opens one independent session per client connection.
//
// Sessions share nothing but the opener, so a slow or failing client never
// holds state another client depends on.
type Factory struct {
	open ReaderOpener
	opts Options
}

var _ storage.Factory = (*Factory)(nil)

// NewFactory returns a factory opening readers with open.
func NewFactory(open ReaderOpener, opts Options) *Factory {
	return &Factory{open: open, opts: opts}
}

// NewSession implements storage.Factory.
func (f *Factory) NewSession(ctx context.Context) (storage.Backend, error) {
	return Open(ctx, f.open, f.opts)
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Volume returns the primary volume summary.
func (s *Session) Volume() image.Volume { return s.volume }

// Features returns the active extensions of the image.
func (s *Session) Features() image.Features { return s.features }

// Stat returns the projected metadata of the entry at p.
func (s *Session) Stat(ctx context.Context, p string) (*storage.Metadata, error) {
	e, err := s.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	md := s.project(e)
	return &md, nil
}

// List returns the children of the directory at p in stored order.
func (s *Session) List(ctx context.Context, p string) ([]storage.FileInfo, error) {
	e, err := s.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, e, cleanPath(p))
}

// Retrieve opens the file at p from offset to its end.
func (s *Session) Retrieve(ctx context.Context, p string, offset int64) (io.ReadCloser, error) {
	return s.RetrieveRange(ctx, p, offset, -1)
}

// RetrieveRange opens at most length bytes of the file at p from offset.
//
// Parameters:
//   - ctx: Checked before each chunk is read from the image
//   - p: Client path of a regular file
//   - offset: First byte to return; an offset at or past the end yields an
//     empty stream
//   - length: Maximum number of bytes, or a negative value for the rest of
//     the file
//
// Returns a stream the caller must close. Anything but a regular file
// fails with ErrNotFile; symlinks are read with Readlink, never followed.
func (s *Session) RetrieveRange(ctx context.Context, p string, offset, length int64) (io.ReadCloser, error) {
	st, err := s.OpenStream(ctx, p, offset, length)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// OpenStream is RetrieveRange returning the concrete stream.
func (s *Session) OpenStream(ctx context.Context, p string, offset, length int64) (*Stream, error) {
	e, err := s.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.openRange(ctx, e, cleanPath(p), offset, length)
}

// Cwd checks that p names a directory.
func (s *Session) Cwd(ctx context.Context, p string) error {
	e, err := s.resolve(ctx, p)
	if err != nil {
		return err
	}
	if e.Kind != image.KindDirectory {
		return storage.NewError(storage.ErrNotDirectory, "not a directory", cleanPath(p))
	}
	return nil
}

// Readlink returns the Rock Ridge target of the symlink at p without
// following it.
func (s *Session) Readlink(ctx context.Context, p string) (string, error) {
	e, err := s.resolve(ctx, p)
	if err != nil {
		return "", err
	}
	if e.Kind != image.KindSymlink || e.RockRidge == nil {
		return "", storage.NewError(storage.ErrInvalidArgument, "not a symbolic link", cleanPath(p))
	}
	return e.RockRidge.SymlinkTarget, nil
}

// Close releases the image reader. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.reader.Close()
		s.metrics.SessionClosed()
		s.log.Debug("Closed image session")
	})
	return s.closeErr
}
