package iso

import (
	"context"
	"io"

	"github.com/marmos91/dittoiso/pkg/storage"
)

// Mutating operations are refused before any path resolution, so they
// never reach the image reader.

func denied(op string, p string) error {
	return storage.NewError(storage.ErrPermissionDenied, op+": read-only image", p)
}

func (s *Session) Store(ctx context.Context, p string, r io.Reader, offset int64) (int64, error) {
	return 0, denied("store", p)
}

func (s *Session) Delete(ctx context.Context, p string) error {
	return denied("delete", p)
}

func (s *Session) Rename(ctx context.Context, from, to string) error {
	return denied("rename", from)
}

func (s *Session) Mkdir(ctx context.Context, p string) error {
	return denied("mkdir", p)
}

func (s *Session) Rmdir(ctx context.Context, p string) error {
	return denied("rmdir", p)
}

func (s *Session) SetAttrs(ctx context.Context, p string, attrs storage.Attrs) error {
	return denied("setattr", p)
}
