package iso

import (
	"context"
	"path"
	"strings"

	"github.com/marmos91/dittoiso/pkg/image"
	"github.com/marmos91/dittoiso/pkg/storage"
)

// cleanPath converts a client path into its canonical absolute form.
// Backslashes count as separators and "." / ".." segments are folded,
// never escaping the root.
func cleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return path.Clean("/" + p)
}

func segments(clean string) []string {
	if clean == "/" {
		return nil
	}
	return strings.Split(clean[1:], "/")
}

// resolve walks from the root record to the entry named by p.
//
// Intermediate segments must be directories; a file or a symlink there
// fails with ErrNotDirectory. Symlinks are never followed, so the final
// segment may resolve to a symlink entry.
func (s *Session) resolve(ctx context.Context, p string) (*image.Entry, error) {
	clean := cleanPath(p)

	current, err := s.reader.Root(ctx)
	if err != nil {
		return nil, ioError("failed to read root directory", clean, err)
	}

	for _, segment := range segments(clean) {
		if current.Kind != image.KindDirectory {
			return nil, storage.NewError(storage.ErrNotDirectory, "path component is not a directory", clean)
		}

		children, err := s.reader.Children(ctx, current)
		if err != nil {
			return nil, ioError("failed to read directory", clean, err)
		}

		next := s.lookup(children, segment)
		if next == nil {
			return nil, storage.NewError(storage.ErrNotFound, "no such file or directory", clean)
		}
		current = next
	}

	return current, nil
}

// lookup returns the first child named exactly segment, else the first
// child matching it case-insensitively.
func (s *Session) lookup(children []*image.Entry, segment string) *image.Entry {
	var folded *image.Entry
	for _, child := range children {
		if child.Self || child.Parent {
			continue
		}
		switch s.names.matches(child, segment) {
		case exactMatch:
			return child
		case foldedMatch:
			if folded == nil {
				folded = child
			}
		}
	}
	return folded
}

func ioError(message, p string, cause error) error {
	return &storage.StoreError{
		Code:    storage.ErrIOError,
		Message: message,
		Path:    p,
		Err:     cause,
	}
}
