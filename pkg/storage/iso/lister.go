package iso

import (
	"context"

	"github.com/marmos91/dittoiso/pkg/image"
	"github.com/marmos91/dittoiso/pkg/storage"
)

// list projects the children of dir in stored order, without the self and
// parent records.
func (s *Session) list(ctx context.Context, dir *image.Entry, p string) ([]storage.FileInfo, error) {
	if dir.Kind != image.KindDirectory {
		return nil, storage.NewError(storage.ErrNotDirectory, "not a directory", p)
	}

	children, err := s.reader.Children(ctx, dir)
	if err != nil {
		return nil, ioError("failed to read directory", p, err)
	}

	infos := make([]storage.FileInfo, 0, len(children))
	for _, child := range children {
		if child.Self || child.Parent {
			continue
		}

		name := s.names.display(child)
		if name == "" || name == "." || name == ".." {
			continue
		}

		infos = append(infos, storage.FileInfo{
			Name:     name,
			Metadata: s.project(child),
		})
	}

	return infos, nil
}
