package iso

import (
	"io/fs"
	"time"

	"github.com/marmos91/dittoiso/pkg/image"
	"github.com/marmos91/dittoiso/pkg/storage"
)

const (
	// readMask keeps the read and execute bits of a Rock Ridge mode
	readMask fs.FileMode = 0o555

	defaultDirMode  fs.FileMode = 0o555
	defaultFileMode fs.FileMode = 0o444
)

// epoch is reported when a record carries no usable timestamp.
var epoch = time.Unix(0, 0).UTC()

// project converts a record into generic metadata. It never fails: every
// missing attribute degrades to a fixed default.
func (s *Session) project(e *image.Entry) storage.Metadata {
	md := storage.Metadata{
		Kind:    projectKind(e.Kind),
		ModTime: s.modTime(e),
		Mode:    projectMode(e),
	}

	if e.Kind != image.KindDirectory && e.Size > 0 {
		md.Size = uint64(e.Size)
	}

	if rr := e.RockRidge; rr != nil && rr.HasOwner {
		md.UID = rr.UID
		md.GID = rr.GID
	}

	return md
}

func projectKind(k image.Kind) storage.Kind {
	switch k {
	case image.KindDirectory:
		return storage.KindDirectory
	case image.KindSymlink:
		return storage.KindSymlink
	default:
		return storage.KindFile
	}
}

func projectMode(e *image.Entry) fs.FileMode {
	if rr := e.RockRidge; rr != nil && rr.HasMode {
		return rr.Mode.Perm() & readMask
	}
	if e.Kind == image.KindDirectory {
		return defaultDirMode
	}
	return defaultFileMode
}

// modTime prefers Rock Ridge TF, then the record date, then the volume dates.
func (s *Session) modTime(e *image.Entry) time.Time {
	if rr := e.RockRidge; rr != nil && rr.HasModTime && !rr.ModTime.IsZero() {
		return rr.ModTime
	}
	if !e.RecordTime.IsZero() {
		return e.RecordTime
	}
	if !s.volume.Modified.IsZero() {
		return s.volume.Modified
	}
	if !s.volume.Created.IsZero() {
		return s.volume.Created
	}
	return epoch
}
