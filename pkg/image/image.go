// Package image defines the contract between the storage core and a disc
// image format reader.
//
// A format reader decodes the on-disk ISO 9660 structures (volume
// descriptors, directory records, Joliet supplementary trees, Rock Ridge
// system use entries) and surfaces them as a tree of immutable Entry
// values. The storage core never parses sectors itself; it only walks
// entries, picks names and attributes, and reads file extents.
package image

import (
	"context"
	"errors"
	"io/fs"
	"time"
)

// ErrMalformedImage is wrapped by readers when the image bytes cannot be
// decoded. The storage core surfaces it as an I/O failure.
var ErrMalformedImage = errors.New("malformed disc image")

// DefaultBlockSize is the ISO 9660 logical block size.
const DefaultBlockSize = 2048

// Kind discriminates directory records.
type Kind uint8

const (
	KindFile Kind = iota
	KindDirectory
	// KindSymlink only occurs on Rock Ridge images.
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

// Extent locates an entry's bytes inside the image.
type Extent struct {
	// Location is the first logical block
	Location uint32

	// Length is the recorded byte length
	Length uint32
}

// Names holds every identifier a record carries. Empty means absent.
type Names struct {
	// Primary is the ISO 9660 identifier, possibly with a ";1" version suffix
	Primary string

	// Joliet is the UCS-2 name from the supplementary volume descriptor tree
	Joliet string

	// RockRidge is the POSIX name from the NM entry
	RockRidge string
}

// RockRidge holds the POSIX attributes of a record (PX, TF, SL entries).
// Fields are only meaningful when their Has* flag is set.
type RockRidge struct {
	HasMode bool
	Mode    fs.FileMode

	HasOwner bool
	UID      uint32
	GID      uint32

	HasModTime bool
	ModTime    time.Time

	// SymlinkTarget is the SL target of a symlink record
	SymlinkTarget string
}

// Entry is one directory record.
//
// Entries are immutable. Ref is owned by the Reader that produced the entry
// and must not be interpreted by callers.
type Entry struct {
	Kind   Kind
	Size   int64
	Extent Extent
	Names  Names

	// RecordTime is the directory record's recording date, zero if unset
	RecordTime time.Time

	// RockRidge is nil when the record carries no Rock Ridge attributes
	RockRidge *RockRidge

	// Self and Parent flag the "." and ".." records of a directory
	Self   bool
	Parent bool

	Ref any
}

// IsDir reports whether e is a directory.
func (e *Entry) IsDir() bool { return e.Kind == KindDirectory }

// Features reports which extensions are active for an image.
type Features struct {
	Joliet    bool
	RockRidge bool
}

// Volume describes the primary volume descriptor.
type Volume struct {
	Label     string
	BlockSize int64
	Created   time.Time
	Modified  time.Time
}

// Reader is an open, read-only format reader over one image.
//
// A Reader belongs to a single session and is not required to be safe for
// concurrent use.
type Reader interface {
	// Volume returns the primary volume descriptor summary
	Volume() Volume

	// Features reports active extensions
	Features() Features

	// Root returns the root directory record
	Root(ctx context.Context) (*Entry, error)

	// Children returns dir's records in stored order. The result may
	// include the Self and Parent records.
	Children(ctx context.Context, dir *Entry) ([]*Entry, error)

	// ReadExtent reads len(p) bytes of e's extent starting at off.
	// Implementations are not required to stop at e.Size: bytes past the
	// recorded length may belong to adjacent image content, and callers
	// must bound their requests.
	ReadExtent(ctx context.Context, e *Entry, p []byte, off int64) (int, error)

	// Close releases the reader and its source
	Close() error
}
