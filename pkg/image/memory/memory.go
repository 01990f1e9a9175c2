// Package memory builds disc image trees in memory.
//
// It models everything a real ISO 9660 image can carry (primary, Joliet
// and Rock Ridge names, POSIX attributes, symlinks, self and parent
// records) without any sector encoding, which makes it the fixture of
// choice for exercising the storage core. File contents are laid out
// back to back on block boundaries in one flat buffer, like on a disc, so
// reads that overrun an extent really do hit neighbouring data.
package memory

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittoiso/pkg/image"
	"github.com/marmos91/dittoiso/pkg/source"
)

// firstDataBlock leaves room for the system area and descriptors.
const firstDataBlock = 20

// slackByte fills the unused tail of every file's last block.
const slackByte = 0xEE

type node struct {
	entry      image.Entry
	children   []*node
	unreadable bool
}

// Image is a finished, immutable image tree.
type Image struct {
	volume   image.Volume
	features image.Features
	root     *node
	data     []byte
}

// Builder assembles an Image.
type Builder struct {
	img  *Image
	root *Dir
}

// Option configures the image as a whole.
type Option func(*Image)

// WithJoliet marks the Joliet extension active.
func WithJoliet() Option {
	return func(img *Image) { img.features.Joliet = true }
}

// WithRockRidge marks the Rock Ridge extension active.
func WithRockRidge() Option {
	return func(img *Image) { img.features.RockRidge = true }
}

// WithLabel sets the volume identifier.
func WithLabel(label string) Option {
	return func(img *Image) { img.volume.Label = label }
}

// WithVolumeTimes sets the volume creation and modification dates.
func WithVolumeTimes(created, modified time.Time) Option {
	return func(img *Image) {
		img.volume.Created = created
		img.volume.Modified = modified
	}
}

// NewBuilder starts an image with an empty root directory.
func NewBuilder(opts ...Option) *Builder {
	img := &Image{
		volume: image.Volume{Label: "CDROM", BlockSize: image.DefaultBlockSize},
		data:   make([]byte, firstDataBlock*image.DefaultBlockSize),
	}
	for _, opt := range opts {
		opt(img)
	}

	img.root = &node{entry: image.Entry{Kind: image.KindDirectory}}
	img.root.entry.Ref = img.root

	b := &Builder{img: img}
	b.root = &Dir{b: b, n: img.root}
	return b
}

// Root returns the root directory.
func (b *Builder) Root() *Dir {
	return b.root
}

// Build finalizes the image. The builder must not be used afterwards.
func (b *Builder) Build() *Image {
	return b.img
}

// EntryOption configures one record.
type EntryOption func(*node)

// Joliet sets the Joliet name.
func Joliet(name string) EntryOption {
	return func(n *node) { n.entry.Names.Joliet = name }
}

// RockRidgeName sets the Rock Ridge NM name.
func RockRidgeName(name string) EntryOption {
	return func(n *node) { n.entry.Names.RockRidge = name }
}

// Mode sets the Rock Ridge PX permission bits.
func Mode(mode fs.FileMode) EntryOption {
	return func(n *node) {
		rr := rockRidge(n)
		rr.HasMode = true
		rr.Mode = mode
	}
}

// Owner sets the Rock Ridge PX owner and group.
func Owner(uid, gid uint32) EntryOption {
	return func(n *node) {
		rr := rockRidge(n)
		rr.HasOwner = true
		rr.UID = uid
		rr.GID = gid
	}
}

// ModTime sets the Rock Ridge TF modification time.
func ModTime(t time.Time) EntryOption {
	return func(n *node) {
		rr := rockRidge(n)
		rr.HasModTime = true
		rr.ModTime = t
	}
}

// RecordTime sets the directory record's recording date.
func RecordTime(t time.Time) EntryOption {
	return func(n *node) { n.entry.RecordTime = t }
}

// RecordedSize overrides the length recorded for a file, which lets a
// record claim more bytes than the image holds.
func RecordedSize(size int64) EntryOption {
	return func(n *node) {
		n.entry.Size = size
		n.entry.Extent.Length = uint32(size)
	}
}

// Unreadable makes Children fail with ErrMalformedImage for this directory.
func Unreadable() EntryOption {
	return func(n *node) { n.unreadable = true }
}

func rockRidge(n *node) *image.RockRidge {
	if n.entry.RockRidge == nil {
		n.entry.RockRidge = &image.RockRidge{}
	}
	return n.entry.RockRidge
}

// Dir is a directory under construction.
type Dir struct {
	b *Builder
	n *node
}

// Dir adds a subdirectory and returns it.
func (d *Dir) Dir(primary string, opts ...EntryOption) *Dir {
	child := d.add(image.Entry{Kind: image.KindDirectory, Names: image.Names{Primary: primary}}, opts)
	return &Dir{b: d.b, n: child}
}

// File adds a regular file holding content and returns d.
func (d *Dir) File(primary string, content []byte, opts ...EntryOption) *Dir {
	img := d.b.img
	bs := int(img.volume.BlockSize)

	location := uint32(len(img.data) / bs)
	blocks := (len(content) + bs - 1) / bs

	img.data = append(img.data, content...)
	for pad := blocks*bs - len(content); pad > 0; pad-- {
		img.data = append(img.data, slackByte)
	}

	d.add(image.Entry{
		Kind:   image.KindFile,
		Size:   int64(len(content)),
		Extent: image.Extent{Location: location, Length: uint32(len(content))},
		Names:  image.Names{Primary: primary},
	}, opts)
	return d
}

// Symlink adds a Rock Ridge symbolic link and returns d.
func (d *Dir) Symlink(primary, target string, opts ...EntryOption) *Dir {
	n := d.add(image.Entry{Kind: image.KindSymlink, Names: image.Names{Primary: primary}}, opts)
	rockRidge(n).SymlinkTarget = target
	return d
}

func (d *Dir) add(entry image.Entry, opts []EntryOption) *node {
	n := &node{entry: entry}
	for _, opt := range opts {
		opt(n)
	}
	n.entry.Ref = n
	d.n.children = append(d.n.children, n)
	return n
}

// Opener returns a function opening independent readers over img.
func (img *Image) Opener() func(ctx context.Context) (image.Reader, error) {
	return img.Open
}

// Open returns a new reader handle.
func (img *Image) Open(ctx context.Context) (image.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Reader{img: img}, nil
}

// Data returns the flat buffer holding file contents.
func (img *Image) Data() []byte {
	return img.data
}

// Reader is one handle over an Image.
type Reader struct {
	img    *Image
	closed atomic.Bool
}

func (r *Reader) Volume() image.Volume     { return r.img.volume }
func (r *Reader) Features() image.Features { return r.img.features }

func (r *Reader) Root(ctx context.Context) (*image.Entry, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	return &r.img.root.entry, nil
}

func (r *Reader) Children(ctx context.Context, dir *image.Entry) ([]*image.Entry, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	n, ok := dir.Ref.(*node)
	if !ok {
		return nil, fmt.Errorf("%w: foreign entry", image.ErrMalformedImage)
	}
	if n.entry.Kind != image.KindDirectory {
		return nil, fmt.Errorf("entry %q is not a directory", n.entry.Names.Primary)
	}
	if n.unreadable {
		return nil, fmt.Errorf("%w: directory %q has a truncated record", image.ErrMalformedImage, n.entry.Names.Primary)
	}

	entries := make([]*image.Entry, 0, len(n.children)+2)
	entries = append(entries,
		&image.Entry{Kind: image.KindDirectory, Names: image.Names{Primary: "\x00"}, Self: true, Ref: n},
		&image.Entry{Kind: image.KindDirectory, Names: image.Names{Primary: "\x01"}, Parent: true},
	)
	for _, child := range n.children {
		entries = append(entries, &child.entry)
	}
	return entries, nil
}

// ReadExtent reads raw image bytes from e's first block. Reads are only
// clipped at the end of the image, not at e.Size.
func (r *Reader) ReadExtent(ctx context.Context, e *image.Entry, p []byte, off int64) (int, error) {
	if err := r.check(ctx); err != nil {
		return 0, err
	}

	start := int64(e.Extent.Location)*r.img.volume.BlockSize + off
	if start >= int64(len(r.img.data)) {
		return 0, io.EOF
	}

	n := copy(p, r.img.data[start:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (r *Reader) Close() error {
	r.closed.Store(true)
	return nil
}

func (r *Reader) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.closed.Load() {
		return source.ErrClosed
	}
	return nil
}
