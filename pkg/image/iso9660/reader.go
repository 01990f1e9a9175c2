// Package iso9660 implements image.Reader on the directory record and
// system use types of github.com/kdomanski/iso9660.
//
// The reader keeps every naming source of a record apart: the primary
// identifier, the Joliet name found in the supplementary volume
// descriptor tree, and the Rock Ridge NM name. Rock Ridge PX, TF and SL
// entries surface as POSIX attributes, and symlink records surface as
// image.KindSymlink. Relocated directories (CL/RE) are shown where their
// child link points.
//
// Sectors are fetched through the session's source.Source with the
// caller's context, so a cancelled session stops issuing reads. Decoded
// directories are kept for the lifetime of the reader; images are
// immutable, so the cache never needs invalidation.
package iso9660

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	kiso "github.com/kdomanski/iso9660"
	"github.com/marmos91/dittoiso/pkg/image"
	"github.com/marmos91/dittoiso/pkg/source"
)

const (
	// sectorSize is the fixed size of a volume descriptor
	sectorSize = 2048

	firstDescriptorSector = 16

	// maxDescriptors stops the descriptor scan on images without a terminator
	maxDescriptors = 64

	descriptorPrimary       = 1
	descriptorSupplementary = 2
	descriptorTerminator    = 255

	// maxDirectorySize bounds the bytes read for one directory
	maxDirectorySize = 16 << 20

	// maxCachedDirectories bounds the decoded directories kept per reader
	maxCachedDirectories = 1024
)

var standardIdentifier = []byte("CD001")

// Options configures the reader.
type Options struct {
	// BlockSize is used when the primary volume descriptor does not
	// record a valid logical block size (default: 2048)
	BlockSize int64 `mapstructure:"block_size"`
}

// extent locates one directory's records.
type extent struct {
	location uint32
	length   uint32
}

// node is the Ref of every directory entry this reader produces.
type node struct {
	primary extent

	// joliet is the same directory in the Joliet tree, nil when unmatched
	joliet *extent
}

// Reader is an image.Reader over one source handle.
//
// Thread safety:
// A Reader belongs to one session and is not safe for concurrent use.
type Reader struct {
	src       source.Source
	blockSize int64
	volume    image.Volume
	features  image.Features

	root       record
	jolietRoot *extent

	// suspSkip is the SP LEN_SKP applied to every record but the root "."
	suspSkip int

	mu   sync.Mutex
	dirs map[dirKey][]record
}

type dirKey struct {
	location uint32
	joliet   bool
}

// Open decodes the volume descriptors of src and detects the Joliet and
// Rock Ridge extensions.
//
// Parameters:
//   - ctx: bounds every read issued while decoding
//   - src: the image; Close on the returned Reader closes it
//   - opts: fallback block size
//
// Returns image.ErrMalformedImage (wrapped) when src holds no ISO 9660
// volume, and the context error when ctx ends first.
func Open(ctx context.Context, src source.Source, opts Options) (*Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := &Reader{
		src:       src,
		blockSize: opts.BlockSize,
		dirs:      make(map[dirKey][]record),
	}
	if r.blockSize <= 0 {
		r.blockSize = image.DefaultBlockSize
	}

	if err := r.readDescriptors(ctx); err != nil {
		return nil, err
	}
	if err := r.detectRockRidge(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// NewOpener opens a source with open and decodes it. The source is closed
// if decoding fails.
func NewOpener(open source.Opener, opts Options) func(ctx context.Context) (image.Reader, error) {
	return func(ctx context.Context) (image.Reader, error) {
		src, err := open(ctx)
		if err != nil {
			return nil, err
		}

		r, err := Open(ctx, src, opts)
		if err != nil {
			_ = src.Close()
			return nil, err
		}
		return r, nil
	}
}

func (r *Reader) readDescriptors(ctx context.Context) error {
	buf := make([]byte, sectorSize)
	var primary *kiso.PrimaryVolumeDescriptorBody

scan:
	for i := 0; i < maxDescriptors; i++ {
		sector := firstDescriptorSector + i
		if err := r.readFull(ctx, buf, int64(sector)*sectorSize); err != nil {
			return err
		}
		if string(buf[1:6]) != string(standardIdentifier) {
			if primary != nil {
				break
			}
			return r.malformed("sector %d is not a volume descriptor", sector)
		}

		switch buf[0] {
		case descriptorTerminator:
			break scan
		case descriptorPrimary:
			if primary != nil {
				continue
			}
			pvd, err := decodeDescriptor(buf)
			if err != nil {
				return r.malformed("primary volume descriptor: %v", err)
			}
			primary = pvd
		case descriptorSupplementary:
			if r.jolietRoot != nil || !isJoliet(buf) {
				continue
			}
			// an unreadable Joliet descriptor leaves the primary tree usable
			if svd, err := decodeDescriptor(buf); err == nil {
				root := svd.RootDirectoryEntry
				r.jolietRoot = &extent{
					location: uint32(root.ExtentLocation) + uint32(root.ExtendedAtributeRecordLength),
					length:   root.ExtentLength,
				}
				r.features.Joliet = true
			}
		}
	}

	if primary == nil {
		return r.malformed("no primary volume descriptor")
	}

	switch bs := int64(primary.LogicalBlockSize); bs {
	case 512, 1024, 2048:
		r.blockSize = bs
	}

	r.root = newRecord(primary.RootDirectoryEntry, nil)
	r.volume = image.Volume{
		Label:     strings.TrimRight(primary.VolumeIdentifier, " \x00"),
		BlockSize: r.blockSize,
		Created:   descriptorTime(primary.VolumeCreationDateAndTime),
		Modified:  descriptorTime(primary.VolumeModificationDateAndTime),
	}
	return nil
}

// decodeDescriptor decodes a primary or supplementary descriptor sector.
func decodeDescriptor(sector []byte) (*kiso.PrimaryVolumeDescriptorBody, error) {
	// the root record is fixed at 34 bytes with a one byte identifier
	if sector[156] != 34 || sector[156+32] != 1 {
		return nil, errors.New("invalid root directory record")
	}

	var pvd kiso.PrimaryVolumeDescriptorBody
	if err := pvd.UnmarshalBinary(sector); err != nil {
		return nil, err
	}
	if pvd.RootDirectoryEntry.FileFlags&flagDirectory == 0 {
		return nil, errors.New("root record is not a directory")
	}
	return &pvd, nil
}

func (r *Reader) Volume() image.Volume { return r.volume }

func (r *Reader) Features() image.Features { return r.features }

func (r *Reader) Root(ctx context.Context) (*image.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &image.Entry{
		Kind:       image.KindDirectory,
		Extent:     image.Extent{Location: r.root.location, Length: r.root.length},
		RecordTime: r.root.recorded,
		Ref:        &node{primary: r.root.extent(), joliet: r.jolietRoot},
	}, nil
}

func (r *Reader) Children(ctx context.Context, dir *image.Entry) ([]*image.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, ok := dir.Ref.(*node)
	if !ok {
		return nil, fmt.Errorf("%w: foreign entry", image.ErrMalformedImage)
	}

	records, err := r.readDirectory(ctx, n.primary, false)
	if err != nil {
		return nil, err
	}

	var peers []peer
	if n.joliet != nil {
		jolietRecords, err := r.readDirectory(ctx, *n.joliet, true)
		if err != nil {
			return nil, err
		}
		peers = pairJoliet(records, jolietRecords)
	}

	entries := make([]*image.Entry, 0, len(records))
	for i, rec := range records {
		if rec.relocated {
			continue
		}

		var p peer
		if peers != nil {
			p = peers[i]
		}

		e := rec.entry(p)
		if e.Self {
			e.Ref = n
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ReadExtent reads straight from the source at the entry's first data
// block. Reads are not bounded by the recorded length.
func (r *Reader) ReadExtent(ctx context.Context, e *image.Entry, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if e.Kind == image.KindDirectory {
		return 0, fmt.Errorf("%w: extent of a directory", image.ErrMalformedImage)
	}
	return r.src.ReadAt(ctx, p, int64(e.Extent.Location)*r.blockSize+off)
}

func (r *Reader) Close() error {
	return r.src.Close()
}

// readFull fills p from off. A short read is a malformed image unless the
// context ended first.
func (r *Reader) readFull(ctx context.Context, p []byte, off int64) error {
	n, err := r.src.ReadAt(ctx, p, off)
	if err == nil || (errors.Is(err, io.EOF) && n == len(p)) {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, io.EOF) {
		return r.malformed("%d bytes at offset %d run past the end of the image", len(p), off)
	}
	return err
}

func (r *Reader) malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", image.ErrMalformedImage, r.src.Name(), fmt.Sprintf(format, args...))
}
