// Package diskfs implements image.Reader on top of go-diskfs.
//
// go-diskfs decodes the primary volume descriptor, the path tables and the
// directory records, and applies Rock Ridge NM names when the image
// carries SUSP entries. It exposes one name per record and keeps the
// system use entries private, so this reader reports no Joliet names and
// no Rock Ridge attributes: every entry projects with read-only defaults
// and symlinks read as empty files. Rock Ridge presence is detected
// separately from the root directory record; on such images the go-diskfs
// name is reported as the Rock Ridge name, which resolves case-sensitively.
//
// The iso9660 package is the full-featured reader; this one stays
// available as image.reader "diskfs".
//
// File bytes are not read through go-diskfs: the reader looks up the
// extent location once per file and then reads the image source
// directly, one ranged read per request.
package diskfs

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/diskfs/go-diskfs/filesystem/iso9660"
	"github.com/marmos91/dittoiso/pkg/image"
	isoReader "github.com/marmos91/dittoiso/pkg/image/iso9660"
	"github.com/marmos91/dittoiso/pkg/source"
)

// Options configures the reader.
type Options struct {
	// BlockSize is the logical block size (default: 2048)
	BlockSize int64 `mapstructure:"block_size"`
}

// Reader is an image.Reader over one source handle.
type Reader struct {
	src       source.Source
	fs        *iso9660.FileSystem
	blockSize int64
	volume    image.Volume
	features  image.Features
	locations map[string]uint32
}

// Open decodes the volume descriptors of src.
//
// ctx stays bound to the reader for the reads go-diskfs issues while
// walking directories; cancel it to abort a session.
func Open(ctx context.Context, src source.Source, opts Options) (*Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blockSize := opts.BlockSize
	if blockSize == 0 {
		blockSize = image.DefaultBlockSize
	}

	fs, err := iso9660.Read(source.NewFile(ctx, src), src.Size(), 0, blockSize)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %v", image.ErrMalformedImage, src.Name(), err)
	}

	features, err := detectRockRidge(ctx, src, blockSize)
	if err != nil {
		return nil, err
	}

	return &Reader{
		src:       src,
		fs:        fs,
		blockSize: blockSize,
		features:  features,
		volume: image.Volume{
			Label:     strings.TrimRight(fs.Label(), " \x00"),
			BlockSize: blockSize,
		},
		locations: make(map[string]uint32),
	}, nil
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

func (r *Reader) Volume() image.Volume { return r.volume }

// detectRockRidge reports whether the root directory record announces Rock
// Ridge. Joliet is never reported: go-diskfs does not read that tree. An
// image the descriptor scan cannot decode counts as plain.
func detectRockRidge(ctx context.Context, src source.Source, blockSize int64) (image.Features, error) {
	decoded, err := isoReader.Open(ctx, src, isoReader.Options{BlockSize: blockSize})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return image.Features{}, ctxErr
		}
		return image.Features{}, nil
	}
	return image.Features{RockRidge: decoded.Features().RockRidge}, nil
}

// Features reports Rock Ridge when the image carries it.
func (r *Reader) Features() image.Features { return r.features }

func (r *Reader) Root(ctx context.Context) (*image.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &image.Entry{Kind: image.KindDirectory, Ref: "/"}, nil
}

func (r *Reader) Children(ctx context.Context, dir *image.Entry) ([]*image.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirPath, ok := dir.Ref.(string)
	if !ok {
		return nil, fmt.Errorf("%w: foreign entry", image.ErrMalformedImage)
	}

	infos, err := r.fs.ReadDir(dirPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: directory %s: %v", image.ErrMalformedImage, dirPath, err)
	}

	entries := make([]*image.Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, entryFromInfo(dirPath, info, r.features.RockRidge))
	}
	return entries, nil
}

func entryFromInfo(dirPath string, info os.FileInfo, rockRidge bool) *image.Entry {
	kind := image.KindFile
	if info.IsDir() {
		kind = image.KindDirectory
	}

	size := info.Size()
	if kind == image.KindDirectory {
		size = 0
	}

	names := image.Names{Primary: info.Name()}
	if rockRidge {
		names.RockRidge = info.Name()
	}

	return &image.Entry{
		Kind:       kind,
		Size:       size,
		Extent:     image.Extent{Length: uint32(info.Size())},
		Names:      names,
		RecordTime: info.ModTime(),
		Ref:        path.Join(dirPath, info.Name()),
	}
}

func (r *Reader) ReadExtent(ctx context.Context, e *image.Entry, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	location, err := r.location(e)
	if err != nil {
		return 0, err
	}

	return r.src.ReadAt(ctx, p, int64(location)*r.blockSize+off)
}

func (r *Reader) location(e *image.Entry) (uint32, error) {
	if e.Extent.Location != 0 {
		return e.Extent.Location, nil
	}

	filePath, ok := e.Ref.(string)
	if !ok {
		return 0, fmt.Errorf("%w: foreign entry", image.ErrMalformedImage)
	}

	if location, ok := r.locations[filePath]; ok {
		return location, nil
	}

	f, err := r.fs.OpenFile(filePath, os.O_RDONLY)
	if err != nil {
		return 0, fmt.Errorf("%w: file %s: %v", image.ErrMalformedImage, filePath, err)
	}

	isoFile, ok := f.(*iso9660.File)
	if !ok {
		return 0, fmt.Errorf("%w: file %s has no extent", image.ErrMalformedImage, filePath)
	}

	location := isoFile.Location()
	r.locations[filePath] = location
	return location, nil
}

func (r *Reader) Close() error {
	return r.src.Close()
}
