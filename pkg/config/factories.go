package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/marmos91/dittoiso/internal/logger"
	"github.com/marmos91/dittoiso/pkg/image/diskfs"
	isoReader "github.com/marmos91/dittoiso/pkg/image/iso9660"
	promMetrics "github.com/marmos91/dittoiso/pkg/metrics/prometheus"
	"github.com/marmos91/dittoiso/pkg/source"
	"github.com/marmos91/dittoiso/pkg/source/cache"
	cacheBadger "github.com/marmos91/dittoiso/pkg/source/cache/badger"
	cacheMemory "github.com/marmos91/dittoiso/pkg/source/cache/memory"
	sourceFs "github.com/marmos91/dittoiso/pkg/source/fs"
	sourceMemory "github.com/marmos91/dittoiso/pkg/source/memory"
	sourceS3 "github.com/marmos91/dittoiso/pkg/source/s3"
	"github.com/marmos91/dittoiso/pkg/storage/iso"
	"github.com/mitchellh/mapstructure"
)

// Image is the configured session factory together with the shared
// resources (block cache) it holds. Close releases them once every
// session is gone.
type Image struct {
	Factory *iso.Factory

	closers []io.Closer
}

// Close releases the shared resources.
func (img *Image) Close() error {
	var errs []error
	for i := len(img.closers) - 1; i >= 0; i-- {
		if err := img.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	img.closers = nil
	return errors.Join(errs...)
}

// CreateImage builds the session factory described by cfg.Image:
// source, optional block cache, format reader and naming options.
//
// One startup session is opened and closed so that a missing object or an
// undecodable image is reported at startup rather than on the first login.
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Image configuration
//   - m: Metrics collectors (nil disables metrics)
func CreateImage(ctx context.Context, cfg *ImageConfig, m *MetricsResult) (*Image, error) {
	if m == nil {
		m = &MetricsResult{}
	}

	img := &Image{}

	open, err := CreateSourceOpener(ctx, &cfg.Source, m.S3Metrics)
	if err != nil {
		return nil, err
	}

	store, err := CreateBlockStore(ctx, &cfg.Cache)
	if err != nil {
		return nil, err
	}
	if store != nil {
		img.closers = append(img.closers, store)
		open = cache.NewOpener(open, store, cache.Config{
			BlockSize: cfg.Cache.BlockSize,
			Metrics:   promMetrics.NewCacheMetrics(cfg.Cache.Type),
		})
		logger.Info("Image block cache: %s (block size %d)", cfg.Cache.Type, cfg.Cache.BlockSize)
	}

	prefer, err := ParsePreference(cfg.Naming.Prefer)
	if err != nil {
		_ = img.Close()
		return nil, err
	}

	readers, err := CreateReaderOpener(cfg, open)
	if err != nil {
		_ = img.Close()
		return nil, err
	}
	opts := iso.Options{
		Prefer:        prefer,
		ReadChunkSize: cfg.ReadChunkSize,
		Metrics:       m.SessionMetrics,
	}

	startup, err := iso.Open(ctx, readers, opts)
	if err != nil {
		_ = img.Close()
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	vol := startup.Volume()
	features := startup.Features()
	_ = startup.Close()

	logger.Info("Serving image %q via %s reader (joliet=%t rockridge=%t)",
		vol.Label, cfg.Reader, features.Joliet, features.RockRidge)

	img.Factory = iso.NewFactory(readers, opts)
	return img, nil
}

// CreateReaderOpener wraps open with the format reader selected by
// cfg.Reader.
//
// Supported readers:
//   - "iso9660": decodes records with kdomanski/iso9660 and reports the
//     primary, Joliet and Rock Ridge names of every record together with
//     the Rock Ridge attributes and symlinks
//   - "diskfs": go-diskfs, which exposes a single name per record and
//     detects Rock Ridge but reports none of its attributes
func CreateReaderOpener(cfg *ImageConfig, open source.Opener) (iso.ReaderOpener, error) {
	switch cfg.Reader {
	case "", DefaultImageReader:
		return isoReader.NewOpener(open, isoReader.Options{BlockSize: cfg.BlockSize}), nil
	case "diskfs":
		return diskfs.NewOpener(open, diskfs.Options{BlockSize: cfg.BlockSize}), nil
	default:
		return nil, fmt.Errorf("unknown image reader: %s", cfg.Reader)
	}
}

// ParsePreference converts configured convention names.
func ParsePreference(names []string) ([]iso.Convention, error) {
	prefer := make([]iso.Convention, 0, len(names))
	for _, name := range names {
		c, err := iso.ParseConvention(name)
		if err != nil {
			return nil, fmt.Errorf("image.naming.prefer: %w", err)
		}
		prefer = append(prefer, c)
	}
	return prefer, nil
}

// CreateSourceOpener creates the image source opener selected by cfg.Type.
//
// Supported types:
//   - "file": a local image file, opened once per session
//   - "s3": an object read with ranged GETs through one shared client
//   - "memory": a local image file loaded into memory at startup
func CreateSourceOpener(ctx context.Context, cfg *SourceConfig, s3Metrics sourceS3.Metrics) (source.Opener, error) {
	switch cfg.Type {
	case "file":
		return createFileSource(cfg.File)
	case "memory":
		return createMemorySource(cfg.Memory)
	case "s3":
		return createS3Source(ctx, cfg.S3, s3Metrics)
	default:
		return nil, fmt.Errorf("unknown image source type: %q", cfg.Type)
	}
}

type pathSourceConfig struct {
	Path string `mapstructure:"path"`
}

func decodePath(kind string, options map[string]any) (string, error) {
	var c pathSourceConfig
	if err := mapstructure.Decode(options, &c); err != nil {
		return "", fmt.Errorf("failed to decode %s image source config: %w", kind, err)
	}
	if c.Path == "" {
		return "", fmt.Errorf("%s image source: path is required", kind)
	}
	return c.Path, nil
}

func createFileSource(options map[string]any) (source.Opener, error) {
	path, err := decodePath("file", options)
	if err != nil {
		return nil, err
	}
	return sourceFs.NewOpener(path), nil
}

func createMemorySource(options map[string]any) (source.Opener, error) {
	path, err := decodePath("memory", options)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("memory image source: %w", err)
	}
	logger.Debug("Loaded image %s into memory (%d bytes)", path, len(data))

	return sourceMemory.NewOpener(path, data), nil
}

// S3SourceConfig is the decoded image.source.s3 section.
type S3SourceConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Key             string `mapstructure:"key"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

func createS3Source(ctx context.Context, options map[string]any, metrics sourceS3.Metrics) (source.Opener, error) {
	var c S3SourceConfig
	if err := mapstructure.WeakDecode(options, &c); err != nil {
		return nil, fmt.Errorf("failed to decode S3 image source config: %w", err)
	}

	if c.Bucket == "" {
		return nil, fmt.Errorf("S3 image source: bucket is required")
	}
	if c.Key == "" {
		return nil, fmt.Errorf("S3 image source: key is required")
	}
	if c.Region == "" {
		return nil, fmt.Errorf("S3 image source: region is required")
	}

	client, err := sourceS3.NewClient(ctx, sourceS3.ClientConfig{
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		ForcePathStyle:  c.ForcePathStyle,
		MaxRetries:      c.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	logger.Info("Image source: s3://%s/%s (region %s)", c.Bucket, c.Key, c.Region)
	return sourceS3.NewOpener(client, c.Bucket, c.Key, metrics), nil
}

// CreateBlockStore creates the block store selected by cfg.Type.
// Returns nil, nil for "none".
func CreateBlockStore(ctx context.Context, cfg *CacheConfig) (cache.BlockStore, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil

	case "memory":
		var c cacheMemory.Config
		if err := mapstructure.WeakDecode(cfg.Memory, &c); err != nil {
			return nil, fmt.Errorf("failed to decode memory cache config: %w", err)
		}
		c.ExpectedBlockSize = cfg.BlockSize
		store, err := cacheMemory.New(c)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory block cache: %w", err)
		}
		return store, nil

	case "badger":
		var c cacheBadger.Config
		if err := mapstructure.WeakDecode(cfg.Badger, &c); err != nil {
			return nil, fmt.Errorf("failed to decode badger cache config: %w", err)
		}
		store, err := cacheBadger.Open(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger block cache: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown image cache type: %q", cfg.Type)
	}
}
