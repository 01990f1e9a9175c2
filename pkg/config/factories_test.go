package config

import (
	"context"
	"testing"

	"github.com/marmos91/dittoiso/pkg/adapter/ftp"
	"github.com/marmos91/dittoiso/pkg/image/diskfs/isotest"
	"github.com/marmos91/dittoiso/pkg/storage/iso"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixtureFiles = map[string]string{
	"DOCS/README.TXT": "0123456789",
	"HELLO.TXT":       "hello, world\n",
}

func imageConfig(t *testing.T, sourceType, cacheType string) *ImageConfig {
	t.Helper()

	cfg := GetDefaultConfig()
	imagePath := isotest.Build(t, fixtureFiles, isotest.Options{Label: "CFGTEST"})

	cfg.Image.Source.Type = sourceType
	cfg.Image.Source.File["path"] = imagePath
	cfg.Image.Source.Memory["path"] = imagePath
	cfg.Image.Cache.Type = cacheType
	cfg.Image.Cache.BlockSize = 4096
	cfg.Image.Cache.Memory["max_size_bytes"] = 1 << 20
	cfg.Image.Cache.Badger["in_memory"] = true
	return &cfg.Image
}

func TestCreateImage(t *testing.T) {
	tests := []struct {
		source string
		cache  string
		reader string
	}{
		{"file", "none", "iso9660"},
		{"memory", "none", "iso9660"},
		{"file", "memory", "iso9660"},
		{"file", "badger", "iso9660"},
		{"file", "none", "diskfs"},
		{"file", "memory", "diskfs"},
	}

	for _, tt := range tests {
		t.Run(tt.source+"/"+tt.cache+"/"+tt.reader, func(t *testing.T) {
			ctx := context.Background()

			cfg := imageConfig(t, tt.source, tt.cache)
			cfg.Reader = tt.reader
			img, err := CreateImage(ctx, cfg, nil)
			require.NoError(t, err)
			t.Cleanup(func() { assert.NoError(t, img.Close()) })

			backend, err := img.Factory.NewSession(ctx)
			require.NoError(t, err)
			defer backend.Close()

			md, err := backend.Stat(ctx, "/DOCS/README.TXT")
			require.NoError(t, err)
			assert.Equal(t, uint64(10), md.Size)

			entries, err := backend.List(ctx, "/")
			require.NoError(t, err)
			assert.Len(t, entries, 2)
		})
	}
}

func TestCreateImage_MissingFile(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Image.Source.File["path"] = "/nonexistent/disc.iso"

	_, err := CreateImage(context.Background(), &cfg.Image, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open image")
}

func TestCreateReaderOpener(t *testing.T) {
	cfg := imageConfig(t, "file", "none")
	open, err := CreateSourceOpener(context.Background(), &cfg.Source, nil)
	require.NoError(t, err)

	for _, name := range []string{"iso9660", "diskfs"} {
		cfg.Reader = name
		readers, err := CreateReaderOpener(cfg, open)
		require.NoError(t, err, name)

		r, err := readers(context.Background())
		require.NoError(t, err, name)
		assert.Equal(t, "CFGTEST", r.Volume().Label, name)
		require.NoError(t, r.Close())
	}

	cfg.Reader = "udf"
	_, err = CreateReaderOpener(cfg, open)
	assert.ErrorContains(t, err, "unknown image reader")
}

func TestCreateSourceOpener_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := CreateSourceOpener(ctx, &SourceConfig{Type: "file", File: map[string]any{}}, nil)
	assert.ErrorContains(t, err, "path is required")

	_, err = CreateSourceOpener(ctx, &SourceConfig{Type: "s3", S3: map[string]any{"key": "disc.iso", "region": "us-east-1"}}, nil)
	assert.ErrorContains(t, err, "bucket is required")

	_, err = CreateSourceOpener(ctx, &SourceConfig{Type: "s3", S3: map[string]any{"bucket": "images", "region": "us-east-1"}}, nil)
	assert.ErrorContains(t, err, "key is required")

	_, err = CreateSourceOpener(ctx, &SourceConfig{Type: "memory", Memory: map[string]any{"path": "/nonexistent/disc.iso"}}, nil)
	assert.Error(t, err)

	_, err = CreateSourceOpener(ctx, &SourceConfig{Type: "nfs"}, nil)
	assert.ErrorContains(t, err, "unknown image source type")
}

func TestCreateBlockStore(t *testing.T) {
	ctx := context.Background()

	store, err := CreateBlockStore(ctx, &CacheConfig{Type: "none"})
	require.NoError(t, err)
	assert.Nil(t, store)

	_, err = CreateBlockStore(ctx, &CacheConfig{Type: "memory", BlockSize: 4096, Memory: map[string]any{"max_size_bytes": 0}})
	assert.Error(t, err)

	_, err = CreateBlockStore(ctx, &CacheConfig{Type: "badger", Badger: map[string]any{}})
	assert.ErrorContains(t, err, "path is required")
}

func TestParsePreference(t *testing.T) {
	prefer, err := ParsePreference([]string{"joliet", "iso9660"})
	require.NoError(t, err)
	assert.Equal(t, []iso.Convention{iso.Joliet, iso.ISO9660}, prefer)

	_, err = ParsePreference([]string{"udf"})
	assert.Error(t, err)
}

func TestCreateAdapters(t *testing.T) {
	cfg := GetDefaultConfig()

	adapters, err := CreateAdapters(cfg, nil)
	require.NoError(t, err)
	require.Len(t, adapters, 1)
	assert.Equal(t, "FTP", adapters[0].Protocol())
	assert.Equal(t, 2121, adapters[0].Port())
	assert.IsType(t, &ftp.FTPAdapter{}, adapters[0])

	cfg.Adapters.FTP.Enabled = false
	_, err = CreateAdapters(cfg, nil)
	assert.Error(t, err)
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	m := InitializeMetrics(GetDefaultConfig())
	assert.Nil(t, m.Server)
	assert.NotNil(t, m.FTPMetrics)
	assert.Nil(t, m.SessionMetrics)
	assert.Nil(t, m.S3Metrics)
}
