// Package isotest writes real ISO 9660 images for tests.
package isotest

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"testing"

	"github.com/diskfs/go-diskfs/filesystem/iso9660"
	"github.com/stretchr/testify/require"
)

// Options configures a fixture image.
type Options struct {
	// RockRidge records POSIX names and attributes
	RockRidge bool

	// Label is the volume identifier (default: "DITTOISO")
	Label string
}

// Build writes an image holding files (slash-separated path to content)
// into a temporary directory and returns its path. Parent directories are
// created implicitly; a path ending in "/" creates an empty directory.
func Build(t testing.TB, files map[string]string, opts Options) string {
	t.Helper()

	dir := t.TempDir()
	imagePath := filepath.Join(dir, "fixture.iso")

	f, err := os.Create(imagePath)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	fs, err := iso9660.Create(f, 0, 0, 2048, "")
	require.NoError(t, err)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := path.Clean("/" + name)
		isDir := name[len(name)-1] == '/'

		if isDir {
			require.NoError(t, fs.Mkdir(p))
			continue
		}
		if parent := path.Dir(p); parent != "/" {
			require.NoError(t, fs.Mkdir(parent))
		}

		rw, err := fs.OpenFile(p, os.O_CREATE|os.O_RDWR)
		require.NoError(t, err)
		_, err = rw.Write([]byte(files[name]))
		require.NoError(t, err)
		if c, ok := rw.(io.Closer); ok {
			require.NoError(t, c.Close())
		}
	}

	label := opts.Label
	if label == "" {
		label = "DITTOISO"
	}

	require.NoError(t, fs.Finalize(iso9660.FinalizeOptions{
		RockRidge:        opts.RockRidge,
		VolumeIdentifier: label,
	}))

	return imagePath
}
