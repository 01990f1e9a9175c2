package ftp

import (
	"context"
	"io"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/dittoiso/pkg/image/memory"
	"github.com/marmos91/dittoiso/pkg/metrics"
	"github.com/marmos91/dittoiso/pkg/storage/iso"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testImage is a small plain ISO 9660 tree.
//
//	/DOCS/README.TXT;1  "0123456789"
//	/DOCS/EMPTY         (directory)
//	/HELLO.TXT;1        "hello"
func testImage() *memory.Image {
	b := memory.NewBuilder(memory.WithLabel("FTPTEST"))
	docs := b.Root().Dir("DOCS")
	docs.File("README.TXT;1", []byte("0123456789"))
	docs.Dir("EMPTY")
	b.Root().File("HELLO.TXT;1", []byte("hello"))
	return b.Build()
}

type countingMetrics struct {
	metrics.FTPMetrics
	sent atomic.Int64
	ops  atomic.Int64
}

func (m *countingMetrics) RecordBytesSent(n int64) { m.sent.Add(n) }

func (m *countingMetrics) RecordOperation(string, time.Duration, error) { m.ops.Add(1) }

func newTestFs(t *testing.T, m metrics.FTPMetrics) *clientFs {
	t.Helper()
	s, err := iso.Open(context.Background(), testImage().Opener(), iso.Options{ReadChunkSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return newClientFs(context.Background(), s, m, nil)
}

func TestFsStat(t *testing.T) {
	fs := newTestFs(t, nil)

	fi, err := fs.Stat("/DOCS/README.TXT")
	require.NoError(t, err)
	assert.Equal(t, "README.TXT", fi.Name())
	assert.Equal(t, int64(10), fi.Size())
	assert.False(t, fi.IsDir())
	assert.False(t, fi.Mode().IsDir())

	fi, err = fs.Stat("docs")
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
	assert.True(t, fi.Mode().IsDir())

	_, err = fs.Stat("/DOCS/MISSING.TXT")
	assert.True(t, os.IsNotExist(err))

	_, err = fs.Stat("/HELLO.TXT/X")
	require.Error(t, err)
	assert.False(t, os.IsNotExist(err))
}

func TestFsReadDir(t *testing.T) {
	fs := newTestFs(t, nil)

	infos, err := fs.ReadDir("/")
	require.NoError(t, err)
	names := make([]string, len(infos))
	for i, fi := range infos {
		names[i] = fi.Name()
	}
	assert.ElementsMatch(t, []string{"DOCS", "HELLO.TXT"}, names)

	_, err = fs.ReadDir("/HELLO.TXT")
	require.Error(t, err)

	_, err = fs.ReadDir("/NOPE")
	assert.True(t, os.IsNotExist(err))
}

func TestDirHandleReaddir(t *testing.T) {
	fs := newTestFs(t, nil)

	d, err := fs.Open("/DOCS")
	require.NoError(t, err)
	defer d.Close()

	first, err := d.Readdir(1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := d.Readdir(1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].Name(), second[0].Name())

	_, err = d.Readdir(1)
	assert.Equal(t, io.EOF, err)

	_, err = d.Seek(0, io.SeekStart)
	require.NoError(t, err)
	names, err := d.Readdirnames(-1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"README.TXT", "EMPTY"}, names)

	_, err = d.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestFileHandleReadAndSeek(t *testing.T) {
	m := &countingMetrics{FTPMetrics: metrics.NewNoopFTPMetrics()}
	fs := newTestFs(t, m)

	f, err := fs.Open("/DOCS/README.TXT")
	require.NoError(t, err)
	defer f.Close()

	pos, err := f.Seek(3, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pos)

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "3456789", string(data))
	assert.Equal(t, int64(7), m.sent.Load())

	pos, err = f.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(8), pos)
	data, err = io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "89", string(data))

	_, err = f.Seek(-1, io.SeekStart)
	assert.Error(t, err)

	_, err = f.Readdir(-1)
	assert.Error(t, err)
}

func TestFileHandleReadAt(t *testing.T) {
	fs := newTestFs(t, nil)

	f, err := fs.Open("/DOCS/README.TXT")
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 4)
	n, err := f.ReadAt(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, "2345", string(buf[:n]))

	n, err = f.ReadAt(buf, 8)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "89", string(buf[:n]))

	n, err = f.ReadAt(buf, 50)
	assert.Equal(t, io.EOF, err)
	assert.Zero(t, n)
}

func TestFileHandleClose(t *testing.T) {
	fs := newTestFs(t, nil)

	f, err := fs.Open("/HELLO.TXT")
	require.NoError(t, err)
	_, err = f.Read(make([]byte, 2))
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err = f.Read(make([]byte, 1))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestGetHandleAtOffset(t *testing.T) {
	fs := newTestFs(t, nil)

	h, err := fs.GetHandle("/DOCS/README.TXT", os.O_RDONLY, 5)
	require.NoError(t, err)
	defer h.Close()

	data, err := io.ReadAll(h)
	require.NoError(t, err)
	assert.Equal(t, "56789", string(data))

	_, err = fs.GetHandle("/DOCS/NEW.TXT", os.O_WRONLY|os.O_CREATE, 0)
	assert.True(t, os.IsPermission(err))
}

func TestFsRefusesMutations(t *testing.T) {
	m := &countingMetrics{FTPMetrics: metrics.NewNoopFTPMetrics()}
	fs := newTestFs(t, m)

	_, err := fs.Create("/NEW.TXT")
	assert.True(t, os.IsPermission(err), "create")

	_, err = fs.OpenFile("/DOCS/README.TXT", os.O_RDWR, 0)
	assert.True(t, os.IsPermission(err), "open for write")

	_, err = fs.OpenFile("/DOCS/README.TXT", os.O_WRONLY|os.O_APPEND, 0)
	assert.True(t, os.IsPermission(err), "append")

	assert.True(t, os.IsPermission(fs.Mkdir("/NEWDIR", 0o755)), "mkdir")
	assert.True(t, os.IsPermission(fs.MkdirAll("/A/B/C", 0o755)), "mkdirall")
	assert.True(t, os.IsPermission(fs.Remove("/HELLO.TXT")), "remove")
	assert.True(t, os.IsPermission(fs.RemoveAll("/DOCS")), "removeall")
	assert.True(t, os.IsPermission(fs.RemoveDir("/DOCS/EMPTY")), "rmdir")
	assert.True(t, os.IsPermission(fs.Rename("/HELLO.TXT", "/BYE.TXT")), "rename")
	assert.True(t, os.IsPermission(fs.Chmod("/HELLO.TXT", 0o777)), "chmod")
	assert.True(t, os.IsPermission(fs.Chown("/HELLO.TXT", 1, 1)), "chown")
	assert.True(t, os.IsPermission(fs.Chtimes("/HELLO.TXT", time.Now(), time.Now())), "chtimes")
	assert.True(t, os.IsPermission(fs.Symlink("/HELLO.TXT", "/LINK")), "symlink")

	// the guard answers before looking the path up
	assert.True(t, os.IsPermission(fs.Remove("/NO/SUCH/FILE")))

	f, err := fs.Open("/HELLO.TXT")
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Write([]byte("x"))
	assert.True(t, os.IsPermission(err), "write")
	assert.True(t, os.IsPermission(f.Truncate(0)), "truncate")

	assert.Positive(t, m.ops.Load())
}

func TestFsReadlinkWithoutRockRidge(t *testing.T) {
	fs := newTestFs(t, nil)

	_, err := fs.Readlink("/HELLO.TXT")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrInvalid)
}
