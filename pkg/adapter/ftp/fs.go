package ftp

import (
	"context"
	"io"
	"os"
	"path"
	"strings"
	"time"

	ftpserver "github.com/fclairamb/ftpserverlib"
	"github.com/marmos91/dittoiso/internal/logger"
	"github.com/marmos91/dittoiso/pkg/metrics"
	"github.com/marmos91/dittoiso/pkg/storage"
	"github.com/spf13/afero"
)

// writeFlags are the open flags that would modify the tree.
const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_CREATE | os.O_TRUNC | os.O_APPEND

// clientFs exposes one backend session as the afero.Fs the FTP library
// drives. Every call is forwarded to the backend with the connection's
// context, and backend errors are translated to *os.PathError.
type clientFs struct {
	ctx     context.Context
	backend storage.Backend
	metrics metrics.FTPMetrics
	log     *logger.Entry
}

var (
	_ afero.Fs                                = (*clientFs)(nil)
	_ ftpserver.ClientDriverExtensionFileList = (*clientFs)(nil)
)

func newClientFs(ctx context.Context, backend storage.Backend, m metrics.FTPMetrics, log *logger.Entry) *clientFs {
	if m == nil {
		m = metrics.NewNoopFTPMetrics()
	}
	if log == nil {
		log = logger.With(nil)
	}
	return &clientFs{ctx: ctx, backend: backend, metrics: m, log: log}
}

// observe records one backend operation.
func (fs *clientFs) observe(op, name string, start time.Time, err error) {
	fs.metrics.RecordOperation(op, time.Since(start), err)
	if err != nil {
		fs.log.With(logger.Fields{"op": op, "path": name}).Debug("FTP operation failed: %v", err)
	}
}

func clean(name string) string {
	return path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
}

func (fs *clientFs) Name() string { return "dittoiso" }

func (fs *clientFs) Stat(name string) (os.FileInfo, error) {
	start := time.Now()
	md, err := fs.backend.Stat(fs.ctx, name)
	fs.observe("stat", name, start, err)
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return newFileInfo(path.Base(clean(name)), *md), nil
}

// ReadDir lists a directory without going through Open/Readdir.
func (fs *clientFs) ReadDir(name string) ([]os.FileInfo, error) {
	start := time.Now()
	entries, err := fs.backend.List(fs.ctx, name)
	fs.observe("list", name, start, err)
	if err != nil {
		return nil, pathError("readdir", name, err)
	}

	infos := make([]os.FileInfo, len(entries))
	for i, e := range entries {
		infos[i] = newFileInfo(e.Name, e.Metadata)
	}
	return infos, nil
}

func (fs *clientFs) Open(name string) (afero.File, error) {
	return fs.OpenFile(name, os.O_RDONLY, 0)
}

func (fs *clientFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&writeFlags != 0 {
		return nil, fs.store(name)
	}

	info, err := fs.Stat(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return &dirHandle{fs: fs, name: clean(name), info: info}, nil
	}
	return &fileHandle{fs: fs, name: clean(name), info: info}, nil
}

// GetHandle opens a transfer at offset, for RETR after REST.
func (fs *clientFs) GetHandle(name string, flags int, offset int64) (ftpserver.FileTransfer, error) {
	f, err := fs.OpenFile(name, flags, 0)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// store runs an upload through the backend, which refuses it.
func (fs *clientFs) store(name string) error {
	start := time.Now()
	_, err := fs.backend.Store(fs.ctx, name, strings.NewReader(""), 0)
	fs.observe("store", name, start, err)
	return pathError("open", name, err)
}

func (fs *clientFs) Create(name string) (afero.File, error) {
	return nil, fs.store(name)
}

func (fs *clientFs) Mkdir(name string, perm os.FileMode) error {
	start := time.Now()
	err := fs.backend.Mkdir(fs.ctx, name)
	fs.observe("mkdir", name, start, err)
	return pathError("mkdir", name, err)
}

func (fs *clientFs) MkdirAll(p string, perm os.FileMode) error {
	return fs.Mkdir(p, perm)
}

func (fs *clientFs) Remove(name string) error {
	start := time.Now()
	err := fs.backend.Delete(fs.ctx, name)
	fs.observe("delete", name, start, err)
	return pathError("remove", name, err)
}

func (fs *clientFs) RemoveAll(p string) error {
	return fs.Remove(p)
}

// RemoveDir handles RMD.
func (fs *clientFs) RemoveDir(name string) error {
	start := time.Now()
	err := fs.backend.Rmdir(fs.ctx, name)
	fs.observe("rmdir", name, start, err)
	return pathError("rmdir", name, err)
}

func (fs *clientFs) Rename(oldname, newname string) error {
	start := time.Now()
	err := fs.backend.Rename(fs.ctx, oldname, newname)
	fs.observe("rename", oldname, start, err)
	return pathError("rename", oldname, err)
}

func (fs *clientFs) setAttrs(op, name string, attrs storage.Attrs) error {
	start := time.Now()
	err := fs.backend.SetAttrs(fs.ctx, name, attrs)
	fs.observe("setattr", name, start, err)
	return pathError(op, name, err)
}

func (fs *clientFs) Chmod(name string, mode os.FileMode) error {
	return fs.setAttrs("chmod", name, storage.Attrs{Mode: &mode})
}

func (fs *clientFs) Chown(name string, uid, gid int) error {
	u, g := uint32(uid), uint32(gid)
	return fs.setAttrs("chown", name, storage.Attrs{UID: &u, GID: &g})
}

func (fs *clientFs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return fs.setAttrs("chtimes", name, storage.Attrs{ModTime: &mtime})
}

// Symlink handles SITE SYMLINK.
func (fs *clientFs) Symlink(oldname, newname string) error {
	return denied("symlink", newname)
}

// Readlink returns the target of a Rock Ridge symbolic link.
func (fs *clientFs) Readlink(name string) (string, error) {
	start := time.Now()
	target, err := fs.backend.Readlink(fs.ctx, name)
	fs.observe("readlink", name, start, err)
	if err != nil {
		return "", pathError("readlink", name, err)
	}
	return target, nil
}

// fileInfo adapts backend metadata to os.FileInfo.
type fileInfo struct {
	name string
	md   storage.Metadata
}

func newFileInfo(name string, md storage.Metadata) *fileInfo {
	return &fileInfo{name: name, md: md}
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return int64(fi.md.Size) }
func (fi *fileInfo) Mode() os.FileMode  { return fi.md.FileMode() }
func (fi *fileInfo) ModTime() time.Time { return fi.md.ModTime }
func (fi *fileInfo) IsDir() bool        { return fi.md.IsDir() }
func (fi *fileInfo) Sys() any           { return &fi.md }
