package ftp

import (
	"errors"
	"os"
	"syscall"

	"github.com/marmos91/dittoiso/pkg/storage"
)

// pathError converts a backend error into the *os.PathError shape the FTP
// library and afero callers inspect with os.IsNotExist / os.IsPermission.
func pathError(op, name string, err error) error {
	if err == nil {
		return nil
	}

	var pe *os.PathError
	if errors.As(err, &pe) {
		return err
	}

	code, ok := storage.CodeOf(err)
	if !ok {
		return &os.PathError{Op: op, Path: name, Err: err}
	}

	var mapped error
	switch code {
	case storage.ErrNotFound:
		mapped = os.ErrNotExist
	case storage.ErrPermissionDenied:
		mapped = os.ErrPermission
	case storage.ErrNotDirectory:
		mapped = syscall.ENOTDIR
	case storage.ErrNotFile:
		mapped = syscall.EISDIR
	case storage.ErrInvalidArgument:
		mapped = os.ErrInvalid
	default:
		mapped = syscall.EIO
	}
	return &os.PathError{Op: op, Path: name, Err: mapped}
}

// denied is returned for operations the facade refuses on its own.
func denied(op, name string) error {
	return &os.PathError{Op: op, Path: name, Err: os.ErrPermission}
}
