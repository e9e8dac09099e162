package fs

import (
	"errors"

	"minifs/balloc"
	"minifs/bio"
	"minifs/inode"
	"minifs/super"
)

// Error kinds callers can test for with errors.Is.
var (
	ErrInvalidPath    = errors.New("invalid path")
	ErrParentNotFound = errors.New("parent path not found")
	ErrExists         = errors.New("already exists")
	ErrNotEmpty       = errors.New("directory not empty")
	ErrCorrupt        = errors.New("volume is corrupt")
	ErrClosed         = errors.New("volume is closed")

	ErrNotFound       = inode.ErrNoEnt
	ErrNotDir         = inode.ErrNotDir
	ErrNotFile        = inode.ErrNotFile
	ErrInodeExhausted = inode.ErrNoInodes
	ErrDirFull        = inode.ErrDirFull
	ErrTooLarge       = inode.ErrTooBig
	ErrBlockExhausted = balloc.ErrNoBlocks
	ErrIO             = bio.ErrShortIO
	ErrBadMagic       = super.ErrBadMagic
	ErrBadGeometry    = super.ErrBadGeometry
)

// PathError records the operation and path that failed.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}
