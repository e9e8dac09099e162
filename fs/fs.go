package fs

import (
	"fmt"
	"log/slog"

	"minifs/balloc"
	"minifs/bio"
	"minifs/inode"
	"minifs/super"
	"minifs/txn"
)

// Filesystem is a handle on one mounted volume. Every
// operation reads what it needs fresh from the device,
// batches its writes in a transaction and pushes them
// before returning. One caller at a time.
type Filesystem struct {
	d  *bio.Disk
	sb *super.Superblock

	// Stamped into every inode this handle creates.
	Owner  uint32
	Logger *slog.Logger
}

// Mkfs formats dev with geometry g and mounts the result.
// Whatever was on dev before is gone.
func Mkfs(dev bio.Device, g super.Geometry) (*Filesystem, error) {
	sb, err := super.New(g)
	if err != nil {
		return nil, fmt.Errorf("formatting volume: %w", err)
	}
	d := bio.Mkdisk(dev, sb.BlockSize, sb.NumBlocks)

	zero := make([]byte, sb.BlockSize)
	for nr := uint32(0); nr < sb.NumBlocks; nr++ {
		if err := d.Bwrite(nr, zero); err != nil {
			return nil, fmt.Errorf("formatting volume: %w", err)
		}
	}

	t := txn.BeginTransaction(d, sb)
	if err := mkfs(t); err != nil {
		t.AbortTransaction()
		return nil, fmt.Errorf("formatting volume: %w", err)
	}
	if err := t.EndTransaction(); err != nil {
		return nil, fmt.Errorf("formatting volume: %w", err)
	}

	f := newFilesystem(d, sb)
	f.Logger.Debug("formatted volume",
		"uuid", sb.UUID, "blocks", sb.NumBlocks, "inodes", sb.NumInodes, "dataStart", sb.DataStart)
	return f, nil
}

func mkfs(t *txn.TxnHandle) error {
	sb := t.Super()
	if err := t.WriteBlock(&bio.Block{Nr: 0, Data: sb.Encode()}); err != nil {
		return err
	}
	if err := balloc.ResetBitmap(t); err != nil {
		return err
	}
	for nr := sb.InodeStart; nr < sb.DataStart; nr++ {
		if err := t.WriteBlock(&bio.Block{Nr: nr, Data: make([]byte, sb.BlockSize)}); err != nil {
			return err
		}
	}

	// first fit on an empty bitmap: this is DataStart
	bn, err := balloc.AllocBlock(t)
	if err != nil {
		return err
	}

	// The root starts with no entries at all, not even "." and
	// "..": it has no parent and nothing lists them anyway.
	root := &inode.Inode{
		Serialnum: inode.RootInum,
		Valid:     true,
		Mode:      inode.Dir,
		Addrs:     [super.NDirect]uint32{bn, super.Unused, super.Unused, super.Unused},
	}
	if err := root.EnqWrite(t); err != nil {
		return err
	}
	return inode.InitDirBlock(t, bn)
}

// Mount checks that dev holds a volume and returns a handle on it.
func Mount(dev bio.Device) (*Filesystem, error) {
	sb, err := super.Load(dev)
	if err != nil {
		return nil, fmt.Errorf("mounting volume: %w", err)
	}
	d := bio.Mkdisk(dev, sb.BlockSize, sb.NumBlocks)

	// the container has to be as long as the superblock says
	if _, err := d.Bget(sb.NumBlocks - 1); err != nil {
		return nil, fmt.Errorf("mounting volume: %w", err)
	}

	t := txn.BeginTransaction(d, sb)
	defer t.AbortTransaction()
	root, err := inode.Geti(t, inode.RootInum)
	if err != nil {
		return nil, fmt.Errorf("mounting volume: %w", err)
	}
	if !root.Valid || root.Mode != inode.Dir {
		return nil, fmt.Errorf("mounting volume: root inode is not a directory: %w", ErrCorrupt)
	}

	return newFilesystem(d, sb), nil
}

// FormatFile creates (or truncates) the container file name
// and formats it.
func FormatFile(name string, g super.Geometry) (*Filesystem, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("formatting %s: %w", name, err)
	}
	dev, err := bio.CreateFile(name, g.Size())
	if err != nil {
		return nil, fmt.Errorf("formatting %s: %w", name, err)
	}

	f, err := Mkfs(dev, g)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return f, nil
}

// OpenFile mounts the volume in the container file name.
func OpenFile(name string) (*Filesystem, error) {
	dev, err := bio.OpenFile(name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}

	f, err := Mount(dev)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return f, nil
}

func newFilesystem(d *bio.Disk, sb *super.Superblock) *Filesystem {
	return &Filesystem{
		d:      d,
		sb:     sb,
		Logger: slog.Default().With("component", "FS"),
	}
}

func (f *Filesystem) Super() super.Superblock {
	return *f.sb
}

// Close releases the device. Calling it twice is harmless.
func (f *Filesystem) Close() error {
	if f.d == nil {
		return nil
	}
	err := f.d.Close()
	f.d = nil
	return err
}

// update runs fn in a transaction that is pushed to
// the device on success and dropped on failure.
func (f *Filesystem) update(op, path string, fn func(t *txn.TxnHandle) error) error {
	if f.d == nil {
		return &PathError{Op: op, Path: path, Err: ErrClosed}
	}

	t := txn.BeginTransaction(f.d, f.sb)
	if err := fn(t); err != nil {
		t.AbortTransaction()
		return &PathError{Op: op, Path: path, Err: err}
	}
	if err := t.EndTransaction(); err != nil {
		return &PathError{Op: op, Path: path, Err: err}
	}
	return nil
}

// view runs fn in a transaction that is always dropped.
func (f *Filesystem) view(op, path string, fn func(t *txn.TxnHandle) error) error {
	if f.d == nil {
		return &PathError{Op: op, Path: path, Err: ErrClosed}
	}

	t := txn.BeginTransaction(f.d, f.sb)
	defer t.AbortTransaction()
	if err := fn(t); err != nil {
		return &PathError{Op: op, Path: path, Err: err}
	}
	return nil
}

// Resolve walks path without changing anything.
func (f *Filesystem) Resolve(path string) (*Resolution, error) {
	var res *Resolution
	err := f.view("resolve", path, func(t *txn.TxnHandle) (err error) {
		res, err = resolve(t, path)
		return
	})
	return res, err
}
