package fs

import (
	"fmt"

	"minifs/balloc"
	"minifs/inode"
	"minifs/super"
	"minifs/txn"
)

// Create makes an empty file at path.
func (f *Filesystem) Create(path string) error {
	return f.update("create", path, func(t *txn.TxnHandle) error {
		res, err := resolve(t, path)
		if err != nil {
			return err
		} else if res.Found {
			return ErrExists
		} else if err := checkName(res.Name); err != nil {
			return err
		}

		parent, err := inode.Geti(t, res.Parent)
		if err != nil {
			return err
		}
		ni, err := inode.Alloci(t, inode.File, f.Owner)
		if err != nil {
			return err
		}
		if err := inode.Link(t, parent, res.Name, ni.Serialnum); err != nil {
			ni.Free(t)
			return err
		}

		f.Logger.Debug("created file", "path", path, "inode", ni.Serialnum, "parent", res.Parent)
		return nil
	})
}

// Mkdir makes an empty directory at path holding
// just "." and "..".
func (f *Filesystem) Mkdir(path string) error {
	return f.update("mkdir", path, func(t *txn.TxnHandle) error {
		res, err := resolve(t, path)
		if err != nil {
			return err
		} else if res.Found {
			return ErrExists
		} else if err := checkName(res.Name); err != nil {
			return err
		}

		parent, err := inode.Geti(t, res.Parent)
		if err != nil {
			return err
		}
		ni, err := inode.Alloci(t, inode.Dir, f.Owner)
		if err != nil {
			return err
		}

		bn, err := balloc.AllocBlock(t)
		if err != nil {
			ni.Free(t)
			return err
		}

		// undo in reverse order from here on
		fail := func(err error) error {
			balloc.RelseBlock(t, bn)
			ni.Free(t)
			return err
		}

		err = inode.InitDirBlock(t, bn,
			inode.DirEnt{Inodenum: ni.Serialnum, Filename: "."},
			inode.DirEnt{Inodenum: res.Parent, Filename: ".."},
		)
		if err != nil {
			return fail(err)
		}
		ni.Addrs[0] = bn
		ni.Filesize = 2
		if err := ni.EnqWrite(t); err != nil {
			return fail(err)
		}
		if err := inode.Link(t, parent, res.Name, ni.Serialnum); err != nil {
			return fail(err)
		}

		f.Logger.Debug("created directory", "path", path, "inode", ni.Serialnum, "block", bn)
		return nil
	})
}

// lookupFile resolves path to an existing regular file.
func lookupFile(t *txn.TxnHandle, path string) (*inode.Inode, error) {
	res, err := resolve(t, path)
	if err != nil {
		return nil, err
	} else if !res.Found {
		return nil, ErrNotFound
	}

	i, err := inode.Geti(t, res.Inum)
	if err != nil {
		return nil, err
	} else if i.Mode != inode.File {
		return nil, ErrNotFile
	}
	return i, nil
}

// Write replaces the content of the file at path with data.
// It never appends and never creates the file.
func (f *Filesystem) Write(path string, data []byte) error {
	return f.update("write", path, func(t *txn.TxnHandle) error {
		if _, err := splitPath(path); err != nil {
			return err
		}
		if max := f.sb.MaxFileSize(); len(data) > int(max) {
			return fmt.Errorf("%d bytes, at most %d fit: %w", len(data), max, ErrTooLarge)
		}

		i, err := lookupFile(t, path)
		if err != nil {
			return err
		}
		if err := inode.Writei(t, i, data); err != nil {
			return err
		}

		f.Logger.Debug("wrote file", "path", path, "inode", i.Serialnum, "bytes", len(data), "blocks", i.Blocks())
		return nil
	})
}

// Read copies the front of the file at path into buf and
// returns how many bytes that was: the smaller of the
// file size and len(buf).
func (f *Filesystem) Read(path string, buf []byte) (int, error) {
	var n int
	err := f.view("read", path, func(t *txn.TxnHandle) error {
		i, err := lookupFile(t, path)
		if err != nil {
			return err
		}

		want := i.Filesize
		if uint64(len(buf)) < uint64(want) {
			want = uint32(len(buf))
		}
		data, err := inode.Readi(t, i, want)
		if err != nil {
			return err
		}
		n = copy(buf, data)
		return nil
	})
	return n, err
}

// ReadAll returns the whole file at path.
func (f *Filesystem) ReadAll(path string) ([]byte, error) {
	var data []byte
	err := f.view("read", path, func(t *txn.TxnHandle) error {
		i, err := lookupFile(t, path)
		if err != nil {
			return err
		}
		data, err = inode.Readi(t, i, i.Filesize)
		return err
	})
	return data, err
}

// Delete removes the file at path: its blocks, its inode,
// then its entry in the parent.
func (f *Filesystem) Delete(path string) error {
	return f.update("delete", path, func(t *txn.TxnHandle) error {
		res, err := resolve(t, path)
		if err != nil {
			return err
		} else if res.IsRoot() {
			return ErrNotFile
		} else if err := checkName(res.Name); err != nil {
			return err
		} else if !res.Found {
			return ErrNotFound
		}

		i, err := inode.Geti(t, res.Inum)
		if err != nil {
			return err
		} else if i.Mode != inode.File {
			return ErrNotFile
		}

		if err := release(t, i); err != nil {
			return err
		}
		if err := unlink(t, res); err != nil {
			return err
		}

		f.Logger.Debug("deleted file", "path", path, "inode", res.Inum)
		return nil
	})
}

// Rmdir removes the directory at path, which must hold
// nothing besides "." and "..".
func (f *Filesystem) Rmdir(path string) error {
	return f.update("rmdir", path, func(t *txn.TxnHandle) error {
		res, err := resolve(t, path)
		if err != nil {
			return err
		} else if res.IsRoot() {
			return fmt.Errorf("the root directory can't be removed: %w", ErrInvalidPath)
		} else if err := checkName(res.Name); err != nil {
			return err
		} else if !res.Found {
			return ErrNotFound
		}

		dir, err := inode.Geti(t, res.Inum)
		if err != nil {
			return err
		} else if dir.Mode != inode.Dir {
			return ErrNotDir
		}

		ents, err := inode.Entries(t, dir)
		if err != nil {
			return err
		}
		for _, d := range ents {
			if !inode.IsDot(d.Filename) {
				return ErrNotEmpty
			}
		}

		if err := release(t, dir); err != nil {
			return err
		}
		if err := unlink(t, res); err != nil {
			return err
		}

		f.Logger.Debug("removed directory", "path", path, "inode", res.Inum)
		return nil
	})
}

func release(t *txn.TxnHandle, i *inode.Inode) error {
	if err := i.Truncate(t); err != nil {
		return err
	}
	return i.Free(t)
}

func unlink(t *txn.TxnHandle, res *Resolution) error {
	parent, err := inode.Geti(t, res.Parent)
	if err != nil {
		return err
	}
	return inode.Unlink(t, parent, res.Name)
}

// List returns the live entries of the directory at path,
// without "." and "..", at most max of them. max <= 0
// means no limit.
func (f *Filesystem) List(path string, max int) ([]inode.DirEnt, error) {
	var res []inode.DirEnt
	err := f.view("list", path, func(t *txn.TxnHandle) error {
		r, err := resolve(t, path)
		if err != nil {
			return err
		} else if !r.Found {
			return ErrNotFound
		}

		dir, err := inode.Geti(t, r.Inum)
		if err != nil {
			return err
		}
		ents, err := inode.Entries(t, dir)
		if err != nil {
			return err
		}

		res = []inode.DirEnt{}
		for _, d := range ents {
			if max > 0 && len(res) == max {
				break
			}
			if !inode.IsDot(d.Filename) {
				res = append(res, d)
			}
		}
		return nil
	})
	return res, err
}

// Stat returns the inode behind path.
func (f *Filesystem) Stat(path string) (*inode.Inode, error) {
	var i *inode.Inode
	err := f.view("stat", path, func(t *txn.TxnHandle) error {
		r, err := resolve(t, path)
		if err != nil {
			return err
		} else if !r.Found {
			return ErrNotFound
		}
		i, err = inode.Geti(t, r.Inum)
		return err
	})
	return i, err
}

type Info struct {
	Super      super.Superblock
	FreeBlocks uint32
	FreeInodes uint32
}

// Info reports the superblock and how much is left.
func (f *Filesystem) Info() (*Info, error) {
	info := &Info{Super: *f.sb}
	err := f.view("info", "/", func(t *txn.TxnHandle) (err error) {
		if info.FreeBlocks, err = balloc.FreeCount(t); err != nil {
			return err
		}
		info.FreeInodes, err = inode.FreeCount(t)
		return err
	})
	return info, err
}
