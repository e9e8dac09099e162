package fs

import (
	"errors"
	"fmt"
	"strings"

	"minifs/inode"
	"minifs/txn"
)

// Resolution is what a path walk found. Parent and Name are
// always set once the walk reaches the last component; Inum
// only means something when Found is true.
type Resolution struct {
	Parent uint32
	Name   string
	Inum   uint32
	Found  bool
}

func (r *Resolution) IsRoot() bool {
	return r.Found && r.Inum == inode.RootInum && r.Name == "/"
}

func splitPath(path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%q is not absolute: %w", path, ErrInvalidPath)
	}

	var comps []string
	for _, c := range strings.Split(path, "/") {
		if c != "" {
			comps = append(comps, c)
		}
	}
	return comps, nil
}

// resolve walks from the root through every component but the
// last. A missing or non-directory component on the way is
// ErrParentNotFound; a missing leaf is not an error.
func resolve(t *txn.TxnHandle, path string) (*Resolution, error) {
	comps, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	if len(comps) == 0 {
		return &Resolution{
			Parent: inode.RootInum,
			Name:   "/",
			Inum:   inode.RootInum,
			Found:  true,
		}, nil
	}

	cur := uint32(inode.RootInum)
	for _, c := range comps[:len(comps)-1] {
		dir, err := inode.Geti(t, cur)
		if err != nil {
			return nil, err
		}
		next, err := inode.Lookup(t, dir, c)
		if errors.Is(err, inode.ErrNoEnt) || errors.Is(err, inode.ErrNotDir) {
			return nil, fmt.Errorf("%q in %q: %w", c, path, ErrParentNotFound)
		} else if err != nil {
			return nil, err
		}
		cur = next
	}

	parent, err := inode.Geti(t, cur)
	if err != nil {
		return nil, err
	}
	if !parent.Valid || parent.Mode != inode.Dir {
		return nil, fmt.Errorf("parent of %q is not a directory: %w", path, ErrParentNotFound)
	}

	res := &Resolution{
		Parent: cur,
		Name:   comps[len(comps)-1],
	}
	inum, err := inode.Lookup(t, parent, res.Name)
	switch {
	case err == nil:
		res.Inum = inum
		res.Found = true
	case !errors.Is(err, inode.ErrNoEnt):
		return nil, err
	}
	return res, nil
}

// Names a caller may create or remove.
func checkName(name string) error {
	if inode.IsDot(name) {
		return fmt.Errorf("%q is reserved: %w", name, ErrInvalidPath)
	} else if len(name) > inode.MaxNameLen {
		return fmt.Errorf("%q is longer than %d bytes: %w", name, inode.MaxNameLen, ErrInvalidPath)
	} else if strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("%q contains a NUL byte: %w", name, ErrInvalidPath)
	}
	return nil
}
