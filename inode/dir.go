package inode

import (
	"fmt"
	"strings"

	"minifs/balloc"
	"minifs/bio"
	"minifs/super"
	"minifs/txn"
)

type DirEnt struct {
	Inodenum uint32
	Filename string
}

func (d *DirEnt) Free() bool {
	return d.Inodenum == super.Unused
}

// Dot entries every directory but the root carries.
func IsDot(name string) bool {
	return name == "." || name == ".."
}

func readDirBlock(t *txn.TxnHandle, bn uint32) (*bio.Block, []*DirEnt, error) {
	blk, err := t.ReadBlock(bn)
	if err != nil {
		return nil, nil, fmt.Errorf("reading directory block %d: %w", bn, err)
	}

	n := t.Super().DirEntsPerBlock()
	ents := make([]*DirEnt, n)
	for k := uint32(0); k < n; k++ {
		ents[k] = DDecode(blk.Data[k*super.DirEntSize:])
	}
	return blk, ents, nil
}

func putDirEnt(blk *bio.Block, slot uint32, d *DirEnt) {
	copy(blk.Data[slot*super.DirEntSize:(slot+1)*super.DirEntSize], d.Encode())
}

// Writes block bn as a directory block whose first
// slots hold ents and every other slot is free.
func InitDirBlock(t *txn.TxnHandle, bn uint32, ents ...DirEnt) error {
	blk := &bio.Block{Nr: bn, Data: make([]byte, t.Super().BlockSize)}
	for k := uint32(0); k < t.Super().DirEntsPerBlock(); k++ {
		d := &freeDirEnt
		if k < uint32(len(ents)) {
			d = &ents[k]
		}
		putDirEnt(blk, k, d)
	}
	return t.WriteBlock(blk)
}

// Lookup scans the directory's blocks in slot order and each
// block in storage order for a live entry called name.
func Lookup(t *txn.TxnHandle, dir *Inode, name string) (uint32, error) {
	if dir.Mode != Dir {
		return 0, fmt.Errorf("inode %d: %w", dir.Serialnum, ErrNotDir)
	}

	for _, bn := range dir.Blocks() {
		_, ents, err := readDirBlock(t, bn)
		if err != nil {
			return 0, err
		}
		for _, d := range ents {
			if !d.Free() && d.Filename == name {
				return d.Inodenum, nil
			}
		}
	}
	return 0, ErrNoEnt
}

// Link adds name -> inum to dir, taking the first free slot in
// the existing blocks before growing the directory by a block.
func Link(t *txn.TxnHandle, dir *Inode, name string, inum uint32) error {
	if dir.Mode != Dir {
		return fmt.Errorf("inode %d: %w", dir.Serialnum, ErrNotDir)
	} else if len(name) > MaxNameLen {
		return fmt.Errorf("%q: %w", name, ErrNameTooLong)
	} else if strings.IndexByte(name, 0) >= 0 {
		// the on-disk name ends at the first NUL
		return fmt.Errorf("%q: %w", name, ErrBadName)
	}
	nd := &DirEnt{Inodenum: inum, Filename: name}

	for _, bn := range dir.Blocks() {
		blk, ents, err := readDirBlock(t, bn)
		if err != nil {
			return err
		}
		for k, d := range ents {
			if !d.Free() {
				continue
			}
			putDirEnt(blk, uint32(k), nd)
			if err := t.WriteBlock(blk); err != nil {
				return err
			}
			dir.Filesize++
			return dir.EnqWrite(t)
		}
	}

	slot := -1
	for k, a := range dir.Addrs {
		if a == super.Unused {
			slot = k
			break
		}
	}
	if slot < 0 {
		return ErrDirFull
	}

	bn, err := balloc.AllocBlock(t)
	if err != nil {
		return err
	}
	if err := InitDirBlock(t, bn, *nd); err != nil {
		balloc.RelseBlock(t, bn)
		return err
	}

	dir.Addrs[slot] = bn
	dir.Filesize++
	return dir.EnqWrite(t)
}

// Unlink frees the slot holding name. The block stays with
// the directory even once it has nothing live in it.
func Unlink(t *txn.TxnHandle, dir *Inode, name string) error {
	if dir.Mode != Dir {
		return fmt.Errorf("inode %d: %w", dir.Serialnum, ErrNotDir)
	}

	for _, bn := range dir.Blocks() {
		blk, ents, err := readDirBlock(t, bn)
		if err != nil {
			return err
		}
		for k, d := range ents {
			if d.Free() || d.Filename != name {
				continue
			}
			putDirEnt(blk, uint32(k), &freeDirEnt)
			if err := t.WriteBlock(blk); err != nil {
				return err
			}
			if dir.Filesize > 0 {
				dir.Filesize--
			}
			return dir.EnqWrite(t)
		}
	}
	return ErrNoEnt
}

// Entries returns every live entry, "." and ".." included,
// in lookup order.
func Entries(t *txn.TxnHandle, dir *Inode) ([]DirEnt, error) {
	if dir.Mode != Dir {
		return nil, fmt.Errorf("inode %d: %w", dir.Serialnum, ErrNotDir)
	}

	var res []DirEnt
	for _, bn := range dir.Blocks() {
		_, ents, err := readDirBlock(t, bn)
		if err != nil {
			return nil, err
		}
		for _, d := range ents {
			if !d.Free() {
				res = append(res, *d)
			}
		}
	}
	return res, nil
}
