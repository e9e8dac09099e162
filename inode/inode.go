package inode

import (
	"errors"
	"fmt"

	"minifs/super"
	"minifs/txn"
)

const RootInum = 0

type IType uint32

const (
	File IType = iota
	Dir
)

func (m IType) String() string {
	if m == Dir {
		return "dir"
	}
	return "file"
}

var (
	ErrNoInodes    = errors.New("no free inodes")
	ErrBadInum     = errors.New("inode number out of range")
	ErrNotDir      = errors.New("not a directory")
	ErrNotFile     = errors.New("not a regular file")
	ErrNoEnt       = errors.New("no such file or directory")
	ErrDirFull     = errors.New("directory full")
	ErrTooBig      = errors.New("file too large")
	ErrNameTooLong = errors.New("name too long")
	ErrBadName     = errors.New("name contains a NUL byte")
	ErrFreeRoot    = errors.New("the root inode is never freed")
)

// Inode mirrors one packed record of the inode table.
// Filesize is bytes for a file and live entries
// (including "." and "..") for a directory.
type Inode struct {
	Serialnum uint32
	Valid     bool
	Filesize  uint32
	Addrs     [super.NDirect]uint32
	Mode      IType
	Owner     uint32
}

func blank(inum uint32) *Inode {
	i := &Inode{Serialnum: inum}
	for k := range i.Addrs {
		i.Addrs[k] = super.Unused
	}
	return i
}

// Alloci claims the lowest numbered free inode and writes
// it out straight away as valid. The caller fills in
// anything beyond mode and owner afterwards.
func Alloci(t *txn.TxnHandle, mode IType, owner uint32) (*Inode, error) {
	sb := t.Super()
	for inum := uint32(0); inum < sb.NumInodes; inum++ {
		i, err := Geti(t, inum)
		if err != nil {
			return nil, err
		}
		if i.Valid {
			continue
		}

		ni := blank(inum)
		ni.Valid = true
		ni.Mode = mode
		ni.Owner = owner
		if err := ni.EnqWrite(t); err != nil {
			return nil, err
		}
		return ni, nil
	}
	return nil, ErrNoInodes
}

// Reads inode inum, valid or not.
func Geti(t *txn.TxnHandle, inum uint32) (*Inode, error) {
	sb := t.Super()
	if inum >= sb.NumInodes {
		return nil, fmt.Errorf("inode %d: %w", inum, ErrBadInum)
	}

	bn, off := sb.InodeLoc(inum)
	blk, err := t.ReadBlock(bn)
	if err != nil {
		return nil, fmt.Errorf("reading inode %d: %w", inum, err)
	}
	return IDecode(inum, blk.Data[off:off+super.InodeSize]), nil
}

// Puts the record into the transaction. Only
// this inode's bytes in the table block change.
func (i *Inode) EnqWrite(t *txn.TxnHandle) error {
	sb := t.Super()
	if i.Serialnum >= sb.NumInodes {
		return fmt.Errorf("inode %d: %w", i.Serialnum, ErrBadInum)
	}

	bn, off := sb.InodeLoc(i.Serialnum)
	blk, err := t.ReadBlock(bn)
	if err != nil {
		return fmt.Errorf("writing inode %d: %w", i.Serialnum, err)
	}
	copy(blk.Data[off:off+super.InodeSize], i.Encode())
	return t.WriteBlock(blk)
}

// Free zeroes the record, making the slot the next
// candidate for Alloci if nothing lower is free. Data
// blocks are the caller's problem (see Truncate).
func (i *Inode) Free(t *txn.TxnHandle) error {
	if i.Serialnum == RootInum {
		return ErrFreeRoot
	}

	z := &Inode{Serialnum: i.Serialnum}
	if err := z.EnqWrite(t); err != nil {
		return err
	}
	*i = *z
	return nil
}

// Count of inodes not in use.
func FreeCount(t *txn.TxnHandle) (uint32, error) {
	var n uint32
	for inum := uint32(0); inum < t.Super().NumInodes; inum++ {
		i, err := Geti(t, inum)
		if err != nil {
			return 0, err
		}
		if !i.Valid {
			n++
		}
	}
	return n, nil
}

// Blocks the inode currently references, in slot order.
func (i *Inode) Blocks() []uint32 {
	var bns []uint32
	for _, a := range i.Addrs {
		if a != super.Unused {
			bns = append(bns, a)
		}
	}
	return bns
}
