package inode

import (
	"bytes"
	"encoding/binary"

	"minifs/super"
)

// Inode record, 32 bytes little endian:
//	valid | size | addrs[4] | is_dir | owner

func (i *Inode) Encode() []byte {
	b := make([]byte, super.InodeSize)
	le := binary.LittleEndian

	if i.Valid {
		le.PutUint32(b[0:], 1)
	}
	le.PutUint32(b[4:], i.Filesize)
	for k, a := range i.Addrs {
		le.PutUint32(b[8+4*k:], a)
	}
	le.PutUint32(b[24:], uint32(i.Mode))
	le.PutUint32(b[28:], i.Owner)
	return b
}

func IDecode(inum uint32, b []byte) *Inode {
	le := binary.LittleEndian
	i := &Inode{
		Serialnum: inum,
		Valid:     le.Uint32(b[0:]) != 0,
		Filesize:  le.Uint32(b[4:]),
		Mode:      IType(le.Uint32(b[24:])),
		Owner:     le.Uint32(b[28:]),
	}
	for k := range i.Addrs {
		i.Addrs[k] = le.Uint32(b[8+4*k:])
	}
	return i
}

// Directory entry, 32 bytes:
//	inode number (super.Unused when free) | name[28], NUL padded

const nameField = super.DirEntSize - 4

// MaxNameLen leaves room for a terminating NUL.
const MaxNameLen = nameField - 1

func (d *DirEnt) Encode() []byte {
	b := make([]byte, super.DirEntSize)
	binary.LittleEndian.PutUint32(b, d.Inodenum)
	copy(b[4:4+MaxNameLen], d.Filename)
	return b
}

func DDecode(b []byte) *DirEnt {
	name := b[4 : 4+nameField]
	if n := bytes.IndexByte(name, 0); n >= 0 {
		name = name[:n]
	}
	return &DirEnt{
		Inodenum: binary.LittleEndian.Uint32(b),
		Filename: string(name),
	}
}

var freeDirEnt = DirEnt{Inodenum: super.Unused}
