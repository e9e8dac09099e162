package bio

import (
	"fmt"
)

// A Block is one fixed-size block of the volume,
// addressed by its index. Data always holds exactly
// BlockSize bytes once it has come out of Bget.
type Block struct {
	Nr   uint32
	Data []byte

	d *Disk
}

type BioError byte

const (
	OK BioError = iota
	ErrBadBlock
	ErrBadSize
	ErrShortIO
)

func (e BioError) Error() string {
	switch e {
	case OK:
		return "ok"
	case ErrBadBlock:
		return "block index out of range"
	case ErrBadSize:
		return "block data has the wrong size"
	case ErrShortIO:
		return "incomplete block transfer"
	}
	return fmt.Sprintf("bio error %d", byte(e))
}

// Disk treats a Device as a zero-indexed
// sequence of nblocks blocks of bsize bytes.
// Nothing above this layer deals in byte offsets.
type Disk struct {
	dev     Device
	bsize   uint32
	nblocks uint32
}

func Mkdisk(dev Device, bsize uint32, nblocks uint32) *Disk {
	return &Disk{
		dev:     dev,
		bsize:   bsize,
		nblocks: nblocks,
	}
}

func (d *Disk) BlockSize() uint32 { return d.bsize }
func (d *Disk) NumBlocks() uint32 { return d.nblocks }
func (d *Disk) Device() Device    { return d.dev }

func (d *Disk) Close() error {
	return d.dev.Close()
}

func (d *Disk) offset(nr uint32) int64 {
	return int64(nr) * int64(d.bsize)
}

// Reads block nr off the device. A short
// read is a hard error, never a partial block.
func (d *Disk) Bget(nr uint32) (*Block, error) {
	if nr >= d.nblocks {
		return nil, fmt.Errorf("reading block %d: %w", nr, ErrBadBlock)
	}

	data := make([]byte, d.bsize)
	n, err := d.dev.ReadAt(data, d.offset(nr))
	if n != len(data) {
		if err == nil {
			err = ErrShortIO
		}
		return nil, fmt.Errorf("reading block %d (%d/%d bytes): %w: %v", nr, n, d.bsize, ErrShortIO, err)
	}

	return &Block{
		Nr:   nr,
		Data: data,
		d:    d,
	}, nil
}

// Makes a zeroed block bound to d without
// touching the device.
func (d *Disk) Bzero(nr uint32) *Block {
	return &Block{
		Nr:   nr,
		Data: make([]byte, d.bsize),
		d:    d,
	}
}

// Writes the block back through to the device
func (b *Block) Bpush() error {
	if b.d == nil {
		return fmt.Errorf("writing block %d: block not bound to a disk", b.Nr)
	}
	return b.d.Bwrite(b.Nr, b.Data)
}

func (d *Disk) Bwrite(nr uint32, data []byte) error {
	if nr >= d.nblocks {
		return fmt.Errorf("writing block %d: %w", nr, ErrBadBlock)
	} else if uint32(len(data)) != d.bsize {
		return fmt.Errorf("writing block %d (%d bytes): %w", nr, len(data), ErrBadSize)
	}

	n, err := d.dev.WriteAt(data, d.offset(nr))
	if n != len(data) || err != nil {
		if err == nil {
			err = ErrShortIO
		}
		return fmt.Errorf("writing block %d (%d/%d bytes): %w: %v", nr, n, d.bsize, ErrShortIO, err)
	}
	return nil
}
