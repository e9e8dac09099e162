package super

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// "MFSY"
const Magic = 0x4D465359

const (
	// Sizes of the packed on-disk records
	InodeSize  = 32
	DirEntSize = 32

	// Direct block references per inode. There
	// is no indirection so this caps file size.
	NDirect = 4

	// Unused block reference / free dirent slot
	Unused = ^uint32(0)
)

// magic, nblocks, ninodes, bitmap, inodes, data, bsize, then the uuid
const headerSize = 7*4 + 16

var (
	ErrBadMagic    = errors.New("not a minifs volume")
	ErrBadGeometry = errors.New("bad volume geometry")
)

type Superblock struct {
	Magic       uint32
	NumBlocks   uint32
	NumInodes   uint32
	BitmapStart uint32
	InodeStart  uint32
	DataStart   uint32
	BlockSize   uint32
	UUID        uuid.UUID
}

// New lays out a fresh volume for g: superblock at 0,
// bitmap at 1, the inode table right after and the
// data region taking whatever is left.
func New(g Geometry) (*Superblock, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generating volume uuid: %w", err)
	}

	sb := &Superblock{
		Magic:       Magic,
		NumBlocks:   g.NumBlocks,
		NumInodes:   g.NumInodes,
		BitmapStart: 1,
		InodeStart:  2,
		DataStart:   2 + g.InodeBlocks,
		BlockSize:   g.BlockSize,
		UUID:        id,
	}
	if err := sb.Validate(); err != nil {
		return nil, err
	}
	return sb, nil
}

func (sb *Superblock) Geometry() Geometry {
	return Geometry{
		BlockSize:   sb.BlockSize,
		NumBlocks:   sb.NumBlocks,
		NumInodes:   sb.NumInodes,
		InodeBlocks: sb.DataStart - sb.InodeStart,
	}
}

// Number of blocks in the data region, which is also
// the number of meaningful bits in the bitmap.
func (sb *Superblock) DataBlocks() uint32 {
	return sb.NumBlocks - sb.DataStart
}

func (sb *Superblock) InodesPerBlock() uint32 {
	return sb.BlockSize / InodeSize
}

func (sb *Superblock) DirEntsPerBlock() uint32 {
	return sb.BlockSize / DirEntSize
}

// Largest file a single inode can describe.
func (sb *Superblock) MaxFileSize() uint32 {
	return NDirect * sb.BlockSize
}

// Where inode inum lives: block index and byte offset in that block.
func (sb *Superblock) InodeLoc(inum uint32) (uint32, uint32) {
	off := inum * InodeSize
	return sb.InodeStart + off/sb.BlockSize, off % sb.BlockSize
}

// IsData reports whether bn lies in the data region.
func (sb *Superblock) IsData(bn uint32) bool {
	return bn >= sb.DataStart && bn < sb.NumBlocks
}

func (sb *Superblock) Validate() error {
	if sb.Magic != Magic {
		return fmt.Errorf("magic %#x: %w", sb.Magic, ErrBadMagic)
	}
	if !(0 < sb.BitmapStart && sb.BitmapStart < sb.InodeStart &&
		sb.InodeStart < sb.DataStart && sb.DataStart <= sb.NumBlocks) {
		return fmt.Errorf("regions bitmap=%d inodes=%d data=%d total=%d: %w",
			sb.BitmapStart, sb.InodeStart, sb.DataStart, sb.NumBlocks, ErrBadGeometry)
	}
	if sb.InodeStart-sb.BitmapStart != 1 {
		return fmt.Errorf("bitmap spans %d blocks: %w", sb.InodeStart-sb.BitmapStart, ErrBadGeometry)
	}
	if err := validateBlockSize(sb.BlockSize); err != nil {
		return err
	}
	if uint64(sb.DataStart-sb.InodeStart)*uint64(sb.InodesPerBlock()) < uint64(sb.NumInodes) || sb.NumInodes == 0 {
		return fmt.Errorf("%d inodes in %d table blocks: %w",
			sb.NumInodes, sb.DataStart-sb.InodeStart, ErrBadGeometry)
	}
	if uint64(sb.DataBlocks()) > uint64(sb.BlockSize)*8 {
		return fmt.Errorf("%d data blocks for a %d bit bitmap: %w",
			sb.DataBlocks(), sb.BlockSize*8, ErrBadGeometry)
	}
	return nil
}

// Encode packs sb into a full block of bsize bytes.
func (sb *Superblock) Encode() []byte {
	b := make([]byte, sb.BlockSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:], sb.Magic)
	le.PutUint32(b[4:], sb.NumBlocks)
	le.PutUint32(b[8:], sb.NumInodes)
	le.PutUint32(b[12:], sb.BitmapStart)
	le.PutUint32(b[16:], sb.InodeStart)
	le.PutUint32(b[20:], sb.DataStart)
	le.PutUint32(b[24:], sb.BlockSize)
	copy(b[28:headerSize], sb.UUID[:])
	return b
}

func Decode(b []byte) (*Superblock, error) {
	if len(b) < headerSize {
		return nil, fmt.Errorf("superblock of %d bytes: %w", len(b), ErrBadGeometry)
	}

	le := binary.LittleEndian
	sb := &Superblock{
		Magic:       le.Uint32(b[0:]),
		NumBlocks:   le.Uint32(b[4:]),
		NumInodes:   le.Uint32(b[8:]),
		BitmapStart: le.Uint32(b[12:]),
		InodeStart:  le.Uint32(b[16:]),
		DataStart:   le.Uint32(b[20:]),
		BlockSize:   le.Uint32(b[24:]),
	}
	copy(sb.UUID[:], b[28:headerSize])
	return sb, sb.Validate()
}

// Load reads and validates the superblock at the very start of
// dev. The block size isn't known until it's decoded, so this
// reads the fixed header rather than a whole block.
func Load(dev io.ReaderAt) (*Superblock, error) {
	b := make([]byte, headerSize)
	n, err := dev.ReadAt(b, 0)
	if n != len(b) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	return Decode(b)
}
