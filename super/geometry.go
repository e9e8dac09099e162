package super

import "fmt"

// Geometry is everything needed to format a volume.
type Geometry struct {
	BlockSize   uint32 `yaml:"blockSize"`
	NumBlocks   uint32 `yaml:"numBlocks"`
	NumInodes   uint32 `yaml:"numInodes"`
	InodeBlocks uint32 `yaml:"inodeBlocks"`
}

// 1 MiB volume: 1024 blocks of 1 KiB, 128 inodes in blocks
// 2 through 10, data from block 11 on.
func DefaultGeometry() Geometry {
	return Geometry{
		BlockSize:   1024,
		NumBlocks:   1024,
		NumInodes:   128,
		InodeBlocks: 9,
	}
}

// Size of the container file in bytes.
func (g Geometry) Size() int64 {
	return int64(g.BlockSize) * int64(g.NumBlocks)
}

func (g Geometry) Validate() error {
	if err := validateBlockSize(g.BlockSize); err != nil {
		return err
	}
	if g.NumInodes == 0 || g.InodeBlocks == 0 {
		return fmt.Errorf("%d inodes in %d blocks: %w", g.NumInodes, g.InodeBlocks, ErrBadGeometry)
	}
	if uint64(g.InodeBlocks)*uint64(g.BlockSize/InodeSize) < uint64(g.NumInodes) {
		return fmt.Errorf("%d inodes don't fit in %d blocks: %w", g.NumInodes, g.InodeBlocks, ErrBadGeometry)
	}

	// 64 bit so huge inode tables can't wrap around
	dataStart := 2 + uint64(g.InodeBlocks)
	if uint64(g.NumBlocks) <= dataStart {
		// the root directory needs one data block
		return fmt.Errorf("%d blocks leave no data region: %w", g.NumBlocks, ErrBadGeometry)
	}
	if uint64(g.NumBlocks)-dataStart > uint64(g.BlockSize)*8 {
		return fmt.Errorf("%d data blocks overflow a one block bitmap: %w", uint64(g.NumBlocks)-dataStart, ErrBadGeometry)
	}
	return nil
}

func validateBlockSize(bsize uint32) error {
	if bsize < 64 || bsize%InodeSize != 0 {
		return fmt.Errorf("block size %d: %w", bsize, ErrBadGeometry)
	}
	return nil
}
