package txn

import (
	"fmt"
	"sort"

	"minifs/bio"
	"minifs/super"
)

// A TxnHandle batches every block one operation
// dirties. Reads see the batch first, so the
// operation observes its own writes; nothing
// reaches the device until EndTransaction.
//
// This is not a journal. A crash halfway through
// EndTransaction leaves whatever blocks made it.
type TxnHandle struct {
	d  *bio.Disk
	sb *super.Superblock

	dirty map[uint32][]byte
	done  bool
}

func BeginTransaction(d *bio.Disk, sb *super.Superblock) *TxnHandle {
	return &TxnHandle{
		d:     d,
		sb:    sb,
		dirty: make(map[uint32][]byte),
	}
}

func (t *TxnHandle) Super() *super.Superblock { return t.sb }

// ReadBlock hands back a private copy of block nr,
// from the batch if it was written in this transaction.
func (t *TxnHandle) ReadBlock(nr uint32) (*bio.Block, error) {
	if data, ok := t.dirty[nr]; ok {
		blk := t.d.Bzero(nr)
		copy(blk.Data, data)
		return blk, nil
	}
	return t.d.Bget(nr)
}

// WriteBlock queues blk. The caller may keep
// modifying blk afterwards; the batch holds a copy.
func (t *TxnHandle) WriteBlock(blk *bio.Block) error {
	if t.done {
		return fmt.Errorf("writing block %d: transaction already finished", blk.Nr)
	}
	if blk.Nr >= t.sb.NumBlocks {
		return fmt.Errorf("writing block %d: %w", blk.Nr, bio.ErrBadBlock)
	} else if uint32(len(blk.Data)) != t.sb.BlockSize {
		return fmt.Errorf("writing block %d: %w", blk.Nr, bio.ErrBadSize)
	}

	data := make([]byte, len(blk.Data))
	copy(data, blk.Data)
	t.dirty[blk.Nr] = data
	return nil
}

// Blocks written so far, ascending.
func (t *TxnHandle) Dirty() []uint32 {
	nrs := make([]uint32, 0, len(t.dirty))
	for nr := range t.dirty {
		nrs = append(nrs, nr)
	}
	sort.Slice(nrs, func(i, j int) bool { return nrs[i] < nrs[j] })
	return nrs
}

// Pushes the batch to disk in block order. Stops
// at the first failed write and reports it.
func (t *TxnHandle) EndTransaction() error {
	if t.done {
		return nil
	}
	t.done = true

	for _, nr := range t.Dirty() {
		if err := t.d.Bwrite(nr, t.dirty[nr]); err != nil {
			return fmt.Errorf("committing transaction: %w", err)
		}
	}
	t.dirty = nil
	return nil
}

// Throws the batch away. Safe to call after
// EndTransaction, where it does nothing.
func (t *TxnHandle) AbortTransaction() {
	t.done = true
	t.dirty = nil
}
