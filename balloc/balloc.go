package balloc

import (
	"errors"
	"fmt"

	"minifs/txn"
)

var (
	ErrNoBlocks = errors.New("no free data blocks")
	ErrBadBlock = errors.New("not a data block")
	ErrNotInUse = errors.New("data block is not allocated")
)

// First fit: the lowest free data block wins.
// Returns the absolute block index.
func AllocBlock(t *txn.TxnHandle) (uint32, error) {
	sb := t.Super()
	btmp, err := getBitmap(t)
	if err != nil {
		return 0, err
	}

	bit := btmp.FirstFree(0)
	if bit < 0 || uint32(bit) >= sb.DataBlocks() {
		return 0, ErrNoBlocks
	}
	if err := btmp.Set(bit); err != nil {
		return 0, fmt.Errorf("marking data block %d: %w", bit, err)
	}
	if err := updateBitmap(t, btmp); err != nil {
		return 0, err
	}
	return uint32(bit) + sb.DataStart, nil
}

func RelseBlock(t *txn.TxnHandle, bn uint32) error {
	sb := t.Super()
	if !sb.IsData(bn) {
		return fmt.Errorf("releasing block %d: %w", bn, ErrBadBlock)
	}

	btmp, err := getBitmap(t)
	if err != nil {
		return err
	}

	bit := int(bn - sb.DataStart)
	set, err := btmp.IsSet(bit)
	if err != nil {
		return fmt.Errorf("releasing block %d: %w", bn, err)
	} else if !set {
		return fmt.Errorf("releasing block %d: %w", bn, ErrNotInUse)
	}

	if err := btmp.Clear(bit); err != nil {
		return fmt.Errorf("releasing block %d: %w", bn, err)
	}
	return updateBitmap(t, btmp)
}

// Releases every block in bns, stopping at the first failure.
func RelseBlocks(t *txn.TxnHandle, bns []uint32) error {
	for _, bn := range bns {
		if err := RelseBlock(t, bn); err != nil {
			return err
		}
	}
	return nil
}

func InUse(t *txn.TxnHandle, bn uint32) (bool, error) {
	sb := t.Super()
	if !sb.IsData(bn) {
		return false, fmt.Errorf("checking block %d: %w", bn, ErrBadBlock)
	}

	btmp, err := getBitmap(t)
	if err != nil {
		return false, err
	}
	return btmp.IsSet(int(bn - sb.DataStart))
}

// Number of unallocated data blocks.
func FreeCount(t *txn.TxnHandle) (uint32, error) {
	sb := t.Super()
	btmp, err := getBitmap(t)
	if err != nil {
		return 0, err
	}

	var n uint32
	for i := 0; i < int(sb.DataBlocks()); i++ {
		set, err := btmp.IsSet(i)
		if err != nil {
			return 0, err
		}
		if !set {
			n++
		}
	}
	return n, nil
}
