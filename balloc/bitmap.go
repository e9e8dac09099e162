package balloc

import (
	"fmt"

	"minifs/bio"
	"minifs/txn"

	"github.com/diskfs/go-diskfs/util"
)

// The bitmap is a single block, bit i (LSB first within
// each byte) standing for data block DataStart+i.
func getBitmap(t *txn.TxnHandle) (*util.Bitmap, error) {
	sb := t.Super()
	blk, err := t.ReadBlock(sb.BitmapStart)
	if err != nil {
		return nil, fmt.Errorf("reading bitmap: %w", err)
	}

	// blk is a private copy, the bitmap may keep it
	return util.BitmapFromBytes(blk.Data), nil
}

func updateBitmap(t *txn.TxnHandle, bm *util.Bitmap) error {
	blk := &bio.Block{
		Nr:   t.Super().BitmapStart,
		Data: bm.ToBytes(),
	}
	if err := t.WriteBlock(blk); err != nil {
		return fmt.Errorf("writing bitmap: %w", err)
	}
	return nil
}

// Clears the whole bitmap. Only format wants this.
func ResetBitmap(t *txn.TxnHandle) error {
	return updateBitmap(t, util.NewBitmap(int(t.Super().BlockSize)))
}
