package inode

import (
	"fmt"

	"minifs/balloc"
	"minifs/bio"
	"minifs/super"
	"minifs/txn"
)

// Truncate gives every referenced block back to the
// bitmap, clears the references and zeroes the size.
// The inode is enqueued for writing.
func (i *Inode) Truncate(t *txn.TxnHandle) error {
	for k, a := range i.Addrs {
		if a == super.Unused {
			continue
		}
		if err := balloc.RelseBlock(t, a); err != nil {
			return fmt.Errorf("truncating inode %d: %w", i.Serialnum, err)
		}
		i.Addrs[k] = super.Unused
	}
	i.Filesize = 0
	return i.EnqWrite(t)
}

// Reads up to count bytes from the front of the file.
// Unused references are skipped, never dereferenced.
func Readi(t *txn.TxnHandle, i *Inode, count uint32) ([]byte, error) {
	if i.Mode != File {
		return nil, fmt.Errorf("inode %d: %w", i.Serialnum, ErrNotFile)
	}
	if count > i.Filesize {
		count = i.Filesize
	}

	res := make([]byte, 0, count)
	for _, bn := range i.Blocks() {
		if uint32(len(res)) >= count {
			break
		}
		blk, err := t.ReadBlock(bn)
		if err != nil {
			return nil, fmt.Errorf("reading inode %d: %w", i.Serialnum, err)
		}

		toread := count - uint32(len(res))
		if toread > uint32(len(blk.Data)) {
			toread = uint32(len(blk.Data))
		}
		res = append(res, blk.Data[:toread]...)
	}
	return res, nil
}

// Writei replaces the whole file with data. The old blocks
// are released before any new ones are taken, so an
// overwrite can reuse its own blocks. The size goes in last.
func Writei(t *txn.TxnHandle, i *Inode, data []byte) error {
	sb := t.Super()
	if i.Mode != File {
		return fmt.Errorf("inode %d: %w", i.Serialnum, ErrNotFile)
	} else if uint32(len(data)) > sb.MaxFileSize() {
		return fmt.Errorf("%d bytes: %w", len(data), ErrTooBig)
	}

	if err := i.Truncate(t); err != nil {
		return err
	}

	for k := 0; len(data) > 0; k++ {
		bn, err := balloc.AllocBlock(t)
		if err != nil {
			// hand back what this write took
			i.Truncate(t)
			return err
		}
		i.Addrs[k] = bn

		blk := &bio.Block{Nr: bn, Data: make([]byte, sb.BlockSize)}
		n := copy(blk.Data, data)
		data = data[n:]
		if err := t.WriteBlock(blk); err != nil {
			i.Truncate(t)
			return err
		}
		i.Filesize += uint32(n)
	}

	return i.EnqWrite(t)
}
