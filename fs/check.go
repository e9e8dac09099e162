package fs

import (
	"fmt"

	"minifs/balloc"
	"minifs/inode"
	"minifs/txn"
)

// Check scans the whole volume and reports every way it
// disagrees with itself. An empty result means the bitmap,
// inode table and directory tree all line up. Nothing is
// repaired.
func (f *Filesystem) Check() ([]string, error) {
	var problems []string
	err := f.view("check", "/", func(t *txn.TxnHandle) (err error) {
		problems, err = check(t)
		return
	})
	return problems, err
}

func check(t *txn.TxnHandle) ([]string, error) {
	sb := t.Super()
	var problems []string
	report := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	// block -> owning inode
	owner := make(map[uint32]uint32)
	inodes := make([]*inode.Inode, sb.NumInodes)

	for inum := uint32(0); inum < sb.NumInodes; inum++ {
		i, err := inode.Geti(t, inum)
		if err != nil {
			return nil, err
		}
		inodes[inum] = i
		if !i.Valid {
			continue
		}

		for _, bn := range i.Blocks() {
			if !sb.IsData(bn) {
				report("inode %d references block %d outside the data region", inum, bn)
				continue
			}
			if prev, ok := owner[bn]; ok {
				report("block %d is referenced by inodes %d and %d", bn, prev, inum)
				continue
			}
			owner[bn] = inum

			used, err := balloc.InUse(t, bn)
			if err != nil {
				return nil, err
			} else if !used {
				report("block %d of inode %d is free in the bitmap", bn, inum)
			}
		}

		if i.Mode == inode.File {
			if i.Filesize > sb.MaxFileSize() {
				report("file inode %d is %d bytes, over the %d byte limit", inum, i.Filesize, sb.MaxFileSize())
			}
			need := (i.Filesize + sb.BlockSize - 1) / sb.BlockSize
			if uint32(len(i.Blocks())) != need {
				report("file inode %d holds %d bytes in %d blocks", inum, i.Filesize, len(i.Blocks()))
			}
		}
	}

	for bn := sb.DataStart; bn < sb.NumBlocks; bn++ {
		used, err := balloc.InUse(t, bn)
		if err != nil {
			return nil, err
		}
		if _, ok := owner[bn]; used && !ok {
			report("block %d is allocated but nothing references it", bn)
		}
	}

	root := inodes[inode.RootInum]
	if !root.Valid || root.Mode != inode.Dir {
		report("root inode is not a directory")
		return problems, nil
	}

	links := make(map[uint32]int)
	seen := map[uint32]bool{inode.RootInum: true}
	queue := []uint32{inode.RootInum}
	for len(queue) > 0 {
		inum := queue[0]
		queue = queue[1:]
		dir := inodes[inum]

		ents, err := inode.Entries(t, dir)
		if err != nil {
			return nil, err
		}
		if uint32(len(ents)) != dir.Filesize {
			report("directory inode %d has %d live entries but size %d", inum, len(ents), dir.Filesize)
		}

		for _, d := range ents {
			if d.Inodenum >= sb.NumInodes {
				report("entry %q in directory %d points at inode %d, out of range", d.Filename, inum, d.Inodenum)
				continue
			}
			if inode.IsDot(d.Filename) {
				continue
			}

			child := inodes[d.Inodenum]
			if !child.Valid {
				report("entry %q in directory %d points at free inode %d", d.Filename, inum, d.Inodenum)
				continue
			}
			links[d.Inodenum]++
			if child.Mode == inode.Dir && !seen[d.Inodenum] {
				seen[d.Inodenum] = true
				queue = append(queue, d.Inodenum)
				checkDots(t, child, inum, report)
			}
		}
	}

	for inum, i := range inodes {
		if !i.Valid || inum == inode.RootInum {
			continue
		}
		if n := links[uint32(inum)]; n != 1 {
			report("inode %d is linked %d times", inum, n)
		}
	}
	return problems, nil
}

func checkDots(t *txn.TxnHandle, dir *inode.Inode, parent uint32, report func(string, ...interface{})) {
	if self, err := inode.Lookup(t, dir, "."); err != nil || self != dir.Serialnum {
		report("directory inode %d has a bad \".\" entry", dir.Serialnum)
	}
	if up, err := inode.Lookup(t, dir, ".."); err != nil || up != parent {
		report("directory inode %d has a bad \"..\" entry", dir.Serialnum)
	}
}
