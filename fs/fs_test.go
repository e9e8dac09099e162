package fs

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"minifs/bio"
	"minifs/inode"
	"minifs/super"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// Partitions:
//	-> Mkfs / Mount
//		-> fresh, reformat, foreign image (=FAIL), short image (=FAIL)
//	-> Create / Mkdir
//		-> top level, nested, existing (=FAIL), missing parent (=FAIL)
//		-> relative path (=FAIL), reserved or long name (=FAIL)
//		-> out of inodes, blocks, directory slots (=FAIL, nothing leaked)
//	-> Write / Read
//		-> 0 bytes .. exactly max, over max (=FAIL), shrink, dir (=FAIL)
//	-> Delete / Rmdir
//		-> file, empty dir, non-empty dir (=FAIL), wrong type (=FAIL), root (=FAIL)
//	-> List
//		-> empty, dots hidden, capped, file (=FAIL)

func initUut(tt *testing.T) *Filesystem {
	return mkUut(tt, super.DefaultGeometry())
}

func mkUut(tt *testing.T, g super.Geometry) *Filesystem {
	f, err := Mkfs(bio.NewMemDisk(g.Size()), g)
	require.NoError(tt, err)
	tt.Cleanup(func() { f.Close() })
	return f
}

func names(ents []inode.DirEnt) []string {
	res := []string{}
	for _, d := range ents {
		res = append(res, d.Filename)
	}
	return res
}

func requireClean(tt *testing.T, f *Filesystem) {
	problems, err := f.Check()
	require.NoError(tt, err)
	require.Empty(tt, problems)
}

// Covers:
//
//	-> mkfs/fresh, mkfs/reformat
//	-> list/empty
func TestFormat(tt *testing.T) {
	r := require.New(tt)
	m := bio.NewMemDisk(super.DefaultGeometry().Size())
	f, err := Mkfs(m, super.DefaultGeometry())
	r.NoError(err)

	ents, err := f.List("/", 0)
	r.NoError(err)
	r.Empty(ents)

	info, err := f.Info()
	r.NoError(err)
	r.Equal(uint32(1012), info.FreeBlocks)
	r.Equal(uint32(127), info.FreeInodes)
	r.Equal(uint32(11), info.Super.DataStart)

	root, err := f.Stat("/")
	r.NoError(err)
	expect := inode.Inode{
		Serialnum: 0,
		Valid:     true,
		Addrs:     [super.NDirect]uint32{11, super.Unused, super.Unused, super.Unused},
		Mode:      inode.Dir,
	}
	if !cmp.Equal(expect, *root) {
		tt.Errorf("bad root inode: %s", cmp.Diff(expect, *root))
	}
	requireClean(tt, f)

	r.NoError(f.Mkdir("/d"))
	r.NoError(f.Create("/d/f"))
	r.NoError(f.Close())

	f, err = Mkfs(m, super.DefaultGeometry())
	r.NoError(err)
	ents, err = f.List("/", 0)
	r.NoError(err)
	r.Empty(ents)
}

// Covers:
//
//	-> write/sizes
func TestRoundTrip(tt *testing.T) {
	r := require.New(tt)
	f := initUut(tt)
	r.NoError(f.Create("/f"))

	for _, n := range []int{0, 1, 27, 1023, 1024, 1025, 3000, 4096} {
		data := bytes.Repeat([]byte{byte(n)}, n)
		for k := range data {
			data[k] += byte(k)
		}
		r.NoError(f.Write("/f", data))

		got, err := f.ReadAll("/f")
		r.NoError(err)
		r.True(bytes.Equal(data, got), "round trip of %d bytes", n)

		st, err := f.Stat("/f")
		r.NoError(err)
		r.Equal(uint32(n), st.Filesize)
		r.Len(st.Blocks(), (n+1023)/1024)
	}
	requireClean(tt, f)
}

// Covers:
//
//	-> read/buffer
func TestReadBuffer(tt *testing.T) {
	r := require.New(tt)
	f := initUut(tt)
	r.NoError(f.Create("/f"))
	r.NoError(f.Write("/f", []byte("Operating Systems - MiniFS Project")))

	buf := make([]byte, 9)
	n, err := f.Read("/f", buf)
	r.NoError(err)
	r.Equal(9, n)
	r.Equal("Operating", string(buf))

	buf = make([]byte, 4096)
	n, err = f.Read("/f", buf)
	r.NoError(err)
	r.Equal(34, n)

	n, err = f.Read("/f", nil)
	r.NoError(err)
	r.Zero(n)
}

// Covers:
//
//	-> create/existing
//	-> create/missingparent
//	-> create/relative
func TestCreateErrors(tt *testing.T) {
	r := require.New(tt)
	f := initUut(tt)

	r.NoError(f.Create("/a"))
	r.ErrorIs(f.Create("/a"), ErrExists)
	r.ErrorIs(f.Mkdir("/a"), ErrExists)
	r.ErrorIs(f.Create("/"), ErrExists)

	r.ErrorIs(f.Create("/nope/b"), ErrParentNotFound)
	r.ErrorIs(f.Mkdir("/nope/b/c"), ErrParentNotFound)
	r.ErrorIs(f.Create("/a/b"), ErrParentNotFound)

	for _, p := range []string{"", "a", "a/b", "./a"} {
		r.ErrorIs(f.Create(p), ErrInvalidPath)
		r.ErrorIs(f.Mkdir(p), ErrInvalidPath)
		r.ErrorIs(f.Write(p, nil), ErrInvalidPath)
		r.ErrorIs(f.Delete(p), ErrInvalidPath)
		r.ErrorIs(f.Rmdir(p), ErrInvalidPath)
		_, err := f.List(p, 0)
		r.ErrorIs(err, ErrInvalidPath)
		_, err = f.ReadAll(p)
		r.ErrorIs(err, ErrInvalidPath)
	}

	var perr *PathError
	err := f.Create("/a")
	r.True(errors.As(err, &perr))
	r.Equal("create", perr.Op)
	r.Equal("/a", perr.Path)
}

// Covers:
//
//	-> create/reserved, create/long
func TestNames(tt *testing.T) {
	r := require.New(tt)
	f := initUut(tt)
	r.NoError(f.Mkdir("/d"))

	r.ErrorIs(f.Create("/d/."), ErrExists)
	r.ErrorIs(f.Create("/."), ErrInvalidPath)
	r.ErrorIs(f.Mkdir("/.."), ErrInvalidPath)
	r.ErrorIs(f.Rmdir("/d/."), ErrInvalidPath)
	r.ErrorIs(f.Rmdir("/d/.."), ErrInvalidPath)

	r.ErrorIs(f.Create("/"+strings.Repeat("x", 28)), ErrInvalidPath)
	r.NoError(f.Create("/" + strings.Repeat("x", 27)))

	// a NUL would cut the stored name short
	r.ErrorIs(f.Create("/a\x00b"), ErrInvalidPath)
	r.ErrorIs(f.Mkdir("/d/a\x00c"), ErrInvalidPath)
	r.ErrorIs(f.Delete("/a\x00b"), ErrInvalidPath)
	ls, err := f.List("/d", 0)
	r.NoError(err)
	r.Empty(ls)

	// no normalisation, but empty components are dropped
	r.NoError(f.Create("//d///f"))
	_, err = f.Stat("/d/f")
	r.NoError(err)

	// ".." is a real entry, so walking through it works
	st, err := f.Stat("/d/../d/f")
	r.NoError(err)
	r.Equal(inode.File, st.Mode)
}

// Covers:
//
//	-> create/toplevel, create/nested
func TestResolve(tt *testing.T) {
	r := require.New(tt)
	f := initUut(tt)
	r.NoError(f.Mkdir("/a"))
	r.NoError(f.Mkdir("/a/b"))
	r.NoError(f.Create("/a/b/c"))

	a, err := f.Stat("/a")
	r.NoError(err)
	b, err := f.Stat("/a/b")
	r.NoError(err)
	c, err := f.Stat("/a/b/c")
	r.NoError(err)

	res, err := f.Resolve("/a/b/c")
	r.NoError(err)
	r.Equal(Resolution{Parent: b.Serialnum, Name: "c", Inum: c.Serialnum, Found: true}, *res)

	res, err = f.Resolve("/a/b/missing")
	r.NoError(err)
	r.Equal(Resolution{Parent: b.Serialnum, Name: "missing"}, *res)

	res, err = f.Resolve("/")
	r.NoError(err)
	r.True(res.IsRoot())

	_, err = f.Resolve("/a/missing/c")
	r.ErrorIs(err, ErrParentNotFound)

	up, err := f.Resolve("/a/b/..")
	r.NoError(err)
	r.Equal(a.Serialnum, up.Inum)
}

// Covers:
//
//	-> delete/file
func TestInodeReuse(tt *testing.T) {
	r := require.New(tt)
	f := initUut(tt)

	r.NoError(f.Create("/A"))
	a, err := f.Stat("/A")
	r.NoError(err)
	r.NoError(f.Write("/A", []byte("some data")))

	r.NoError(f.Delete("/A"))
	_, err = f.Stat("/A")
	r.ErrorIs(err, ErrNotFound)
	r.ErrorIs(f.Delete("/A"), ErrNotFound)

	r.NoError(f.Create("/B"))
	b, err := f.Stat("/B")
	r.NoError(err)
	r.Equal(a.Serialnum, b.Serialnum)
	r.Equal(uint32(0), b.Filesize)
	requireClean(tt, f)
}

// Covers:
//
//	-> rmdir/nonempty, rmdir/empty
func TestRmdir(tt *testing.T) {
	r := require.New(tt)
	f := initUut(tt)
	before, err := f.Info()
	r.NoError(err)

	r.NoError(f.Mkdir("/d"))
	r.NoError(f.Create("/d/f"))
	r.ErrorIs(f.Rmdir("/d"), ErrNotEmpty)

	r.NoError(f.Delete("/d/f"))
	r.NoError(f.Rmdir("/d"))
	r.ErrorIs(f.Rmdir("/d"), ErrNotFound)

	after, err := f.Info()
	r.NoError(err)
	r.Equal(before.FreeBlocks, after.FreeBlocks)
	r.Equal(before.FreeInodes, after.FreeInodes)

	ents, err := f.List("/", 0)
	r.NoError(err)
	r.Empty(ents)
	requireClean(tt, f)
}

// Covers:
//
//	-> write/overmax
func TestTooLarge(tt *testing.T) {
	r := require.New(tt)
	f := initUut(tt)
	r.NoError(f.Create("/f"))
	r.NoError(f.Write("/f", []byte("prior")))

	r.ErrorIs(f.Write("/f", make([]byte, 4097)), ErrTooLarge)

	got, err := f.ReadAll("/f")
	r.NoError(err)
	r.Equal("prior", string(got))
	st, err := f.Stat("/f")
	r.NoError(err)
	r.Equal(uint32(5), st.Filesize)
}

// Covers:
//
//	-> list/dots, list/capped
func TestList(tt *testing.T) {
	r := require.New(tt)
	f := initUut(tt)
	r.NoError(f.Mkdir("/d"))

	ents, err := f.List("/d", 0)
	r.NoError(err)
	r.Empty(ents)

	for _, n := range []string{"x", "y", "z"} {
		r.NoError(f.Create("/d/" + n))
	}
	ents, err = f.List("/d", 0)
	r.NoError(err)
	if diff := cmp.Diff([]string{"x", "y", "z"}, names(ents)); diff != "" {
		tt.Errorf("listing differs: %s", diff)
	}

	ents, err = f.List("/d", 2)
	r.NoError(err)
	r.Equal([]string{"x", "y"}, names(ents))

	d, err := f.Stat("/d")
	r.NoError(err)
	r.Equal(uint32(5), d.Filesize)

	_, err = f.List("/d/x", 0)
	r.ErrorIs(err, ErrNotDir)
	_, err = f.List("/nope", 0)
	r.ErrorIs(err, ErrNotFound)
}

// Covers:
//
//	-> write/shrink
func TestOverwriteReleasesBlocks(tt *testing.T) {
	r := require.New(tt)
	f := initUut(tt)
	r.NoError(f.Create("/a"))
	r.NoError(f.Create("/b"))

	r.NoError(f.Write("/a", make([]byte, 4096)))
	a, err := f.Stat("/a")
	r.NoError(err)
	old := a.Blocks()
	r.Len(old, 4)

	r.NoError(f.Write("/a", []byte("short")))
	a, err = f.Stat("/a")
	r.NoError(err)
	r.Equal([]uint32{old[0]}, a.Blocks())
	r.Equal(uint32(5), a.Filesize)

	r.NoError(f.Write("/b", make([]byte, 3*1024)))
	b, err := f.Stat("/b")
	r.NoError(err)
	r.Equal(old[1:], b.Blocks())
	requireClean(tt, f)
}

// Covers:
//
//	-> delete/wrongtype, rmdir/wrongtype, rmdir/root
//	-> write/dir
func TestTypeMismatch(tt *testing.T) {
	r := require.New(tt)
	f := initUut(tt)
	r.NoError(f.Mkdir("/d"))
	r.NoError(f.Create("/f"))

	r.ErrorIs(f.Delete("/d"), ErrNotFile)
	r.ErrorIs(f.Delete("/"), ErrNotFile)
	r.ErrorIs(f.Rmdir("/f"), ErrNotDir)
	r.ErrorIs(f.Rmdir("/"), ErrInvalidPath)
	r.ErrorIs(f.Write("/d", []byte("x")), ErrNotFile)
	r.ErrorIs(f.Write("/missing", []byte("x")), ErrNotFound)
	_, err := f.ReadAll("/d")
	r.ErrorIs(err, ErrNotFile)
	_, err = f.Read("/missing", make([]byte, 1))
	r.ErrorIs(err, ErrNotFound)
}

// 64 byte blocks: 2 entries per directory block, so the
// root tops out at 8 entries. 16 inodes, data blocks 10..63.
var tinyGeometry = super.Geometry{BlockSize: 64, NumBlocks: 64, NumInodes: 16, InodeBlocks: 8}

// Covers:
//
//	-> create/dirfull
func TestDirectoryFull(tt *testing.T) {
	r := require.New(tt)
	f := mkUut(tt, tinyGeometry)

	for k := 0; k < 8; k++ {
		r.NoError(f.Create("/" + string(rune('a'+k))))
	}
	before, err := f.Info()
	r.NoError(err)

	r.ErrorIs(f.Create("/i"), ErrDirFull)
	r.ErrorIs(f.Mkdir("/j"), ErrDirFull)

	after, err := f.Info()
	r.NoError(err)
	r.Equal(before.FreeInodes, after.FreeInodes)
	r.Equal(before.FreeBlocks, after.FreeBlocks)

	// freeing a slot makes room again
	r.NoError(f.Delete("/c"))
	r.NoError(f.Mkdir("/j"))
	requireClean(tt, f)
}

// Covers:
//
//	-> create/noinodes
func TestInodeExhausted(tt *testing.T) {
	r := require.New(tt)
	g := tinyGeometry
	g.NumInodes = 4
	f := mkUut(tt, g)

	r.NoError(f.Create("/a"))
	r.NoError(f.Mkdir("/b"))
	r.NoError(f.Create("/b/c"))
	r.ErrorIs(f.Create("/d"), ErrInodeExhausted)
	r.ErrorIs(f.Mkdir("/d"), ErrInodeExhausted)

	r.NoError(f.Delete("/a"))
	r.NoError(f.Create("/d"))
	requireClean(tt, f)
}

// Covers:
//
//	-> create/noblocks
func TestBlockExhausted(tt *testing.T) {
	r := require.New(tt)
	// 5 data blocks, the root takes one
	f := mkUut(tt, super.Geometry{BlockSize: 64, NumBlocks: 9, NumInodes: 4, InodeBlocks: 2})

	r.NoError(f.Create("/a"))
	r.NoError(f.Write("/a", make([]byte, 4*64)))
	info, err := f.Info()
	r.NoError(err)
	r.Equal(uint32(0), info.FreeBlocks)

	r.ErrorIs(f.Mkdir("/d"), ErrBlockExhausted)
	r.NoError(f.Create("/b"))
	r.ErrorIs(f.Write("/b", []byte("x")), ErrBlockExhausted)

	// overwriting gives blocks back: one for /d itself and
	// one to grow the root, whose first block is full
	r.NoError(f.Write("/a", make([]byte, 2*64)))
	r.NoError(f.Mkdir("/d"))

	after, err := f.Info()
	r.NoError(err)
	r.Zero(after.FreeInodes)
	r.Zero(after.FreeBlocks)
	requireClean(tt, f)
}

func TestPersistence(tt *testing.T) {
	r := require.New(tt)
	name := filepath.Join(tt.TempDir(), "disk.img")

	f, err := FormatFile(name, super.DefaultGeometry())
	r.NoError(err)
	r.NoError(f.Mkdir("/kovan"))
	r.NoError(f.Create("/kovan/hey.txt"))
	r.NoError(f.Write("/kovan/hey.txt", []byte("Operating Systems - MiniFS Project")))
	sb := f.Super()
	r.NoError(f.Close())
	r.NoError(f.Close())
	r.ErrorIs(f.Create("/x"), ErrClosed)

	f, err = OpenFile(name)
	r.NoError(err)
	defer f.Close()
	r.Equal(sb, f.Super())

	got, err := f.ReadAll("/kovan/hey.txt")
	r.NoError(err)
	r.Equal("Operating Systems - MiniFS Project", string(got))

	ents, err := f.List("/kovan", 10)
	r.NoError(err)
	r.Equal([]string{"hey.txt"}, names(ents))

	_, err = OpenFile(filepath.Join(tt.TempDir(), "missing.img"))
	r.Error(err)
}

// Covers:
//
//	-> mount/foreign, mount/short
func TestMountRejects(tt *testing.T) {
	r := require.New(tt)

	_, err := Mount(bio.NewMemDisk(super.DefaultGeometry().Size()))
	r.ErrorIs(err, ErrBadMagic)

	g := super.DefaultGeometry()
	m := bio.NewMemDisk(g.Size())
	_, err = Mkfs(m, g)
	r.NoError(err)

	short := bio.NewMemDisk(g.Size() - 1)
	copy(short.Bytes(), m.Bytes())
	_, err = Mount(short)
	r.ErrorIs(err, ErrIO)

	// wipe the root inode
	copy(m.Bytes()[2*1024:2*1024+32], make([]byte, 32))
	_, err = Mount(m)
	r.ErrorIs(err, ErrCorrupt)
}

// faultyDisk fails every write once armed.
type faultyDisk struct {
	*bio.MemDisk
	armed bool
}

func (d *faultyDisk) WriteAt(p []byte, off int64) (int, error) {
	if d.armed {
		return 0, errors.New("injected write failure")
	}
	return d.MemDisk.WriteAt(p, off)
}

func TestIOFailure(tt *testing.T) {
	r := require.New(tt)
	g := super.DefaultGeometry()
	dev := &faultyDisk{MemDisk: bio.NewMemDisk(g.Size())}
	f, err := Mkfs(dev, g)
	r.NoError(err)

	dev.armed = true
	r.ErrorIs(f.Create("/a"), ErrIO)

	// nothing from the failed create reached the disk
	dev.armed = false
	_, err = f.Stat("/a")
	r.ErrorIs(err, ErrNotFound)
	r.NoError(f.Create("/a"))
}

func TestCheckFindsDamage(tt *testing.T) {
	r := require.New(tt)
	g := super.DefaultGeometry()
	m := bio.NewMemDisk(g.Size())
	f, err := Mkfs(m, g)
	r.NoError(err)

	r.NoError(f.Create("/f"))
	r.NoError(f.Write("/f", []byte("data")))
	requireClean(tt, f)

	// clear the bitmap bit of /f's block (block 12 -> bit 1)
	m.Bytes()[1024] &^= 0x2
	// and mark a block nobody owns (bit 9)
	m.Bytes()[1025] |= 0x2

	problems, err := f.Check()
	r.NoError(err)
	r.ElementsMatch([]string{
		"block 12 of inode 1 is free in the bitmap",
		"block 20 is allocated but nothing references it",
	}, problems)
}
