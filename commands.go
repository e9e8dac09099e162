package main

import (
	"errors"
	"fmt"
	"strings"

	"minifs/fs"
	"minifs/log"

	"github.com/urfave/cli/v2"
)

func (e *env) commands() []*cli.Command {
	return []*cli.Command{{
		Name:    "format",
		Aliases: []string{"mkfs"},
		Usage:   "create (or wipe) the volume",
		Action: func(c *cli.Context) error {
			if _, err := args(c); err != nil {
				return err
			}
			f, err := fs.FormatFile(e.cfg.Volume, e.cfg.Geometry())
			if err != nil {
				return err
			}
			f.Logger = log.FromContext(c.Context).With("component", "FS")
			defer f.Close()

			fmt.Fprintln(c.App.Writer, "Disk formatted successfully.")
			return nil
		},
	}, {
		Name:      "mkdir",
		Aliases:   []string{"mkdir_fs"},
		Usage:     "make a directory",
		ArgsUsage: "<path>",
		Action: e.withVolume(func(c *cli.Context, f *fs.Filesystem) error {
			a, err := args(c, "path")
			if err != nil {
				return err
			}
			if err := f.Mkdir(a[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Directory %s created successfully.\n", a[0])
			return nil
		}),
	}, {
		Name:      "create",
		Aliases:   []string{"create_fs", "touch"},
		Usage:     "make an empty file",
		ArgsUsage: "<path>",
		Action: e.withVolume(func(c *cli.Context, f *fs.Filesystem) error {
			a, err := args(c, "path")
			if err != nil {
				return err
			}
			if err := f.Create(a[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "File %s created successfully.\n", a[0])
			return nil
		}),
	}, {
		Name:      "write",
		Aliases:   []string{"write_fs"},
		Usage:     "replace the content of a file",
		ArgsUsage: "<path> <data>",
		Action: e.withVolume(func(c *cli.Context, f *fs.Filesystem) error {
			a, err := args(c, "path", "data")
			if err != nil {
				return err
			}
			if err := f.Write(a[0], []byte(a[1])); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Data written to %s successfully.\n", a[0])
			return nil
		}),
	}, {
		Name:      "read",
		Aliases:   []string{"read_fs", "cat"},
		Usage:     "print the content of a file",
		ArgsUsage: "<path>",
		Action: e.withVolume(func(c *cli.Context, f *fs.Filesystem) error {
			a, err := args(c, "path")
			if err != nil {
				return err
			}
			data, err := f.ReadAll(a[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s\n", data)
			return nil
		}),
	}, {
		Name:      "delete",
		Aliases:   []string{"delete_fs", "rm"},
		Usage:     "remove a file",
		ArgsUsage: "<path>",
		Action: e.withVolume(func(c *cli.Context, f *fs.Filesystem) error {
			a, err := args(c, "path")
			if err != nil {
				return err
			}
			if err := f.Delete(a[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "File %s deleted successfully.\n", a[0])
			return nil
		}),
	}, {
		Name:      "rmdir",
		Aliases:   []string{"rmdir_fs"},
		Usage:     "remove an empty directory",
		ArgsUsage: "<path>",
		Action: e.withVolume(func(c *cli.Context, f *fs.Filesystem) error {
			a, err := args(c, "path")
			if err != nil {
				return err
			}
			if err := f.Rmdir(a[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Directory %s removed successfully.\n", a[0])
			return nil
		}),
	}, {
		Name:      "list",
		Aliases:   []string{"ls", "ls_fs"},
		Usage:     "list a directory",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{&cli.IntFlag{
			Name:  "max",
			Usage: "list at most `N` entries (0 for all)",
		}},
		Action: e.withVolume(func(c *cli.Context, f *fs.Filesystem) error {
			a, err := args(c, "path")
			if err != nil {
				return err
			}
			ents, err := f.List(a[0], c.Int("max"))
			if err != nil {
				return err
			}
			for _, d := range ents {
				fmt.Fprintln(c.App.Writer, d.Filename)
			}
			return nil
		}),
	}, {
		Name:      "stat",
		Usage:     "show the inode behind a path",
		ArgsUsage: "<path>",
		Action: e.withVolume(func(c *cli.Context, f *fs.Filesystem) error {
			a, err := args(c, "path")
			if err != nil {
				return err
			}
			i, err := f.Stat(a[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "inode:  %d\ntype:   %s\nsize:   %d\nowner:  %d\nblocks: %v\n",
				i.Serialnum, i.Mode, i.Filesize, i.Owner, i.Blocks())
			return nil
		}),
	}, {
		Name:  "info",
		Usage: "show the superblock and free space",
		Action: e.withVolume(func(c *cli.Context, f *fs.Filesystem) error {
			info, err := f.Info()
			if err != nil {
				return err
			}
			sb := info.Super
			w := c.App.Writer
			fmt.Fprintf(w, "uuid:         %s\n", sb.UUID)
			fmt.Fprintf(w, "block size:   %d\n", sb.BlockSize)
			fmt.Fprintf(w, "blocks:       %d (bitmap %d, inodes %d-%d, data %d-%d)\n",
				sb.NumBlocks, sb.BitmapStart, sb.InodeStart, sb.DataStart-1, sb.DataStart, sb.NumBlocks-1)
			fmt.Fprintf(w, "free blocks:  %d/%d\n", info.FreeBlocks, sb.DataBlocks())
			fmt.Fprintf(w, "free inodes:  %d/%d\n", info.FreeInodes, sb.NumInodes)
			fmt.Fprintf(w, "max file:     %d bytes\n", sb.MaxFileSize())
			return nil
		}),
	}, {
		Name:  "check",
		Usage: "look for inconsistencies between the bitmap, inodes and directories",
		Action: e.withVolume(func(c *cli.Context, f *fs.Filesystem) error {
			problems, err := f.Check()
			if err != nil {
				return err
			}
			for _, p := range problems {
				fmt.Fprintln(c.App.Writer, p)
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d problems found", len(problems))
			}
			fmt.Fprintln(c.App.Writer, "Volume is consistent.")
			return nil
		}),
	}, {
		Name:  "demo",
		Usage: "format the volume and walk through every operation",
		Action: func(c *cli.Context) error {
			f, err := fs.FormatFile(e.cfg.Volume, e.cfg.Geometry())
			if err != nil {
				return err
			}
			defer f.Close()
			f.Owner = e.cfg.Owner
			f.Logger = log.FromContext(c.Context).With("component", "FS")
			return demo(c, f)
		},
	}}
}

func demo(c *cli.Context, f *fs.Filesystem) error {
	w := c.App.Writer
	step := func(err error, format string, a ...interface{}) error {
		if err != nil {
			return err
		}
		fmt.Fprintf(w, format+"\n", a...)
		return nil
	}

	fmt.Fprintln(w, "Disk formatted successfully.")
	if err := step(f.Mkdir("/kovan"), "Directory /kovan created successfully."); err != nil {
		return err
	}
	if err := step(f.Create("/kovan/hey.txt"), "File /kovan/hey.txt created successfully."); err != nil {
		return err
	}
	err := f.Write("/kovan/hey.txt", []byte("Operating Systems - MiniFS Project"))
	if err := step(err, "Data written to /kovan/hey.txt successfully."); err != nil {
		return err
	}

	sb := f.Super()
	buf := make([]byte, sb.MaxFileSize())
	n, err := f.Read("/kovan/hey.txt", buf)
	if err := step(err, "Contents of /kovan/hey.txt:\n%q", buf[:n]); err != nil {
		return err
	}

	ents, err := f.List("/kovan", 10)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(ents))
	for _, d := range ents {
		names = append(names, d.Filename)
	}
	fmt.Fprintf(w, "Contents of /kovan:\n%s\n", strings.Join(names, "\n"))

	if err := step(f.Delete("/kovan/hey.txt"), "File /kovan/hey.txt deleted successfully."); err != nil {
		return err
	}
	if err := step(f.Rmdir("/kovan"), "Directory /kovan removed successfully."); err != nil {
		return err
	}

	if err := f.Create("/newfile.txt"); err != nil {
		return err
	}
	err = f.Write("/newfile.txt", []byte("Reusing freed blocks/inodes."))
	if err := step(err, "File /newfile.txt created successfully."); err != nil {
		return err
	}
	st, err := f.Stat("/newfile.txt")
	if err != nil {
		return err
	}
	if st.Serialnum != 1 {
		return errors.New("freed inode 1 was not reused")
	}
	data, err := f.ReadAll("/newfile.txt")
	if err := step(err, "Contents of /newfile.txt (inode %d, blocks %v):\n%q", st.Serialnum, st.Blocks(), data); err != nil {
		return err
	}

	fmt.Fprintln(w, "Example main sequence finished.")
	return nil
}
