package main

import (
	"fmt"
	"os"
	"strings"

	"minifs/fs"
	"minifs/log"

	"github.com/urfave/cli/v2"
)

// env is what Before hands on to every command.
type env struct {
	cfg *Config
}

func newApp() *cli.App {
	e := &env{}
	return &cli.App{
		Name:  "minifs",
		Usage: "a small inode filesystem kept inside one container file",
		Description: "Every path is absolute. The container is named by --volume, " +
			"the config file or MINIFS_VOLUME and defaults to disk.img.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "load configuration from YAML `FILE`",
			},
			&cli.StringFlag{
				Name:  "volume",
				Usage: "container `FILE` holding the volume",
			},
			&cli.UintFlag{
				Name:  "owner",
				Usage: "owner `ID` recorded in new inodes",
			},
		},
		Before:   e.setup,
		Commands: e.commands(),
	}
}

func (e *env) setup(c *cli.Context) error {
	cfg, err := LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("volume") {
		cfg.Volume = c.String("volume")
	}
	if c.IsSet("owner") {
		cfg.Owner = uint32(c.Uint("owner"))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := log.New(c.App.ErrWriter, level)
	c.Context = log.Context(c.Context, logger)
	e.cfg = cfg

	logger.Debug("loaded config", "volume", cfg.Volume, "owner", cfg.Owner)
	return nil
}

// withVolume mounts the configured volume for the length
// of one command and unmounts it on every way out.
func (e *env) withVolume(fn func(c *cli.Context, f *fs.Filesystem) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		f, err := fs.OpenFile(e.cfg.Volume)
		if err != nil {
			return err
		}
		defer f.Close()

		f.Owner = e.cfg.Owner
		f.Logger = log.FromContext(c.Context).With("component", "FS")
		return fn(c, f)
	}
}

// args insists on exactly the named positional arguments.
func args(c *cli.Context, names ...string) ([]string, error) {
	if c.NArg() != len(names) {
		usage := c.Command.Name
		for _, n := range names {
			usage += " <" + n + ">"
		}
		return nil, fmt.Errorf("wrong number of arguments, usage: %s %s", c.App.Name, usage)
	}
	return c.Args().Slice(), nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", strings.TrimSpace(err.Error()))
		os.Exit(1)
	}
}
