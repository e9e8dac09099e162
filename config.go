package main

import (
	"errors"
	"fmt"
	"os"

	"minifs/log"
	"minifs/super"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const envVarPrefix = "MINIFS"

type Config struct {
	Volume      string `envconfig:"VOLUME"       yaml:"volume"`
	Owner       uint32 `envconfig:"OWNER"        yaml:"owner"`
	BlockSize   uint32 `envconfig:"BLOCK_SIZE"   yaml:"blockSize"`
	NumBlocks   uint32 `envconfig:"NUM_BLOCKS"   yaml:"numBlocks"`
	NumInodes   uint32 `envconfig:"NUM_INODES"   yaml:"numInodes"`
	InodeBlocks uint32 `envconfig:"INODE_BLOCKS" yaml:"inodeBlocks"`
	LogLevel    string `envconfig:"LOG_LEVEL"    yaml:"logLevel"`
}

func DefaultConfig() Config {
	g := super.DefaultGeometry()
	return Config{
		Volume:      "disk.img",
		BlockSize:   g.BlockSize,
		NumBlocks:   g.NumBlocks,
		NumInodes:   g.NumInodes,
		InodeBlocks: g.InodeBlocks,
		LogLevel:    "info",
	}
}

// LoadConfig starts from the defaults, lays the YAML file on
// top (configFile, else $MINIFS_CONFIG_FILE, else none) and
// then any MINIFS_* environment variables.
func LoadConfig(configFile string) (*Config, error) {
	c := DefaultConfig()

	if configFile == "" {
		configFile = os.Getenv(envVarPrefix + "_CONFIG_FILE")
	}
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshaling config file `%s`: %w", configFile, err)
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	return &c, nil
}

func (c *Config) Geometry() super.Geometry {
	return super.Geometry{
		BlockSize:   c.BlockSize,
		NumBlocks:   c.NumBlocks,
		NumInodes:   c.NumInodes,
		InodeBlocks: c.InodeBlocks,
	}
}

func (c *Config) Validate() error {
	if c.Volume == "" {
		return errors.New("missing required config `volume` (MINIFS_VOLUME)")
	}
	if err := c.Geometry().Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}
