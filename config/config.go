// Package config loads the YAML configuration and resolves the defaults
// the filesystem core consumes: cache locations under the XDG cache
// directory, the public Web API as fallback backend, and the directory
// listing memory budget.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/mem"
	"gopkg.in/yaml.v2"
)

// EnvConfigFile overrides the configuration file path.
const EnvConfigFile = "SWH_CONFIG_FILE"

const (
	defaultJSONIndent = 2
	defaultMaxRAM     = "10%"

	// MetadataDBName and BlobDBName are the cache file names under the
	// cache directory; `swhfs clean` removes exactly these.
	MetadataDBName = "metadata.sqlite"
	BlobDBName     = "blob.sqlite"
)

// Store locates one persistent cache.
type Store struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in-memory"`
}

// BlobStore locates the blob cache, which can additionally be bypassed.
type BlobStore struct {
	Store  `yaml:",inline"`
	Bypass bool `yaml:"bypass"`
}

// DirEntry bounds the in-memory directory listing cache; MaxRAM is a
// suffixed size ("128MB") or a percentage of available RAM ("10%").
type DirEntry struct {
	MaxRAM string `yaml:"maxram"`
}

// CacheConfig groups the cache settings.
type CacheConfig struct {
	Metadata Store     `yaml:"metadata"`
	Blob     BlobStore `yaml:"blob"`
	DirEntry DirEntry  `yaml:"direntry"`
}

// Graph configures the compressed-graph backend; its presence selects it.
type Graph struct {
	GRPCURL string `yaml:"grpc-url"`
}

// WebAPI configures the Web API backend.
type WebAPI struct {
	URL       string `yaml:"url"`
	AuthToken string `yaml:"auth-token"`
}

// Service locates one archive RPC service.
type Service struct {
	URL string `yaml:"url"`
}

// Content configures the objstorage content backend; its presence
// selects it over the Web API for blobs.
type Content struct {
	Storage    *Service `yaml:"storage"`
	ObjStorage *Service `yaml:"objstorage"`
}

// Config is the subset of the configuration the filesystem consumes.
type Config struct {
	Cache      CacheConfig `yaml:"cache"`
	Graph      *Graph      `yaml:"graph"`
	WebAPI     WebAPI      `yaml:"web-api"`
	Content    *Content    `yaml:"content"`
	JSONIndent *int        `yaml:"json-indent"`
}

// CacheDir returns the default on-disk cache directory,
// $XDG_CACHE_HOME/swh/fuse with the usual ~/.cache fallback.
func CacheDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", errors.Wrap(err, "locate cache directory")
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "swh", "fuse"), nil
}

// Load reads the configuration from path, from $SWH_CONFIG_FILE when
// path is empty, or returns the defaults when neither names a file.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %q", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %q", path)
		}
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Cache.Metadata.Path == "" && !c.Cache.Metadata.InMemory {
		dir, err := CacheDir()
		if err != nil {
			return err
		}
		c.Cache.Metadata.Path = filepath.Join(dir, MetadataDBName)
	}
	if c.Cache.Blob.Path == "" && !c.Cache.Blob.InMemory && !c.Cache.Blob.Bypass {
		dir, err := CacheDir()
		if err != nil {
			return err
		}
		c.Cache.Blob.Path = filepath.Join(dir, BlobDBName)
	}
	if c.Cache.DirEntry.MaxRAM == "" {
		c.Cache.DirEntry.MaxRAM = defaultMaxRAM
	}
	return nil
}

// Indent returns the JSON pretty-printing indent, defaulting to 2.
func (c *Config) Indent() int {
	if c.JSONIndent == nil {
		return defaultJSONIndent
	}
	return *c.JSONIndent
}

// DirEntryBudget resolves the direntry cache budget to bytes.
func (c *Config) DirEntryBudget() (int64, error) {
	return parseRAMBudget(c.Cache.DirEntry.MaxRAM, availableRAM)
}

// availableRAM is replaceable in tests.
var availableRAM = func() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, errors.Wrap(err, "read memory statistics")
	}
	return vm.Available, nil
}

// parseRAMBudget accepts "512MB"-style suffixed sizes or "N%" of the
// available RAM.
func parseRAMBudget(spec string, available func() (uint64, error)) (int64, error) {
	if n := len(spec); n > 1 && spec[n-1] == '%' {
		pct, err := strconv.ParseFloat(strings.TrimSpace(spec[:n-1]), 64)
		if err != nil || pct <= 0 || pct > 100 {
			return 0, errors.Errorf("invalid RAM percentage %q", spec)
		}
		avail, err := available()
		if err != nil {
			return 0, err
		}
		return int64(float64(avail) * pct / 100), nil
	}
	size, err := humanize.ParseBytes(spec)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid size %q", spec)
	}
	return int64(size), nil
}
