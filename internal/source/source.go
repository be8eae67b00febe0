// Package source configures and caches connections to the object storage
// endpoints the gateway fronts. Each source is one S3-compatible endpoint
// identified by a short id; the registry hands out a store.Store per id and
// builds the underlying client lazily on first use.
package source

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/singleflight"

	"strata/internal/store"
)

// Config describes one S3-compatible endpoint.
type Config struct {
	ID        string `yaml:"id"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseTLS    bool   `yaml:"use_tls"`
}

// File is the on-disk configuration format.
type File struct {
	DefaultSource string   `yaml:"default_source"`
	Sources       []Config `yaml:"sources"`
}

// LoadFile reads a YAML source configuration.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source config: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing source config: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, fmt.Errorf("source config %q declares no sources", path)
	}

	seen := make(map[string]bool, len(f.Sources))
	for _, cfg := range f.Sources {
		if cfg.ID == "" {
			return nil, fmt.Errorf("source config %q has a source without an id", path)
		}
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("source %q has no endpoint", cfg.ID)
		}
		if seen[cfg.ID] {
			return nil, fmt.Errorf("source id %q declared twice", cfg.ID)
		}
		seen[cfg.ID] = true
	}
	if f.DefaultSource == "" && len(f.Sources) == 1 {
		f.DefaultSource = f.Sources[0].ID
	}
	if f.DefaultSource != "" && !seen[f.DefaultSource] {
		return nil, fmt.Errorf("default source %q is not declared", f.DefaultSource)
	}
	return &f, nil
}

func getenv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// FromEnv builds a single-source configuration from MINIO_* environment
// variables. Used when no config file is given.
func FromEnv() *File {
	return &File{
		DefaultSource: "default",
		Sources: []Config{{
			ID:        "default",
			Endpoint:  getenv("MINIO_ENDPOINT", "localhost:9000"),
			Region:    os.Getenv("MINIO_REGION"),
			AccessKey: getenv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getenv("MINIO_SECRET_KEY", "minioadmin"),
			UseTLS:    os.Getenv("MINIO_USE_TLS") == "true",
		}},
	}
}

// Registry resolves source ids to stores. Clients are constructed on first
// use; concurrent first requests for the same id share one construction.
type Registry struct {
	defaultID string
	configs   map[string]Config

	mu     sync.Mutex
	stores map[string]store.Store
	group  singleflight.Group
}

func NewRegistry(f *File) *Registry {
	configs := make(map[string]Config, len(f.Sources))
	for _, cfg := range f.Sources {
		configs[cfg.ID] = cfg
	}
	return &Registry{
		defaultID: f.DefaultSource,
		configs:   configs,
		stores:    make(map[string]store.Store),
	}
}

func (r *Registry) Has(id string) bool {
	_, ok := r.configs[id]
	return ok
}

func (r *Registry) DefaultID() string {
	return r.defaultID
}

// IDs returns the configured source ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Store returns the store for a source id, constructing the client if this is
// the first use.
func (r *Registry) Store(id string) (store.Store, error) {
	r.mu.Lock()
	if st, ok := r.stores[id]; ok {
		r.mu.Unlock()
		return st, nil
	}
	r.mu.Unlock()

	cfg, ok := r.configs[id]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", id)
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		st, err := connect(cfg)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.stores[id] = st
		r.mu.Unlock()
		return st, nil
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to source %q: %w", id, err)
	}
	return v.(store.Store), nil
}

func connect(cfg Config) (store.Store, error) {
	core, err := minio.NewCore(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseTLS,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, err
	}
	return store.NewMinioStore(core), nil
}
