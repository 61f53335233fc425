package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config represents the main configuration for pouch.
type Config struct {
	BaseDir string       `toml:"base_dir" env:"POUCH_BASE_DIR"`
	LogDir  string       `toml:"log_dir" env:"POUCH_LOG_DIR"`
	Origin  OriginConfig `toml:"origin"`
	Store   StoreConfig  `toml:"store"`
	Cache   CacheConfig  `toml:"cache"`
	Sync    SyncConfig   `toml:"sync"`
	Server  ServerConfig `toml:"server"`
}

// OriginConfig represents configuration for the content origin.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type OriginConfig struct {
	Type string `toml:"type" env:"POUCH_ORIGIN_TYPE"` // "http", "s3", or "filesystem"

	// HTTP-specific fields (only used when Type == "http")
	URL               string `toml:"url,omitempty" env:"POUCH_ORIGIN_URL"`
	TimeoutSeconds    int    `toml:"timeout_seconds,omitempty" env:"POUCH_ORIGIN_TIMEOUT_SECONDS"`
	RequestsPerSecond int    `toml:"requests_per_second,omitempty" env:"POUCH_ORIGIN_REQUESTS_PER_SECOND"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty" env:"POUCH_ORIGIN_S3_BUCKET"`
	S3Prefix    string `toml:"s3_prefix,omitempty" env:"POUCH_ORIGIN_S3_PREFIX"`
	S3Region    string `toml:"s3_region,omitempty" env:"POUCH_ORIGIN_S3_REGION"`
	S3AccessKey string `toml:"s3_access_key,omitempty" env:"POUCH_ORIGIN_S3_ACCESS_KEY"`
	S3SecretKey string `toml:"s3_secret_key,omitempty" env:"POUCH_ORIGIN_S3_SECRET_KEY"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty" env:"POUCH_ORIGIN_ROOT"`
}

// StoreConfig represents configuration for the bookkeeping store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type    string `toml:"type" env:"POUCH_STORE_TYPE"`                   // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty" env:"POUCH_STORE_DATA_DIR"` // only used for type=sqlite
}

// CacheConfig represents configuration for the asset byte cache.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CacheConfig struct {
	Type      string `toml:"type" env:"POUCH_CACHE_TYPE"`         // "filesystem" or "memory"
	Dir       string `toml:"dir,omitempty" env:"POUCH_CACHE_DIR"` // only used for type=filesystem
	Namespace string `toml:"namespace" env:"POUCH_CACHE_NAMESPACE"`
}

// SyncConfig holds download behavior settings.
type SyncConfig struct {
	Workers      int    `toml:"workers" env:"POUCH_SYNC_WORKERS"`
	ManifestPath string `toml:"manifest_path" env:"POUCH_SYNC_MANIFEST_PATH"`
}

// ServerConfig holds settings for the local asset server.
type ServerConfig struct {
	Addr           string   `toml:"addr" env:"POUCH_SERVER_ADDR"`
	AllowedOrigins []string `toml:"allowed_origins" env:"POUCH_SERVER_ALLOWED_ORIGINS" envSeparator:","`
}

// NewConfig creates a new Config rooted at baseDir with default values.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Origin: OriginConfig{
			Type:           "http",
			TimeoutSeconds: 30,
		},
		Store: StoreConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Cache: CacheConfig{
			Type:      "filesystem",
			Dir:       filepath.Join(baseDir, "cache"),
			Namespace: "pouch-assets-v1",
		},
		Sync: SyncConfig{
			Workers:      6,
			ManifestPath: "manifest.json",
		},
		Server: ServerConfig{
			Addr: ":8787",
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads the config file at path and applies environment variable
// overrides. Variables take precedence over file values.
func Load(path string) (*Config, error) {
	cfg, err := ReadFromFile(path)
	if err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment overrides: %w", err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
