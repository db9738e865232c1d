package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultConfigFile is looked up in the working directory when --config
// is not given.
const defaultConfigFile = "vecback.yaml"

// Config is the in-memory representation of the vecback YAML config.
type Config struct {
	// Backend selects where backups are stored: local, s3 or minio.
	Backend string `yaml:"backend"`
	// Root is the backup directory for the local backend.
	Root string `yaml:"root"`

	S3    S3Config    `yaml:"s3,omitempty"`
	MinIO MinIOConfig `yaml:"minio,omitempty"`

	// PageSize and Workers tune the export scan; zero keeps the library
	// defaults.
	PageSize int `yaml:"page_size,omitempty"`
	Workers  int `yaml:"workers,omitempty"`
	// Compression names the artifact block compression: zstd, lz4 or none.
	Compression string `yaml:"compression,omitempty"`
	// InsertRetries bounds per-batch retries during restore.
	InsertRetries int `yaml:"insert_retries,omitempty"`

	Demo DemoConfig `yaml:"demo,omitempty"`
}

// S3Config configures the s3 backend. Credentials come from the default
// AWS config chain.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix,omitempty"`
	Region string `yaml:"region,omitempty"`
	// LeaseTable names a DynamoDB table used to exclude mutating commands
	// across machines sharing the bucket. Empty falls back to a local
	// file lock, which only guards this machine.
	LeaseTable string `yaml:"lease_table,omitempty"`
}

// MinIOConfig configures the minio backend with static credentials.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix,omitempty"`
	Secure    bool   `yaml:"secure,omitempty"`
}

// DemoConfig describes the fixture collection the CLI seeds before a
// backup. The tool runs against the in-memory reference store, so source
// collections are recreated on every invocation; only the backups in the
// blob backend persist across runs.
type DemoConfig struct {
	Entities int `yaml:"entities,omitempty"`
}

// DefaultConfig returns the config used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		Backend:     "local",
		Root:        ".vecback",
		Compression: "zstd",
		Demo: DemoConfig{
			Entities: 2000,
		},
	}
}

// LoadConfig reads the YAML config at path. An empty path falls back to
// vecback.yaml in the working directory, and to defaults if that does not
// exist either. A path given explicitly must exist.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend {
	case "", "local":
		if c.Root == "" {
			return fmt.Errorf("local backend requires root")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3 backend requires s3.bucket")
		}
	case "minio":
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return fmt.Errorf("minio backend requires minio.endpoint and minio.bucket")
		}
	default:
		return fmt.Errorf("unknown backend %q (expected local, s3 or minio)", c.Backend)
	}
	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}
