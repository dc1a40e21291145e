package mongols

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the .mongols.yaml configuration file.
type Config struct {
	Connection ConnectionConfig `yaml:"connection,omitempty"`
	Playground PlaygroundConfig `yaml:"playground,omitempty"`
	Schema     SchemaConfig     `yaml:"schema,omitempty"`
	Log        LogConfig        `yaml:"log,omitempty"`
}

// ConnectionConfig holds the default connection for completions and runs.
type ConnectionConfig struct {
	URI string `yaml:"uri,omitempty"`

	// Database is used when no use('...') precedes the cursor.
	Database string `yaml:"database,omitempty"`

	// DataSource selects a registered backend (default "mongodb").
	DataSource string `yaml:"dataSource,omitempty"`
}

// PlaygroundConfig configures the execution worker.
type PlaygroundConfig struct {
	// Mongosh is the shell binary the worker evaluates code with.
	Mongosh string `yaml:"mongosh,omitempty"`

	// Timeout bounds a single run. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// GracePeriod is how long a cancelled worker gets between stdin
	// close and kill.
	GracePeriod time.Duration `yaml:"gracePeriod,omitempty"`
}

// SchemaConfig configures field-name sampling.
type SchemaConfig struct {
	SampleSize int64 `yaml:"sampleSize,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
}

// Defaults applied by WithDefaults.
const (
	DefaultDataSource  = "mongodb"
	DefaultMongosh     = "mongosh"
	DefaultGracePeriod = 2 * time.Second
	DefaultSampleSize  = 1
)

// WithDefaults returns a copy of c with unset fields filled in.
func (c Config) WithDefaults() Config {
	if c.Connection.DataSource == "" {
		c.Connection.DataSource = DefaultDataSource
	}

	if c.Playground.Mongosh == "" {
		c.Playground.Mongosh = DefaultMongosh
	}

	if c.Playground.GracePeriod == 0 {
		c.Playground.GracePeriod = DefaultGracePeriod
	}

	if c.Schema.SampleSize <= 0 {
		c.Schema.SampleSize = DefaultSampleSize
	}

	return c
}

// DefaultConfigNames are the filenames we search for.
var DefaultConfigNames = []string{".mongols.yaml", ".mongols.yml", "mongols.yaml", "mongols.yml"}

// LoadConfig finds and loads the nearest .mongols.yaml walking up from dir.
func LoadConfig(dir string) (*Config, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}

	return LoadConfigFile(path)
}

// FindConfig searches for a config file starting from dir and walking up.
func FindConfig(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for dir := absDir; ; {
		for _, name := range DefaultConfigNames {
			path := filepath.Join(dir, name)

			_, err := os.Stat(path)
			if err == nil {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}

		dir = parent
	}
}

// LoadConfigFile loads a config from a specific path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var cfg Config

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
