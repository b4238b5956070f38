// Package config provides hierarchical configuration management for
// the describer and its emitters.
// Priority: defaults < system < user < project < env < flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config holds the describer's closed option set plus emitter
// connection settings.
type Config struct {
	Version int `yaml:"version"`

	Describe DescribeConfig `yaml:"describe"`
	Emit     EmitConfig     `yaml:"emit"`
}

// DescribeConfig mirrors the closed describer option set (§4.6):
// threads, delimiter, quote, stats, force_string, sample_size,
// sniff_bytes.
type DescribeConfig struct {
	Threads     int    `yaml:"threads"`   // 0 = auto (NumCPU)
	Delimiter   string `yaml:"delimiter"` // "" = sniff
	Quote       string `yaml:"quote"`     // "" = '"' (quote is not sniffed)
	Stats       bool   `yaml:"stats"`
	ForceString bool   `yaml:"force_string"`
	SampleSize  int    `yaml:"sample_size"` // rows sampled for type inference; 0 = every row
	SniffBytes  int    `yaml:"sniff_bytes"` // bytes sampled for dialect sniffing
	Parallelism int    `yaml:"parallelism"` // resources described concurrently
	ForeignKeys bool   `yaml:"foreign_keys"`
}

// EmitConfig holds connection settings for the domain emitters.
type EmitConfig struct {
	SQL      SQLEmitConfig      `yaml:"sql"`
	Columnar ColumnarEmitConfig `yaml:"columnar"`
	Sheet    SheetEmitConfig    `yaml:"sheet"`
	Bundle   BundleEmitConfig   `yaml:"bundle"`
}

// SQLEmitConfig selects a SQL dialect and connection for sqlout.
type SQLEmitConfig struct {
	Dialect string `yaml:"dialect"` // postgres | mysql | mssql | sqlite | duckdb
	DSN     string `yaml:"dsn"`
	DumpTo  string `yaml:"dump_to"` // non-empty: write a dump script instead of connecting
}

// ColumnarEmitConfig controls the Parquet emitter.
type ColumnarEmitConfig struct {
	Compression string `yaml:"compression"` // snappy | gzip | none
}

// SheetEmitConfig controls the spreadsheet workbook emitter.
type SheetEmitConfig struct {
	SheetName string `yaml:"sheet_name"`
}

// BundleEmitConfig controls the archive bundle emitter.
type BundleEmitConfig struct {
	IncludeDescriptor bool `yaml:"include_descriptor"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Describe: DescribeConfig{
			Threads:     0,
			Stats:       true,
			SampleSize:  0,
			SniffBytes:  64 * 1024,
			Parallelism: 1,
			ForeignKeys: false,
		},
		Emit: EmitConfig{
			SQL: SQLEmitConfig{
				Dialect: "sqlite",
			},
			Columnar: ColumnarEmitConfig{
				Compression: "snappy",
			},
			Sheet: SheetEmitConfig{
				SheetName: "Sheet1",
			},
			Bundle: BundleEmitConfig{
				IncludeDescriptor: true,
			},
		},
	}
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{config: Default()}
}

// Load loads configuration from all sources in priority order.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()

	for _, path := range m.getConfigPaths() {
		if err := m.loadFile(path); err != nil {
			if !os.IsNotExist(err) {
				return err
			}
			continue
		}
		m.paths = append(m.paths, path)
	}

	m.loadEnv()
	return nil
}

func (m *Manager) getConfigPaths() []string {
	var paths []string

	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/csvdescribe/config.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".csvdescribe", "config.yaml"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".csvdescribe.yaml"))
	}
	return paths
}

func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var partial Config
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return err
	}
	m.merge(&partial)
	return nil
}

// merge merges non-zero values from src into the loaded config.
func (m *Manager) merge(src *Config) {
	if src.Describe.Threads != 0 {
		m.config.Describe.Threads = src.Describe.Threads
	}
	if src.Describe.Delimiter != "" {
		m.config.Describe.Delimiter = src.Describe.Delimiter
	}
	if src.Describe.Quote != "" {
		m.config.Describe.Quote = src.Describe.Quote
	}
	if src.Describe.SampleSize != 0 {
		m.config.Describe.SampleSize = src.Describe.SampleSize
	}
	if src.Describe.SniffBytes != 0 {
		m.config.Describe.SniffBytes = src.Describe.SniffBytes
	}
	if src.Describe.Parallelism != 0 {
		m.config.Describe.Parallelism = src.Describe.Parallelism
	}
	// bool fields are only overridden when the source document sets a
	// non-zero "version"; a partial YAML document without one leaves
	// "stats"/"force_string"/"foreign_keys" at the previous layer's
	// value, matching logflow's numeric zero-value convention extended
	// to the describer's boolean options.
	if src.Version != 0 {
		m.config.Describe.Stats = src.Describe.Stats
		m.config.Describe.ForceString = src.Describe.ForceString
		m.config.Describe.ForeignKeys = src.Describe.ForeignKeys
	}

	if src.Emit.SQL.Dialect != "" {
		m.config.Emit.SQL.Dialect = src.Emit.SQL.Dialect
	}
	if src.Emit.SQL.DSN != "" {
		m.config.Emit.SQL.DSN = src.Emit.SQL.DSN
	}
	if src.Emit.SQL.DumpTo != "" {
		m.config.Emit.SQL.DumpTo = src.Emit.SQL.DumpTo
	}
	if src.Emit.Columnar.Compression != "" {
		m.config.Emit.Columnar.Compression = src.Emit.Columnar.Compression
	}
	if src.Emit.Sheet.SheetName != "" {
		m.config.Emit.Sheet.SheetName = src.Emit.Sheet.SheetName
	}
}

// loadEnv loads configuration from environment variables.
func (m *Manager) loadEnv() {
	if v := os.Getenv("CSVDESCRIBE_THREADS"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			m.config.Describe.Threads = n
		}
	}
	if v := os.Getenv("CSVDESCRIBE_DELIMITER"); v != "" {
		m.config.Describe.Delimiter = v
	}
	if v := os.Getenv("CSVDESCRIBE_SQL_DSN"); v != "" {
		m.config.Emit.SQL.DSN = v
	}
	if v := os.Getenv("CSVDESCRIBE_SQL_DIALECT"); v != "" {
		m.config.Emit.SQL.Dialect = v
	}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the config file paths that were actually loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

var (
	globalManager *Manager
	globalOnce    sync.Once
)

// Global returns the process-wide configuration manager, loading it on
// first use.
func Global() *Manager {
	globalOnce.Do(func() {
		globalManager = NewManager()
		globalManager.Load()
	})
	return globalManager
}
