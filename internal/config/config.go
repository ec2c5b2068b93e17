// Package config binds the environment variables spec.md §6 enumerates
// ("Environment configuration") into typed structs, following the teacher
// pack's viper+godotenv pattern (rohankatakam-coderisk/internal/config/config.go):
// load .env files for local convenience, set defaults, let real environment
// variables win.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Broker holds the queue connection parameters shared by every service.
type Broker struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// Graph holds the Neo4j connection parameters shared by the resolver and
// ingestion worker.
type Graph struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// WatcherConfig configures the file watcher (C2).
type WatcherConfig struct {
	Broker         Broker
	RootPath       string        `mapstructure:"root_path"`
	DebounceWindow time.Duration `mapstructure:"debounce_window"`
	IgnorePatterns []string      `mapstructure:"ignore_patterns"`
	ExtensionMap   map[string]string `mapstructure:"extension_map"`
}

// ScannerConfig configures the bulk scanner (C3).
type ScannerConfig struct {
	Broker       Broker
	Graph        Graph
	RootPath     string            `mapstructure:"root_path"`
	IgnorePatterns []string        `mapstructure:"ignore_patterns"`
	ExtensionMap map[string]string `mapstructure:"extension_map"`
	Workers      int               `mapstructure:"workers"`
}

// pipelineFile is the on-disk ignore-pattern/extension-map config file
// shape for C2/C3, loaded via gopkg.in/yaml.v3 when WATCHER_CONFIG_FILE
// or SCANNER_CONFIG_FILE points at one, matching the pack's near-
// universal use of that library for this kind of config file. A YAML
// file, when present, takes precedence over the CSV environment
// variables below (which remain the fallback for single-value overrides
// in container env blocks where mounting a file is inconvenient).
type pipelineFile struct {
	IgnorePatterns []string          `yaml:"ignore_patterns"`
	ExtensionMap   map[string]string `yaml:"extension_map"`
}

// loadPipelineFile reads and parses path as a pipelineFile. A missing
// path (including the empty string) is not an error: it simply means no
// file was configured, and callers fall back to env-derived defaults.
func loadPipelineFile(path string) (*pipelineFile, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var pf pipelineFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &pf, nil
}

// AnalyzerConfig configures a language analyzer (C4) instance.
type AnalyzerConfig struct {
	Broker   Broker
	Language string `mapstructure:"language"`
	Prefetch int    `mapstructure:"prefetch"`
}

// ResolverConfig configures the orchestrator/resolver (C5).
type ResolverConfig struct {
	Broker             Broker
	Graph              Graph
	ResolutionInterval time.Duration `mapstructure:"resolution_interval"`
}

// IngestConfig configures the ingestion worker (C6).
type IngestConfig struct {
	Broker             Broker
	Graph              Graph
	ResolutionInterval time.Duration `mapstructure:"resolution_interval"`
	Prefetch           int           `mapstructure:"prefetch"`
}

// GatewayConfig configures the query/control HTTP gateway.
type GatewayConfig struct {
	Broker   Broker
	Graph    Graph
	Addr     string `mapstructure:"addr"`
	RootPath string `mapstructure:"root_path"`
	APIKey   string `mapstructure:"api_key"`
}

const defaultResolutionInterval = 30 * time.Second
const defaultDebounceWindow = 500 * time.Millisecond

var defaultIgnorePatterns = []string{
	".git", "__pycache__", "node_modules", ".goparse_state.json",
	"*.pyc", "*.swp", "*~", ".DS_Store",
}

var defaultExtensionMap = map[string]string{
	".py": "python",
}

// loadEnvFiles loads .env files in order of increasing precedence, matching
// coderisk's config.loadEnvFiles: later files override earlier ones.
func loadEnvFiles() {
	for _, file := range []string{".env.example", ".env", ".env.local"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Overload(file)
		}
	}
}

func newViper(prefix string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func brokerDefaults(v *viper.Viper) {
	v.SetDefault("broker.host", "localhost")
	v.SetDefault("broker.port", 5672)
	v.SetDefault("broker.user", "guest")
	v.SetDefault("broker.password", "guest")
}

func graphDefaults(v *viper.Viper) {
	v.SetDefault("graph.uri", "bolt://localhost:7687")
	v.SetDefault("graph.user", "neo4j")
	v.SetDefault("graph.password", "neo4j")
}

func readBroker(v *viper.Viper) Broker {
	return Broker{
		Host:     v.GetString("broker.host"),
		Port:     v.GetInt("broker.port"),
		User:     v.GetString("broker.user"),
		Password: v.GetString("broker.password"),
	}
}

func readGraph(v *viper.Viper) Graph {
	return Graph{
		URI:      v.GetString("graph.uri"),
		User:     v.GetString("graph.user"),
		Password: v.GetString("graph.password"),
	}
}

func ignorePatterns(v *viper.Viper, file *pipelineFile) []string {
	if file != nil && len(file.IgnorePatterns) > 0 {
		return file.IgnorePatterns
	}
	raw := v.GetString("ignore_patterns")
	if raw == "" {
		return defaultIgnorePatterns
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func extensionMap(v *viper.Viper, file *pipelineFile) map[string]string {
	if file != nil && len(file.ExtensionMap) > 0 {
		return file.ExtensionMap
	}
	raw := v.GetString("extension_map")
	if raw == "" {
		return defaultExtensionMap
	}
	out := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(entry), "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[kv[0]] = kv[1]
	}
	if len(out) == 0 {
		return defaultExtensionMap
	}
	return out
}

// LoadWatcher reads WATCHER_* environment variables (plus .env files) into
// a WatcherConfig.
func LoadWatcher() (*WatcherConfig, error) {
	loadEnvFiles()
	v := newViper("WATCHER")
	brokerDefaults(v)
	v.SetDefault("root_path", ".")
	v.SetDefault("debounce_window_ms", int(defaultDebounceWindow/time.Millisecond))
	v.SetDefault("config_file", "")

	rootPath := v.GetString("root_path")
	if rootPath == "" {
		return nil, fmt.Errorf("config: WATCHER_ROOT_PATH must not be empty")
	}

	file, err := loadPipelineFile(v.GetString("config_file"))
	if err != nil {
		return nil, err
	}

	return &WatcherConfig{
		Broker:         readBroker(v),
		RootPath:       rootPath,
		DebounceWindow: time.Duration(v.GetInt("debounce_window_ms")) * time.Millisecond,
		IgnorePatterns: ignorePatterns(v, file),
		ExtensionMap:   extensionMap(v, file),
	}, nil
}

// LoadScanner reads SCANNER_* environment variables into a ScannerConfig.
func LoadScanner() (*ScannerConfig, error) {
	loadEnvFiles()
	v := newViper("SCANNER")
	brokerDefaults(v)
	graphDefaults(v)
	v.SetDefault("root_path", ".")
	v.SetDefault("workers", 8)
	v.SetDefault("config_file", "")

	rootPath := v.GetString("root_path")
	if rootPath == "" {
		return nil, fmt.Errorf("config: SCANNER_ROOT_PATH must not be empty")
	}

	file, err := loadPipelineFile(v.GetString("config_file"))
	if err != nil {
		return nil, err
	}

	return &ScannerConfig{
		Broker:         readBroker(v),
		Graph:          readGraph(v),
		RootPath:       rootPath,
		IgnorePatterns: ignorePatterns(v, file),
		ExtensionMap:   extensionMap(v, file),
		Workers:        v.GetInt("workers"),
	}, nil
}

// LoadAnalyzer reads ANALYZER_* environment variables into an AnalyzerConfig.
// language names which per-language queue (and which analyzer binary) this
// process serves; it has no default because a misconfigured analyzer must
// fail fast per spec.md §7 taxonomy item 4.
func LoadAnalyzer(defaultLanguage string) (*AnalyzerConfig, error) {
	loadEnvFiles()
	v := newViper("ANALYZER")
	brokerDefaults(v)
	v.SetDefault("language", defaultLanguage)
	v.SetDefault("prefetch", 1)

	lang := v.GetString("language")
	if lang == "" {
		return nil, fmt.Errorf("config: ANALYZER_LANGUAGE must not be empty")
	}

	return &AnalyzerConfig{
		Broker:   readBroker(v),
		Language: lang,
		Prefetch: v.GetInt("prefetch"),
	}, nil
}

// LoadResolver reads RESOLVER_* environment variables into a ResolverConfig.
func LoadResolver() (*ResolverConfig, error) {
	loadEnvFiles()
	v := newViper("RESOLVER")
	brokerDefaults(v)
	graphDefaults(v)
	v.SetDefault("resolution_interval_s", int(defaultResolutionInterval/time.Second))

	return &ResolverConfig{
		Broker:             readBroker(v),
		Graph:              readGraph(v),
		ResolutionInterval: time.Duration(v.GetInt("resolution_interval_s")) * time.Second,
	}, nil
}

// LoadIngest reads INGEST_* environment variables into an IngestConfig.
func LoadIngest() (*IngestConfig, error) {
	loadEnvFiles()
	v := newViper("INGEST")
	brokerDefaults(v)
	graphDefaults(v)
	v.SetDefault("resolution_interval_s", int(defaultResolutionInterval/time.Second))
	v.SetDefault("prefetch", 4)

	return &IngestConfig{
		Broker:             readBroker(v),
		Graph:              readGraph(v),
		ResolutionInterval: time.Duration(v.GetInt("resolution_interval_s")) * time.Second,
		Prefetch:           v.GetInt("prefetch"),
	}, nil
}

// LoadGateway reads GATEWAY_* environment variables into a GatewayConfig.
func LoadGateway() (*GatewayConfig, error) {
	loadEnvFiles()
	v := newViper("GATEWAY")
	brokerDefaults(v)
	graphDefaults(v)
	v.SetDefault("addr", ":8080")
	v.SetDefault("root_path", ".")
	v.SetDefault("api_key", "changeme")

	return &GatewayConfig{
		Broker:   readBroker(v),
		Graph:    readGraph(v),
		Addr:     v.GetString("addr"),
		RootPath: v.GetString("root_path"),
		APIKey:   v.GetString("api_key"),
	}, nil
}
