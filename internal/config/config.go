package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for myswing.
type Config struct {
	DeviceID    string            `toml:"device_id"`
	BaseDir     string            `toml:"base_dir"`
	LogDir      string            `toml:"log_dir"`
	Backend     BackendConfig     `toml:"backend"`
	Storage     StorageConfig     `toml:"storage"`
	KVStore     KVStoreConfig     `toml:"kv_store"`
	Encoder     EncoderConfig     `toml:"encoder"`
	Credentials CredentialsConfig `toml:"credentials"`
	Workflow    WorkflowConfig    `toml:"workflow"`
	Retry       RetryConfig       `toml:"retry"`
	Weather     WeatherConfig     `toml:"weather"`
}

// BackendConfig locates the hosted backend: auth, REST tables, the analysis
// function and the realtime socket all hang off URL.
type BackendConfig struct {
	URL            string `toml:"url"`
	AnonKey        string `toml:"anon_key"`
	FunctionName   string `toml:"function_name"`
	RealtimeURL    string `toml:"realtime_url,omitempty"` // derived from URL when empty
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// StorageConfig represents configuration for the video object store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StorageConfig struct {
	Type string `toml:"type"` // "backend", "s3", "filesystem" or "memory"

	// Backend-specific fields (only used when Type == "backend")
	Bucket string `toml:"bucket,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// KVStoreConfig represents configuration for the local key-value store.
type KVStoreConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// EncoderConfig selects the video encoder.
type EncoderConfig struct {
	Type        string `toml:"type"` // "ffmpeg" or "passthrough"
	FFmpegPath  string `toml:"ffmpeg_path,omitempty"`
	FFprobePath string `toml:"ffprobe_path,omitempty"`
	TempDir     string `toml:"temp_dir,omitempty"`
}

// CredentialsConfig controls how a remembered session is kept on disk.
type CredentialsConfig struct {
	Type         string `toml:"type"` // "age" (default) or "none"
	IdentityPath string `toml:"identity_path"`
	SessionPath  string `toml:"session_path"`
}

// WorkflowConfig tunes the analysis workflow.
type WorkflowConfig struct {
	TargetMB            float64 `toml:"target_mb"`
	InlineWaitSeconds   int     `toml:"inline_wait_seconds"`
	PollIntervalSeconds int     `toml:"poll_interval_seconds"`
	StoragePrefix       string  `toml:"storage_prefix"`
}

// RetryConfig bounds automatic retries of upload, submit and subscribe.
// MaxAttempts of 1 disables retrying.
type RetryConfig struct {
	MaxAttempts       int `toml:"max_attempts"`
	InitialIntervalMS int `toml:"initial_interval_ms"`
	MaxIntervalMS     int `toml:"max_interval_ms"`
}

// WeatherConfig points at the public forecast API.
type WeatherConfig struct {
	URL string `toml:"url"`
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(deviceID, baseDir string) *Config {
	return &Config{
		DeviceID: deviceID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Backend: BackendConfig{
			FunctionName:   "analyze-swing",
			TimeoutSeconds: 60,
		},
		Storage: StorageConfig{
			Type:   "backend",
			Bucket: "swing-videos",
		},
		KVStore: KVStoreConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Encoder: EncoderConfig{
			Type:        "ffmpeg",
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
		},
		Credentials: CredentialsConfig{
			Type:         "age",
			IdentityPath: filepath.Join(baseDir, "keys", "myswing.key"),
			SessionPath:  filepath.Join(baseDir, "session.age"),
		},
		Workflow: WorkflowConfig{
			TargetMB:            10,
			InlineWaitSeconds:   25,
			PollIntervalSeconds: 15,
			StoragePrefix:       "swings",
		},
		Retry: RetryConfig{
			MaxAttempts:       1,
			InitialIntervalMS: 500,
			MaxIntervalMS:     5000,
		},
		Weather: WeatherConfig{
			URL: "https://api.open-meteo.com/v1/forecast",
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

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may carry the backend key.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
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

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
