package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Downloads   DownloadsConfig   `toml:"downloads"`
	Queue       QueueConfig       `toml:"queue"`
	Network     NetworkConfig     `toml:"network"`
	Credentials CredentialsConfig `toml:"credentials"`
	FFmpeg      FFmpegConfig      `toml:"ffmpeg"`
}

// DownloadsConfig contains output locations and the plain-text lists kept next to them.
type DownloadsConfig struct {
	OutputDir    string `toml:"output_dir"`
	RawDir       string `toml:"raw_dir"`
	RecoveryFile string `toml:"recovery_file"`
	FailedFile   string `toml:"failed_file"`
	ErrorLog     string `toml:"error_log"`
	RemoveRaw    bool   `toml:"remove_raw"`
}

// QueueConfig contains retry ceilings and transfer timeouts.
type QueueConfig struct {
	MaxDownloadTries int      `toml:"max_download_tries"`
	MaxProcessTries  int      `toml:"max_process_tries"`
	MetadataTimeout  Duration `toml:"metadata_timeout"`
	StallTimeout     Duration `toml:"stall_timeout"`
}

// NetworkConfig contains HTTP client settings shared by provider adapters.
type NetworkConfig struct {
	Timeout           Duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// CredentialsConfig contains opaque provider credentials.
type CredentialsConfig struct {
	YouTube    YouTubeConfig    `toml:"youtube"`
	SoundCloud SoundCloudConfig `toml:"soundcloud"`
}

// YouTubeConfig contains the cookie used for YouTube and YouTube Music requests.
type YouTubeConfig struct {
	Cookie      string `toml:"cookie"`
	HeadersPath string `toml:"headers_path"`
}

// SoundCloudConfig contains the SoundCloud API client id.
type SoundCloudConfig struct {
	ClientID string `toml:"client_id"`
}

// FFmpegConfig locates the transcoding engine and where to install it from.
type FFmpegConfig struct {
	Path       string `toml:"path"`
	BinDir     string `toml:"bin_dir"`
	InstallURL string `toml:"install_url"`
}

// Duration is a [time.Duration] that decodes from strings like "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: bad duration %q", ErrInvalidConfig, text)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate reports the first setting that cannot drive the queue.
func (c *Config) Validate() error {
	switch {
	case c.Queue.MaxDownloadTries < 0:
		return fmt.Errorf("%w: max_download_tries must not be negative", ErrInvalidConfig)
	case c.Queue.MaxProcessTries < 0:
		return fmt.Errorf("%w: max_process_tries must not be negative", ErrInvalidConfig)
	case c.Queue.MetadataTimeout.Duration <= 0:
		return fmt.Errorf("%w: metadata_timeout must be positive", ErrInvalidConfig)
	case c.Queue.StallTimeout.Duration <= 0:
		return fmt.Errorf("%w: stall_timeout must be positive", ErrInvalidConfig)
	case c.Downloads.OutputDir == "":
		return fmt.Errorf("%w: output_dir is required", ErrInvalidConfig)
	}
	return nil
}

// ApplyEnv overrides credentials with SOUNDCLOUD_ID and YOUTUBE_COOKIE when they are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SOUNDCLOUD_ID"); v != "" {
		c.Credentials.SoundCloud.ClientID = v
	}
	if v := os.Getenv("YOUTUBE_COOKIE"); v != "" {
		c.Credentials.YouTube.Cookie = v
	}
}

// YouTubeCookie returns the configured cookie, falling back to the one in the saved cURL command.
func (c *Config) YouTubeCookie() (string, error) {
	if c.Credentials.YouTube.Cookie != "" || c.Credentials.YouTube.HeadersPath == "" {
		return c.Credentials.YouTube.Cookie, nil
	}

	headers, err := ParseCurlFile(c.Credentials.YouTube.HeadersPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingCredentials, err)
	}
	return headers.Cookie, nil
}
