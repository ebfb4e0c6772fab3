package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/mediafetch/internal/archive"
	"github.com/dmitrijs2005/mediafetch/internal/common"
)

// Config holds runtime settings for the downloader.
type Config struct {
	DownloadDir string
	StateDir    string
	ItemsFile   string
	Site        string

	Workers               int
	Mode                  string
	MaxRetries            int
	RetryInterval         time.Duration
	RateLimitInterval     time.Duration
	StreamReadTimeout     time.Duration
	PartialUpdateInterval time.Duration

	FolderLayout   string
	FileNamingMode int

	DownloadImages     bool
	DownloadVideos     bool
	DownloadCompressed bool

	UserAgent string
	Referer   string
	LogLevel  string

	S3 archive.Config
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DownloadDir = "downloads"
	c.StateDir = filepath.Join("resources", "config")
	c.ItemsFile = ""
	c.Site = "coomer.st"

	c.Workers = 5
	c.Mode = "multi"
	c.MaxRetries = 5
	c.RetryInterval = time.Second
	c.RateLimitInterval = time.Second
	c.StreamReadTimeout = 20 * time.Second
	c.PartialUpdateInterval = 5 * time.Second

	c.FolderLayout = "default"
	c.FileNamingMode = 0

	c.DownloadImages = true
	c.DownloadVideos = true
	c.DownloadCompressed = true

	c.UserAgent = common.DefaultUserAgent
	c.Referer = "https://coomer.st/"
	c.LogLevel = "info"

	c.S3 = archive.Config{Region: "us-east-1"}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

// Validate checks ranges and enums.
func (c *Config) Validate() error {
	switch {
	case c.DownloadDir == "":
		return fmt.Errorf("%w: download dir is empty", common.ErrInvalidConfig)
	case c.StateDir == "":
		return fmt.Errorf("%w: state dir is empty", common.ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1, got %d", common.ErrInvalidConfig, c.Workers)
	case c.Mode != "multi" && c.Mode != "queue":
		return fmt.Errorf("%w: mode must be multi or queue, got %q", common.ErrInvalidConfig, c.Mode)
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: max retries must not be negative, got %d", common.ErrInvalidConfig, c.MaxRetries)
	case c.RetryInterval < 0 || c.RateLimitInterval < 0:
		return fmt.Errorf("%w: intervals must not be negative", common.ErrInvalidConfig)
	case c.StreamReadTimeout <= 0:
		return fmt.Errorf("%w: stream read timeout must be positive", common.ErrInvalidConfig)
	case c.FolderLayout != "default" && c.FolderLayout != "post_number":
		return fmt.Errorf("%w: folder layout must be default or post_number, got %q", common.ErrInvalidConfig, c.FolderLayout)
	case c.FileNamingMode < 0 || c.FileNamingMode > 3:
		return fmt.Errorf("%w: file naming mode must be 0..3, got %d", common.ErrInvalidConfig, c.FileNamingMode)
	}
	return nil
}
