package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/mediafetch/internal/archive"
	"github.com/dmitrijs2005/mediafetch/internal/flagx"
	"github.com/dmitrijs2005/mediafetch/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields distinguish "absent" from a zero value, so only keys present in
// the file override defaults.
type JsonConfig struct {
	DownloadDir *string `json:"download_dir"`
	StateDir    *string `json:"state_dir"`
	ItemsFile   *string `json:"items_file"`
	Site        *string `json:"site"`

	Workers               *int            `json:"workers"`
	Mode                  *string         `json:"mode"`
	MaxRetries            *int            `json:"max_retries"`
	RetryInterval         *timex.Duration `json:"retry_interval"`
	RateLimitInterval     *timex.Duration `json:"rate_limit_interval"`
	StreamReadTimeout     *timex.Duration `json:"stream_read_timeout"`
	PartialUpdateInterval *timex.Duration `json:"partial_update_interval"`

	FolderLayout   *string `json:"folder_layout"`
	FileNamingMode *int    `json:"file_naming_mode"`

	DownloadImages     *bool `json:"download_images"`
	DownloadVideos     *bool `json:"download_videos"`
	DownloadCompressed *bool `json:"download_compressed"`

	UserAgent *string `json:"user_agent"`
	Referer   *string `json:"referer"`
	LogLevel  *string `json:"log_level"`

	S3 *archive.Config `json:"s3"`
}

// parseJson overlays Config with values loaded from the file named by -c
// or -config. It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	jc.apply(cfg)
}

func (jc *JsonConfig) apply(cfg *Config) {
	set(&cfg.DownloadDir, jc.DownloadDir)
	set(&cfg.StateDir, jc.StateDir)
	set(&cfg.ItemsFile, jc.ItemsFile)
	set(&cfg.Site, jc.Site)

	set(&cfg.Workers, jc.Workers)
	set(&cfg.Mode, jc.Mode)
	set(&cfg.MaxRetries, jc.MaxRetries)
	setDuration(&cfg.RetryInterval, jc.RetryInterval)
	setDuration(&cfg.RateLimitInterval, jc.RateLimitInterval)
	setDuration(&cfg.StreamReadTimeout, jc.StreamReadTimeout)
	setDuration(&cfg.PartialUpdateInterval, jc.PartialUpdateInterval)

	set(&cfg.FolderLayout, jc.FolderLayout)
	set(&cfg.FileNamingMode, jc.FileNamingMode)

	set(&cfg.DownloadImages, jc.DownloadImages)
	set(&cfg.DownloadVideos, jc.DownloadVideos)
	set(&cfg.DownloadCompressed, jc.DownloadCompressed)

	set(&cfg.UserAgent, jc.UserAgent)
	set(&cfg.Referer, jc.Referer)
	set(&cfg.LogLevel, jc.LogLevel)

	set(&cfg.S3, jc.S3)
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *timex.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}
