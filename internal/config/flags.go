package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/mediafetch/internal/flagx"
	"github.com/dmitrijs2005/mediafetch/internal/timex"
)

var (
	valueFlags  = []string{"-d", "-s", "-i", "-site", "-w", "-m", "-r", "-ri", "-rl", "-t", "-l", "-n"}
	switchFlags = []string{"-no-images", "-no-videos", "-no-archives", "-v"}
)

// parseFlags populates Config fields from command-line flags.
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
// It panics on malformed values.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], append(append([]string{}, valueFlags...), switchFlags...), switchFlags...)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DownloadDir, "d", cfg.DownloadDir, "download root folder")
	fs.StringVar(&cfg.StateDir, "s", cfg.StateDir, "state folder")
	fs.StringVar(&cfg.ItemsFile, "i", cfg.ItemsFile, "listing file with posts or items")
	fs.StringVar(&cfg.Site, "site", cfg.Site, "site for relative listing paths")
	fs.IntVar(&cfg.Workers, "w", cfg.Workers, "worker count")
	fs.StringVar(&cfg.Mode, "m", cfg.Mode, "dispatch mode: multi or queue")
	fs.IntVar(&cfg.MaxRetries, "r", cfg.MaxRetries, "max retries per item")
	retryInterval := fs.Float64("ri", cfg.RetryInterval.Seconds(), "retry interval (in seconds)")
	rateInterval := fs.Float64("rl", cfg.RateLimitInterval.Seconds(), "minimum interval between requests to one origin (in seconds)")
	readTimeout := fs.Float64("t", cfg.StreamReadTimeout.Seconds(), "stream read timeout (in seconds)")
	fs.StringVar(&cfg.FolderLayout, "l", cfg.FolderLayout, "folder layout: default or post_number")
	fs.IntVar(&cfg.FileNamingMode, "n", cfg.FileNamingMode, "file naming mode (0..3)")
	noImages := fs.Bool("no-images", false, "skip images")
	noVideos := fs.Bool("no-videos", false, "skip videos")
	noArchives := fs.Bool("no-archives", false, "skip archives")
	verbose := fs.Bool("v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RetryInterval = timex.Seconds(*retryInterval)
	cfg.RateLimitInterval = timex.Seconds(*rateInterval)
	cfg.StreamReadTimeout = timex.Seconds(*readTimeout)
	if *noImages {
		cfg.DownloadImages = false
	}
	if *noVideos {
		cfg.DownloadVideos = false
	}
	if *noArchives {
		cfg.DownloadCompressed = false
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
}
