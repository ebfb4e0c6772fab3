// Package config loads runtime configuration for the mediafetch CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-d string       download root folder
//	-s string       state folder holding downloads.db
//	-i string       listing file (JSON) with posts or items
//	-site string    site used to resolve relative listing paths
//	-w int          worker count
//	-m string       dispatch mode: multi or queue
//	-r int          max retries per item
//	-ri float       retry interval (seconds)
//	-rl float       minimum interval between requests to one origin (seconds)
//	-t float        stream read timeout (seconds)
//	-l string       folder layout: default or post_number
//	-n int          file naming mode (0..3)
//	-no-images      skip images
//	-no-videos      skip videos
//	-no-archives    skip archives
//	-v              debug logging
//
// # JSON schema
//
// Intervals use timex.Duration, so they can be strings like "1.5s" or a
// number of seconds. Only keys present in the file override defaults:
//
//	{
//	  "download_dir": "downloads",
//	  "workers": 5,
//	  "retry_interval": 1.5,
//	  "stream_read_timeout": "20s",
//	  "s3": {"bucket": "media", "base_endpoint": "http://127.0.0.1:9000"}
//	}
package config
