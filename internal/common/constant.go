package common

// DefaultUserAgent is sent with every media request unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0 Safari/537.36"

// DefaultAccept mirrors what browsers send for media downloads.
const DefaultAccept = "*/*"

// TempSuffix is appended to a final path to form its temporary path.
const TempSuffix = ".tmp"
