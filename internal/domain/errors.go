package domain

import "errors"

var (
	ErrUnsupportedURL   = errors.New("unsupported url")
	ErrPluginNotFound   = errors.New("plugin not found")
	ErrPluginExists     = errors.New("plugin already registered")
	ErrNotPortable      = errors.New("not running in portable mode")
	ErrDownloadNotFound = errors.New("download not found")
	ErrNoFormat         = errors.New("no matching format")
	ErrNoDownloader     = errors.New("no downloader supports format")
	ErrInvalidState     = errors.New("invalid download state")
)
