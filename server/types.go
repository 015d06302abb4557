package server

import (
	"strings"
	"time"
)

// The config for Previewd Server
type Config struct {
	Mode    string        `json:"mode"`
	LogDir  string        `json:"logDir"`
	Autotls AutotlsConfig `json:"autotls"`
	Preview PreviewConfig `json:"preview"`
}

// The config for AutoTLS
type AutotlsConfig struct {
	Hosts    []string `json:"hosts"`
	CacheDir string   `json:"cacheDir"`
}

// The config for the preview middleware
type PreviewConfig struct {
	Prefix      string `json:"prefix"`
	Template    string `json:"template"`
	Placeholder string `json:"placeholder"`
}

// normalize fills unset fields with defaults and ensures the prefix is
// wrapped in slashes so it always matches a whole path segment.
func (p *PreviewConfig) normalize() {
	if p.Prefix == "" {
		p.Prefix = defaultPreviewPrefix
	}
	if !strings.HasPrefix(p.Prefix, "/") {
		p.Prefix = "/" + p.Prefix
	}
	if !strings.HasSuffix(p.Prefix, "/") {
		p.Prefix = p.Prefix + "/"
	}
	if p.Template == "" {
		p.Template = defaultTemplateName
	}
	if p.Placeholder == "" {
		p.Placeholder = defaultPlaceholder
	}
}

// FileContent cache file content in memory
type FileContent struct {
	Error   error
	Modtime time.Time
	Content []byte
}
