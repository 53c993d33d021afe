package server

import (
	"time"

	"github.com/k11v/web2app/internal/build"
)

// Config holds the server configuration.
type Config struct {
	Host                string        `env:"HOST"` // default: "127.0.0.1"
	Port                int           `env:"PORT"` // default: 3000
	ReadHeaderTimeout   time.Duration `env:"READ_HEADER_TIMEOUT"`
	MaxUploadSize       int64         `env:"MAX_UPLOAD_SIZE"`       // default: build.DefaultMaxFileSize
	AllowedOrigins      []string      `env:"ALLOWED_ORIGINS"`       // default: any
	PublicDir           string        `env:"PUBLIC_DIR"`            // optional
	DownloadTokenSecret string        `env:"DOWNLOAD_TOKEN_SECRET"` // optional
	DownloadTokenTTL    time.Duration `env:"DOWNLOAD_TOKEN_TTL"`    // default: 24h

	Development bool // serves API docs at /swagger/
}

func (c *Config) host() string {
	h := c.Host
	if h == "" {
		h = "127.0.0.1"
	}
	return h
}

func (c *Config) port() int {
	p := c.Port
	if p == 0 {
		p = 3000
	}
	return p
}

func (c *Config) maxUploadSize() int64 {
	s := c.MaxUploadSize
	if s <= 0 {
		s = build.DefaultMaxFileSize
	}
	return s
}

// maxBodySize allows for the site archive, the icon, the splash screen
// and the form fields.
func (c *Config) maxBodySize() int64 {
	return 3*c.maxUploadSize() + 1024*1024
}

func (c *Config) allowedOrigins() []string {
	o := c.AllowedOrigins
	if len(o) == 0 {
		o = []string{"*"}
	}
	return o
}

func (c *Config) downloadTokenTTL() time.Duration {
	ttl := c.DownloadTokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return ttl
}
