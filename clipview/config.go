package clipview

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the session settings that can come from the environment.
// Variables use the prefix "PASTEE_". Example: PASTEE_PAGE_SIZE=50.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL"             default:"http://127.0.0.1:11546"`
	PageSize           int           `envconfig:"PAGE_SIZE"            default:"20"`
	HTTPTimeout        time.Duration `envconfig:"HTTP_TIMEOUT"         default:"30s"`
	ThumbnailCacheSize int           `envconfig:"THUMBNAIL_CACHE_SIZE" default:"512"`
	Debug              bool          `envconfig:"DEBUG"                default:"false"`
}

// LoadConfig populates Config from environment variables (prefix PASTEE).
func LoadConfig() (Config, error) {
	var c Config
	return c, envconfig.Process("PASTEE", &c)
}

// DefaultConfig returns the values LoadConfig yields with an empty environment.
func DefaultConfig() Config {
	return Config{
		BaseURL:            "http://127.0.0.1:11546",
		PageSize:           20,
		HTTPTimeout:        30 * time.Second,
		ThumbnailCacheSize: 512,
	}
}
