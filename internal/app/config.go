package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/once-storefront/internal/catalog"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr     string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	ShareURL string `default:"https://klinq.com/" usage:"Storefront link used in share text" flag:"share-url"`
	Catalog  CatalogConfig
	Health   HealthConfig
	Graceful GracefulConfig
}

// CatalogConfig points the client at the one product the storefront shows.
type CatalogConfig struct {
	BaseURL string        `default:"https://klinq.com/" usage:"Catalog API base URL" flag:"catalog-base-url"`
	Path    string        `default:"rest/V1/productdetails/6701/253620" usage:"Product details path" flag:"catalog-path"`
	Lang    string        `default:"en" usage:"Catalog language code"`
	Store   string        `default:"KWD" usage:"Catalog store code"`
	Timeout time.Duration `default:"10s" usage:"Catalog request timeout"`
	// RequireProduct keeps /readyz failing until a product has been loaded.
	RequireProduct bool `default:"false" usage:"Report not ready until the product is loaded" flag:"require-product"`
}

// Target returns the catalog request target.
func (c CatalogConfig) Target() catalog.Target {
	return catalog.Target{
		BaseURL: c.BaseURL,
		Path:    c.Path,
		Lang:    c.Lang,
		Store:   c.Store,
	}
}

// HealthConfig controls background health checks.
type HealthConfig struct {
	Interval time.Duration `default:"5s" usage:"Health check interval" flag:"health-interval"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from defaults, YAML config files and
// environment variables, then applies platform defaults and validates the
// catalog target.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if _, err := cfg.Catalog.Target().URL(); err != nil {
		return nil, errors.Wrap(err, "invalid catalog target")
	}
	return &cfg, nil
}

// applyPlatformDefaults honours the PORT variable set by hosting platforms
// when no explicit address was configured.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
