package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix namespaces every variable, e.g. APIM_POLICY_DB_URL.
const envPrefix = "APIM"

// DefaultTokenPath is the projected service-account token mounted into every pod.
const DefaultTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"

// Config captures runtime configuration sourced from environment variables.
// It is built once at startup and handed to every component that needs it.
type Config struct {
	Environment string `envconfig:"ENV" default:"development"`
	HTTPPort    string `envconfig:"HTTP_PORT" default:"8000"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	LogDir      string `envconfig:"LOG_DIR" default:"data/logs"`

	// Namespace holds the NGINX ingress Policy resources.
	Namespace      string `envconfig:"NAMESPACE" default:"nginx-ingress"`
	KubeAPIServer  string `envconfig:"KUBE_API_SERVER"`
	KubeTokenPath  string `envconfig:"KUBE_TOKEN_PATH" default:"/var/run/secrets/kubernetes.io/serviceaccount/token"`
	KubeConfigPath string `envconfig:"KUBECONFIG_PATH"`
	KubeInsecure   bool   `envconfig:"KUBE_INSECURE" default:"false"`

	// PolicyDBURL is the base URL of the external ipac policy store.
	PolicyDBURL    string        `envconfig:"POLICY_DB_URL" required:"true"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	RetryMax       uint64        `envconfig:"RETRY_MAX" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"RETRY_BASE_DELAY" default:"200ms"`

	// DatabasePath is the local sqlite journal of dual-write incidents.
	DatabasePath      string   `envconfig:"DB_PATH" default:"data/apim.db"`
	ReconcileSchedule string   `envconfig:"RECONCILE_SCHEDULE" default:"@every 5m"`
	NotifyURLs        []string `envconfig:"NOTIFY_URLS"`
}

// IsDevelopment reports whether the service runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Load reads env vars, applies defaults and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

// Validate checks the values Load cannot default.
func (c Config) Validate() error {
	u, err := url.Parse(c.PolicyDBURL)
	if err != nil {
		return fmt.Errorf("invalid policy db url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid policy db url %q: must be an absolute http(s) URL", c.PolicyDBURL)
	}
	if c.Namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}
