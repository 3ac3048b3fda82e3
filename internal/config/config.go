package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// MetadataURLEnv is set by the ECS agent in every container of the task
const MetadataURLEnv = "ECS_CONTAINER_METADATA_URI_V4"

var namespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config holds the exporter settings read from the environment
type Config struct {
	MetadataURL string        `env:"ECS_CONTAINER_METADATA_URI_V4" env-description:"Base URL of the ECS Task Metadata endpoint v4"`
	Port        int           `env:"ECS_METRICS_EXPORTER_PORT" env-default:"9546" env-description:"Port the exporter listens on"`
	BindAddress string        `env:"ECS_METRICS_EXPORTER_BIND_ADDRESS" env-default:"" env-description:"Interface the exporter listens on (empty for all)"`
	Namespace   string        `env:"ECS_METRICS_EXPORTER_NAMESPACE" env-default:"" env-description:"Optional prefix added to every metric name"`
	Timeout     time.Duration `env:"ECS_METRICS_EXPORTER_TIMEOUT" env-default:"10s" env-description:"Timeout of each metadata request"`
	Retries     int           `env:"ECS_METRICS_EXPORTER_RETRIES" env-default:"0" env-description:"Extra attempts on metadata server errors"`
}

// Load reads the configuration from the environment. It does not validate it,
// so that command-line flags can still override the values.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings once all sources have been applied
func (c *Config) Validate() error {
	var errs []error

	if c.MetadataURL == "" {
		errs = append(errs, fmt.Errorf("%s is not set", MetadataURLEnv))
	} else if u, err := url.Parse(c.MetadataURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid metadata URL %q: %w", c.MetadataURL, err))
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("metadata URL %q must be an absolute http(s) URL", c.MetadataURL))
	}

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Namespace != "" && !namespacePattern.MatchString(c.Namespace) {
		errs = append(errs, fmt.Errorf("namespace %q is not a valid metric name prefix", c.Namespace))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries must not be negative, got %d", c.Retries))
	}

	return errors.Join(errs...)
}

// ListenAddr returns the host:port the server binds to
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}

// Usage returns a function that runs usageFuncs and then prints the
// supported environment variables to w
func Usage(w io.Writer, header string, usageFuncs ...func()) func() {
	return cleanenv.FUsage(w, &Config{}, &header, usageFuncs...)
}
