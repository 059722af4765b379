// Package cfg loads the proxy configuration.
package cfg

import (
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config defines the configuration for docker-tra.  See Usage for field
// descriptions.
type Config struct {
	ProxyAddr             string        `yaml:"proxyAddr" default:":80"`
	ManagementAddr        string        `yaml:"managementAddr" default:":8080"`
	Domain                string        `yaml:"domain" default:"localhost"`
	DockerHost            string        `yaml:"dockerHost"`
	EventsFile            string        `yaml:"eventsFile"`
	DaemonWait            time.Duration `yaml:"daemonWait" default:"30s"`
	DialTimeout           time.Duration `yaml:"dialTimeout" default:"10s"`
	ResponseHeaderTimeout time.Duration `yaml:"responseHeaderTimeout" default:"60s"`
	FlushInterval         time.Duration `yaml:"flushInterval" default:"100ms"`
	Logging               LoggingConfig `yaml:"logging"`
}

// LoggingConfig selects the log format and destination.
type LoggingConfig struct {
	Format     string `yaml:"format" default:"text"`
	Level      string `yaml:"level" default:"info"`
	SyslogAddr string `yaml:"syslogAddr"`
}

// Log formats
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatMozlog = "mozlog"
)

// Get a fragment of a usage message that describes the configuration file format
func Usage() string {
	return `
Configuration is in the form of a YAML file with the following fields, all
optional:

	proxyAddr: address of the ingress listener (default ":80")

	managementAddr: address of the management API (default ":8080")

	domain: suffix appended to backend names in management API responses
		(default "localhost")

	dockerHost: Docker daemon address; empty means the DOCKER_HOST environment
		variable or the platform default

	eventsFile: read lifecycle events as JSON lines from this file instead of the
		daemon event stream; "-" means standard input

	daemonWait: how long to wait for the Docker daemon at start-up (default 30s)

	dialTimeout: bound on connecting to a backend (default 10s)

	responseHeaderTimeout: bound on waiting for a backend's response headers
		(default 60s; 0 disables)

	flushInterval: how often streamed responses are flushed (default 100ms)

	logging:
		format: one of text, json, mozlog (default text; ENV=production forces
			mozlog)
		level: a logrus level name (default info)
		syslogAddr: if set, also send logs to this syslog address (udp)
`
}

// Default returns a configuration with every field at its default.
func Default() *Config {
	c := new(Config)
	defaults.SetDefaults(c)
	return c
}

// Load a configuration file.  Fields missing from the file keep their
// defaults.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", filename)
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", filename)
	}
	return c, nil
}

// Validate checks values that have no usable zero.
func (c *Config) Validate() error {
	if c.ProxyAddr == "" {
		return errors.New("proxyAddr must not be empty")
	}
	if c.ManagementAddr == "" {
		return errors.New("managementAddr must not be empty")
	}
	if c.DialTimeout < 0 || c.ResponseHeaderTimeout < 0 || c.FlushInterval < 0 || c.DaemonWait < 0 {
		return errors.New("durations must not be negative")
	}
	switch c.Logging.Format {
	case FormatText, FormatJSON, FormatMozlog:
	default:
		return errors.Errorf("unknown logging format %q", c.Logging.Format)
	}
	return nil
}
