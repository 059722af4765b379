package cfg

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Flaque/filet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := Default()

	assert.Equal(t, ":80", c.ProxyAddr)
	assert.Equal(t, ":8080", c.ManagementAddr)
	assert.Equal(t, "localhost", c.Domain)
	assert.Equal(t, "", c.DockerHost)
	assert.Equal(t, "", c.EventsFile)
	assert.Equal(t, 30*time.Second, c.DaemonWait)
	assert.Equal(t, 10*time.Second, c.DialTimeout)
	assert.Equal(t, 60*time.Second, c.ResponseHeaderTimeout)
	assert.Equal(t, 100*time.Millisecond, c.FlushInterval)
	assert.Equal(t, FormatText, c.Logging.Format)
	assert.Equal(t, "info", c.Logging.Level)
	assert.NoError(t, c.Validate())
}

func TestLoadConfig(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "test-config.yml"))
	require.NoError(t, err)

	assert.Equal(t, ":8000", c.ProxyAddr, "should read proxyAddr")
	assert.Equal(t, "apps.internal", c.Domain, "should read domain")
	assert.Equal(t, 3*time.Second, c.DialTimeout, "should parse durations")
	assert.Equal(t, FormatJSON, c.Logging.Format)
	assert.Equal(t, "localhost:514", c.Logging.SyslogAddr)

	// untouched fields keep their defaults
	assert.Equal(t, ":8080", c.ManagementAddr)
	assert.Equal(t, 100*time.Millisecond, c.FlushInterval)
	assert.Equal(t, "info", c.Logging.Level)
}

func TestLoadInvalid(t *testing.T) {
	defer filet.CleanUp(t)
	dir := filet.TmpDir(t, "")

	for name, content := range map[string]string{
		"bad yaml":      "proxyAddr: [",
		"bad duration":  "dialTimeout: soon",
		"bad format":    "logging:\n  format: xml",
		"empty address": "proxyAddr: \"\"",
	} {
		t.Run(name, func(t *testing.T) {
			filename := filepath.Join(dir, "config.yml")
			filet.File(t, filename, content)

			_, err := Load(filename)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "does-not-exist.yml"))
	assert.Error(t, err)
}
