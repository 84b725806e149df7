package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoad_Defaults(t *testing.T) {
	// Run from an empty directory so no honeynet.yaml is picked up
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ".", cfg.Workdir)
	assert.Equal(t, "https://github.com/cowrie/cowrie.git", cfg.Honeypot.RepoURL)
	assert.Equal(t, "cowrie", cfg.Honeypot.SourceDir)
	assert.Equal(t, "cowrie-env", cfg.Honeypot.EnvDir)
	assert.Equal(t, "python3", cfg.Honeypot.Python)
	assert.Equal(t, "cowrie/requirements.txt", cfg.Honeypot.Requirements)
	assert.Equal(t, "cowrie/etc/cowrie.cfg", cfg.Honeypot.ConfigFile)
	assert.Equal(t, "Honeypot-Server", cfg.Honeypot.Hostname)
	assert.Equal(t, "cowrie/var/log/cowrie/cowrie.json", cfg.Honeypot.EventLog)

	assert.Equal(t, "honeynet_automation.log", cfg.Output.RunLog)
	assert.Equal(t, "honeynet_logs.json", cfg.Output.CollectedLogs)

	assert.True(t, cfg.Remote.Enabled)
	assert.Equal(t, "127.0.0.1", cfg.Remote.Host)
	assert.Equal(t, 22, cfg.Remote.Port)
	assert.Equal(t, "test_user", cfg.Remote.Username)
	assert.Equal(t, "test_password", cfg.Remote.Password)
	assert.Equal(t, "ls -la", cfg.Remote.Command)
	assert.Zero(t, cfg.Remote.Timeout)

	assert.False(t, cfg.Forward.OpenSearch.Enabled)
	assert.Equal(t, "cowrie-events", cfg.Forward.OpenSearch.Index)
	assert.Empty(t, cfg.Metrics.Textfile)
	assert.False(t, cfg.Notify.NATS.Enabled)
	assert.Equal(t, "honeynet.pipeline.completed", cfg.Notify.NATS.Subject)
	assert.Equal(t, 5*time.Second, cfg.Notify.NATS.Timeout)
}

func TestDefault_MatchesLoad(t *testing.T) {
	chdir(t, t.TempDir())

	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, loaded, Default())
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "honeynet.yaml")

	configContent := `
workdir: /srv/honeynet
honeypot:
  hostname: web-01
  event_log: var/cowrie.json
remote:
  host: 10.0.0.5
  port: 2222
  command: uptime
  timeout: 30s
forward:
  opensearch:
    enabled: true
    index: sensor-events
metrics:
  textfile: /var/lib/node_exporter/honeynet.prom
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "/srv/honeynet", cfg.Workdir)
	assert.Equal(t, "web-01", cfg.Honeypot.Hostname)
	assert.Equal(t, "var/cowrie.json", cfg.Honeypot.EventLog)
	assert.Equal(t, "10.0.0.5", cfg.Remote.Host)
	assert.Equal(t, 2222, cfg.Remote.Port)
	assert.Equal(t, "uptime", cfg.Remote.Command)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.True(t, cfg.Forward.OpenSearch.Enabled)
	assert.Equal(t, "sensor-events", cfg.Forward.OpenSearch.Index)
	assert.Equal(t, "/var/lib/node_exporter/honeynet.prom", cfg.Metrics.Textfile)

	// Untouched keys keep their defaults
	assert.Equal(t, "cowrie", cfg.Honeypot.SourceDir)
	assert.Equal(t, "test_user", cfg.Remote.Username)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "honeynet.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("remote: [unclosed"), 0644))

	_, err := Load(configPath)
	require.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HONEYNET_REMOTE_HOST", "192.0.2.10")
	t.Setenv("HONEYNET_REMOTE_PASSWORD", "from-env")
	t.Setenv("HONEYNET_HONEYPOT_HOSTNAME", "edge-sensor")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "192.0.2.10", cfg.Remote.Host)
	assert.Equal(t, "from-env", cfg.Remote.Password)
	assert.Equal(t, "edge-sensor", cfg.Honeypot.Hostname)
}

func TestPath(t *testing.T) {
	cfg := Default()
	cfg.Workdir = "/opt/honeynet"

	assert.Equal(t, "/opt/honeynet/cowrie/etc/cowrie.cfg", cfg.Path("cowrie/etc/cowrie.cfg"))
	assert.Equal(t, "/etc/other.cfg", cfg.Path("/etc/other.cfg"))
	assert.Equal(t, "", cfg.Path(""))
}

func TestYAML_RedactsSecrets(t *testing.T) {
	cfg := Default()

	out, err := cfg.YAML()
	require.NoError(t, err)

	assert.NotContains(t, string(out), "test_password")
	assert.Contains(t, string(out), "********")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Contains(t, decoded, "honeypot")

	// The original is not modified
	assert.Equal(t, "test_password", cfg.Remote.Password)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup, like testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
