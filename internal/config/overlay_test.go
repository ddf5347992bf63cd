package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nanoclaw/nanoclaw/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadHostConfigWithoutPathReturnsEnvOnly(t *testing.T) {
	c, err := config.LoadHostConfig("")
	require.NoError(t, err)
	require.Equal(t, config.DefaultHostConfig().HostID, c.HostID)
}

func TestLoadHostConfigOverlaysYAMLOnTopOfEnv(t *testing.T) {
	t.Setenv("NANOCLAW_HOST_ID", "env-host")

	path := filepath.Join(t.TempDir(), "host.yaml")
	require.NoError(t, os.WriteFile(path, []byte("container_image: custom:latest\ndry_run: true\n"), 0o644))

	c, err := config.LoadHostConfig(path)
	require.NoError(t, err)
	require.Equal(t, "env-host", c.HostID) // untouched by the overlay
	require.Equal(t, "custom:latest", c.ContainerImage)
	require.True(t, c.DryRun)
}

func TestLoadHostConfigMissingFileReturnsError(t *testing.T) {
	_, err := config.LoadHostConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadDeviceConfigOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device_id: dev-overlay\n"), 0o644))

	c, err := config.LoadDeviceConfig(path)
	require.NoError(t, err)
	require.Equal(t, "dev-overlay", c.DeviceID)
}
