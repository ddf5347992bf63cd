package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadHostConfig builds a HostConfig from the environment, then applies
// a YAML file overlay if path is non-empty. Fields present in the YAML
// document override the environment-derived value; fields absent from
// the document are left untouched.
func LoadHostConfig(path string) (HostConfig, error) {
	c := HostConfigFromEnv()
	if path == "" {
		return c, nil
	}
	if err := overlayYAML(path, &c); err != nil {
		return HostConfig{}, err
	}
	return c, nil
}

// LoadDeviceConfig builds a DeviceConfig from the environment, then
// applies a YAML file overlay if path is non-empty.
func LoadDeviceConfig(path string) (DeviceConfig, error) {
	c := DeviceConfigFromEnv()
	if path == "" {
		return c, nil
	}
	if err := overlayYAML(path, &c); err != nil {
		return DeviceConfig{}, err
	}
	return c, nil
}

func overlayYAML(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}
