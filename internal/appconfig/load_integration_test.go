// internal/appconfig/load_integration_test.go
package appconfig

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()
	oldCwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(tempDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldCwd) })
	return tempDir
}

func writeConfig(t *testing.T, root, rel, payload string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoadDefaultPathYAML(t *testing.T) {
	root := chdirTemp(t)
	writeConfig(t, root, "config/config.yaml", "jmeterBinPath: from-yaml\n")
	writeConfig(t, root, "config/config.json", `{"jmeterBinPath": "from-json"}`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.JMeterBin() != "from-yaml" || cfg.ConfigPath != DefaultConfigPath {
		t.Fatalf("expected the YAML default to win, got %+v", cfg)
	}
}

func TestLoadJSONFallback(t *testing.T) {
	root := chdirTemp(t)
	writeConfig(t, root, "config/config.json", `{"jmeterBinPath": "from-json"}`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.JMeterBin() != "from-json" {
		t.Fatalf("expected JSON fallback, got %+v", cfg)
	}
}

func TestLoadPlatformFilePreferred(t *testing.T) {
	var platformFile string
	switch runtime.GOOS {
	case "darwin":
		platformFile = "config/config.mac.yaml"
	case "windows":
		platformFile = "config/config.windows.yaml"
	default:
		t.Skip("no platform-specific config on " + runtime.GOOS)
	}
	root := chdirTemp(t)
	writeConfig(t, root, "config/config.yaml", "jmeterBinPath: generic\n")
	writeConfig(t, root, platformFile, "jmeterBinPath: platform\n")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.JMeterBin() != "platform" {
		t.Fatalf("expected platform config, got %+v", cfg)
	}
}

func TestLoadMalformedDefault(t *testing.T) {
	root := chdirTemp(t)
	writeConfig(t, root, "config/config.yaml", "defaults: [unclosed\n")
	if _, err := Load(""); err == nil || errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a parse error, got %v", err)
	}
}

func TestLoadMissingFileError(t *testing.T) {
	chdirTemp(t)
	_, err := Load("")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error for missing config, got %v", err)
	}
}
