package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGlobalConfig(t *testing.T, body string) {
	t.Helper()
	ResetGlobalConfigCache()
	t.Cleanup(ResetGlobalConfigCache)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	if body == "" {
		return
	}

	configDir := filepath.Join(tmpDir, GlobalConfigDir)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, GlobalConfigFile), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := GlobalConfigPath(), "/custom/config/paperrank/config.yml"; got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	if got, want := GlobalConfigPath(), filepath.Join(home, ".config", "paperrank", "config.yml"); got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}
}

func TestLoadGlobalConfig_NotFound(t *testing.T) {
	writeGlobalConfig(t, "")

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	if *cfg != (GlobalConfig{}) {
		t.Errorf("LoadGlobalConfig() = %+v, want empty", cfg)
	}
}

func TestLoadGlobalConfig_Valid(t *testing.T) {
	writeGlobalConfig(t, `
default_root: ~/library
openai_api_key: sk-test
redis_password: hunter2
s3_access_key_id: AKIA
s3_secret_access_key: secret
`)

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}

	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, "library"); cfg.DefaultRoot != want {
		t.Errorf("DefaultRoot = %q, want %q", cfg.DefaultRoot, want)
	}
	if cfg.OpenAIAPIKey != "sk-test" {
		t.Errorf("OpenAIAPIKey = %q, want sk-test", cfg.OpenAIAPIKey)
	}
	if cfg.S3SecretAccessKey != "secret" {
		t.Errorf("S3SecretAccessKey = %q, want secret", cfg.S3SecretAccessKey)
	}
}

func TestLoadGlobalConfig_Invalid(t *testing.T) {
	writeGlobalConfig(t, "default_root: [")

	if _, err := LoadGlobalConfig(); err == nil {
		t.Error("LoadGlobalConfig() should return error for invalid YAML")
	}
}

func TestGlobalConfigCache(t *testing.T) {
	writeGlobalConfig(t, "openai_api_key: first\n")

	first, err := LoadGlobalConfig()
	if err != nil {
		t.Fatal(err)
	}

	// Rewriting the file has no effect until the cache is reset.
	path := GlobalConfigPath()
	if err := os.WriteFile(path, []byte("openai_api_key: second\n"), 0644); err != nil {
		t.Fatal(err)
	}
	second, _ := LoadGlobalConfig()
	if second != first {
		t.Error("LoadGlobalConfig() did not return cached config")
	}

	ResetGlobalConfigCache()
	third, _ := LoadGlobalConfig()
	if third.OpenAIAPIKey != "second" {
		t.Errorf("OpenAIAPIKey after reset = %q, want second", third.OpenAIAPIKey)
	}
}

func TestApplyGlobal(t *testing.T) {
	g := &GlobalConfig{
		OpenAIAPIKey:      "global-key",
		RedisPassword:     "global-pass",
		S3AccessKeyID:     "global-id",
		S3SecretAccessKey: "global-secret",
	}

	cfg := Default()
	cfg.Embedding.APIKey = "repo-key"
	cfg.ApplyGlobal(g)

	if cfg.Embedding.APIKey != "repo-key" {
		t.Errorf("APIKey = %q, repository value should win", cfg.Embedding.APIKey)
	}
	if cfg.Cache.RedisPassword != "global-pass" {
		t.Errorf("RedisPassword = %q, want global-pass", cfg.Cache.RedisPassword)
	}
	if cfg.Artifacts.S3.AccessKeyID != "global-id" || cfg.Artifacts.S3.SecretAccessKey != "global-secret" {
		t.Errorf("S3 credentials = %+v", cfg.Artifacts.S3)
	}

	cfg.ApplyGlobal(nil)
}

func TestValidateDefaultRoot(t *testing.T) {
	writeGlobalConfig(t, "")
	if _, err := ValidateDefaultRoot(); !errors.Is(err, ErrDefaultRootNotConfigured) {
		t.Errorf("ValidateDefaultRoot() error = %v, want ErrDefaultRootNotConfigured", err)
	}

	missing := filepath.Join(t.TempDir(), "nowhere")
	writeGlobalConfig(t, "default_root: "+missing+"\n")
	if _, err := ValidateDefaultRoot(); !errors.Is(err, ErrDefaultRootNotExist) {
		t.Errorf("ValidateDefaultRoot() error = %v, want ErrDefaultRootNotExist", err)
	}

	root := t.TempDir()
	if err := os.Mkdir(PaperrankPath(root), 0755); err != nil {
		t.Fatal(err)
	}
	writeGlobalConfig(t, "default_root: "+root+"\n")
	got, err := ValidateDefaultRoot()
	if err != nil {
		t.Fatalf("ValidateDefaultRoot() error = %v", err)
	}
	if got != root {
		t.Errorf("ValidateDefaultRoot() = %q, want %q", got, root)
	}
}

func TestHelpfulConfigMessage(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	msg := HelpfulConfigMessage()
	for _, want := range []string{"/cfg/paperrank/config.yml", "default_root", "PAPERRANK_ROOT"} {
		if !strings.Contains(msg, want) {
			t.Errorf("HelpfulConfigMessage() missing %q", want)
		}
	}
}
