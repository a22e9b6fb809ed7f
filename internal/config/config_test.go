package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "prompt.txt"), "You are an assistant.")
	writeFile(t, filepath.Join(dir, "config.json"), `{
		"basic_config": {
			"server_address": ":8090",
			"system_prompt_path": "prompt.txt",
			"provider": "openai",
			"session_ttl_hours": 24
		},
		"databases": {"sqlite3": {"dsn": "data/app.db"}},
		"providers": {"openai": {"model": "gpt-4.1-mini", "api_key": "k"}}
	}`)

	cfg, err := Load(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BasicConfig.SystemPromptPath != filepath.Join(dir, "prompt.txt") {
		t.Fatalf("prompt path not resolved: %q", cfg.BasicConfig.SystemPromptPath)
	}
	if cfg.Databases["sqlite3"].DSN != filepath.Join(dir, "data/app.db") {
		t.Fatalf("dsn not resolved: %q", cfg.Databases["sqlite3"].DSN)
	}

	prompt, err := LoadSystemPrompt(cfg.BasicConfig.SystemPromptPath)
	if err != nil {
		t.Fatalf("LoadSystemPrompt: %v", err)
	}
	if prompt != "You are an assistant." {
		t.Fatalf("unexpected prompt: %q", prompt)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json"), `{
		"basic_config": {"provider": "claude"},
		"providers": {"openai": {"model": "gpt-4.1-mini"}}
	}`)
	if _, err := Load(filepath.Join(dir, "config.json")); err == nil {
		t.Fatalf("expected error for unconfigured provider")
	}
}

func TestLoadMemoryDSNUntouched(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json"), `{
		"basic_config": {"provider": "openai", "system_prompt_path": "/abs/prompt.txt"},
		"databases": {"sqlite3": {"dsn": ":memory:"}},
		"providers": {"openai": {"model": "gpt-4.1-mini"}}
	}`)
	cfg, err := Load(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Databases["sqlite3"].DSN != ":memory:" {
		t.Fatalf("memory dsn rewritten: %q", cfg.Databases["sqlite3"].DSN)
	}
	if cfg.BasicConfig.SystemPromptPath != "/abs/prompt.txt" {
		t.Fatalf("absolute path rewritten: %q", cfg.BasicConfig.SystemPromptPath)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
