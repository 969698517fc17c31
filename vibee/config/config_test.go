package config

import (
	"os"
	"testing"
)

func writeTempINI(t *testing.T, content string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "test_config_*.ini")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("write config: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoadINI(t *testing.T) {
	path := writeTempINI(t, `APIBase = https://catalog.test/api
DefaultLanguage = telugu
SectionTTLMinutes = 30
LogSource = true
`)

	conf, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if got := conf.GetString("APIBase"); got != "https://catalog.test/api" {
		t.Errorf("expected APIBase=https://catalog.test/api, got %s", got)
	}
	if got := conf.GetString("DefaultLanguage"); got != "telugu" {
		t.Errorf("expected DefaultLanguage=telugu, got %s", got)
	}
	if got := conf.GetInt("SectionTTLMinutes"); got != 30 {
		t.Errorf("expected SectionTTLMinutes=30, got %d", got)
	}
	if !conf.GetBool("LogSource") {
		t.Error("expected LogSource=true")
	}
}

func TestDefaults(t *testing.T) {
	conf, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if got := conf.GetInt("SectionTTLMinutes"); got != 120 {
		t.Errorf("expected default SectionTTLMinutes=120, got %d", got)
	}
	if got := conf.GetInt("SearchTTLMinutes"); got != 60 {
		t.Errorf("expected default SearchTTLMinutes=60, got %d", got)
	}
	if got := conf.GetInt("ResolveBatchSize"); got != 5 {
		t.Errorf("expected default ResolveBatchSize=5, got %d", got)
	}
	if got := conf.GetString("LogLevel"); got != "info" {
		t.Errorf("expected default LogLevel=info, got %s", got)
	}
	if got := conf.GetInt("WorkerPoolSize"); got != 4 {
		t.Errorf("expected default WorkerPoolSize=4, got %d", got)
	}
}

func TestFileOverridesDefault(t *testing.T) {
	path := writeTempINI(t, `SearchTTLMinutes = 5`)

	conf, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if got := conf.GetInt("SearchTTLMinutes"); got != 5 {
		t.Errorf("expected file value 5 to override default, got %d", got)
	}
	// Untouched keys keep their defaults.
	if got := conf.GetInt("SectionTTLMinutes"); got != 120 {
		t.Errorf("expected default SectionTTLMinutes=120, got %d", got)
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.ini"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
