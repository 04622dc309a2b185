package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ConfidenceLevel != 0.90 || c.BalanceTest != "welch" || c.FigureFormat != "png" {
		t.Fatalf("defaults = %+v", c)
	}
	if c.FigureWidthIn != 6.4 || c.FigureHeightIn != 4.8 || c.OutputDir != "results" {
		t.Fatalf("defaults = %+v", c)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("confidence_level: 0.95\nworkers: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SURVEYATE_WORKERS", "7")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ConfidenceLevel != 0.95 {
		t.Fatalf("confidence_level = %v, want 0.95 from file", c.ConfidenceLevel)
	}
	if c.Workers != 7 {
		t.Fatalf("workers = %d, want 7 from env", c.Workers)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("balance_test: mann-whitney\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected invalid balance_test to fail")
	}
}

func TestSetSaveRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for k, v := range map[string]string{
		"confidence_level": "0.95",
		"balance_test":     "student",
		"figure_format":    "SVG",
		"workers":          "2",
	} {
		if err := c.Set(k, v); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}
	for _, bad := range [][2]string{
		{"confidence_level", "1.5"},
		{"figure_format", "gif"},
		{"workers", "-1"},
		{"api_key", "x"},
	} {
		if err := c.Set(bad[0], bad[1]); err == nil {
			t.Fatalf("Set(%s=%s) should fail", bad[0], bad[1])
		}
	}
	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := Save(c, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load saved: %v", err)
	}
	for _, k := range Keys {
		a, _ := c.Get(k)
		b, _ := back.Get(k)
		if a != b {
			t.Fatalf("%s = %q after reload, want %q", k, b, a)
		}
	}
	if back.FigureFormat != "svg" || back.BalanceTest != "student" {
		t.Fatalf("reloaded = %+v", back)
	}
}
