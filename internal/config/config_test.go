package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GCP_PROJECT", "test-project")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StateBackend != "firestore" {
		t.Errorf("state backend = %q", cfg.StateBackend)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("max retries = %d", cfg.MaxRetries)
	}
	if cfg.CallTimeout != 120*time.Second {
		t.Errorf("call timeout = %v", cfg.CallTimeout)
	}
	if cfg.MaxUploadBytes != 50<<20 {
		t.Errorf("max upload bytes = %d", cfg.MaxUploadBytes)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "firestore without project", env: map[string]string{
			"STATE_BACKEND": "firestore",
			"CLASSIFIER":    "ollama",
		}},
		{name: "vertex without project", env: map[string]string{
			"STATE_BACKEND": "memory",
			"CLASSIFIER":    "vertex",
		}},
		{name: "unknown classifier", env: map[string]string{
			"STATE_BACKEND": "memory",
			"CLASSIFIER":    "regex",
			"GCP_PROJECT":   "p",
		}},
		{name: "bad dpi", env: map[string]string{
			"STATE_BACKEND": "memory",
			"CLASSIFIER":    "ollama",
			"RASTER_DPI":    "-10",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STATE_BACKEND", "memory")
	t.Setenv("CLASSIFIER", "ollama")
	t.Setenv("QUEUE_MAX_RETRIES", "7")
	t.Setenv("CALL_TIMEOUT", "30s")
	t.Setenv("OCR_LANGUAGE", "deu")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxRetries != 7 {
		t.Errorf("max retries = %d, want 7", cfg.MaxRetries)
	}
	if cfg.CallTimeout != 30*time.Second {
		t.Errorf("call timeout = %v, want 30s", cfg.CallTimeout)
	}
	if len(cfg.OCRLanguages) != 1 || cfg.OCRLanguages[0] != "deu" {
		t.Errorf("ocr languages = %v", cfg.OCRLanguages)
	}
}
