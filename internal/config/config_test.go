package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"API_ADDR", "TTS_STORE_BACKEND", "REDIS_URL", "MEILI_URL", "TTS_SPEECH_TIMEOUT_SECONDS", "TTS_EXPORT_USE_SSL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Addr != ":8787" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.StoreBackend != BackendPostgres {
		t.Fatalf("StoreBackend = %q", cfg.StoreBackend)
	}
	if cfg.RedisURL != "" || cfg.MeiliURL != "" {
		t.Fatal("optional services should be disabled by default")
	}
	if cfg.SpeechTimeout != 30*time.Second {
		t.Fatalf("SpeechTimeout = %v", cfg.SpeechTimeout)
	}
	if cfg.ExportUseSSL {
		t.Fatal("ExportUseSSL should default to false")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TTS_STORE_BACKEND", "Memory")
	t.Setenv("TTS_SPEECH_TIMEOUT_SECONDS", "5")
	t.Setenv("TTS_EXPORT_USE_SSL", "true")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")

	cfg := Load()
	if cfg.StoreBackend != BackendMemory {
		t.Fatalf("StoreBackend = %q", cfg.StoreBackend)
	}
	if cfg.SpeechTimeout != 5*time.Second {
		t.Fatalf("SpeechTimeout = %v", cfg.SpeechTimeout)
	}
	if !cfg.ExportUseSSL {
		t.Fatal("ExportUseSSL should be true")
	}
	if cfg.RedisURL != "redis://cache:6379/1" {
		t.Fatalf("RedisURL = %q", cfg.RedisURL)
	}
}

func TestGetenvFallbacksOnGarbage(t *testing.T) {
	t.Setenv("TTS_TEST_INT", "abc")
	t.Setenv("TTS_TEST_BOOL", "maybe")
	if got := getenvInt("TTS_TEST_INT", 7); got != 7 {
		t.Fatalf("getenvInt = %d", got)
	}
	if got := getenvBool("TTS_TEST_BOOL", true); !got {
		t.Fatal("getenvBool should fall back")
	}
}
