package infra

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "APP_ENV", "POLL_INTERVAL_SECONDS", "FAL_BASE_URL", "SOGNI_SOCKET_URL"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.AppEnv != "development" {
		t.Errorf("AppEnv = %q, want development", cfg.AppEnv)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Errorf("PollInterval = %v, want 3s", cfg.PollInterval)
	}
	if cfg.Fal.BaseURL != "https://queue.fal.run" {
		t.Errorf("Fal.BaseURL = %q", cfg.Fal.BaseURL)
	}
	if cfg.Sogni.SocketURL == "" {
		t.Errorf("Sogni.SocketURL must default to the provider socket endpoint")
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("FAL_API_KEY", "fal-key")
	t.Setenv("FAL_IMAGE_MODELS", "flux/dev, flux/schnell")
	t.Setenv("FAL_VIDEO_MODELS", "veo3")
	t.Setenv("SOGNI_DISABLED", "true")
	t.Setenv("POLL_INTERVAL_SECONDS", "10")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.Fal.APIKey != "fal-key" {
		t.Errorf("Fal.APIKey = %q", cfg.Fal.APIKey)
	}
	if want := []string{"flux/dev", "flux/schnell"}; !reflect.DeepEqual(cfg.Fal.ImageModels, want) {
		t.Errorf("Fal.ImageModels = %v, want %v", cfg.Fal.ImageModels, want)
	}
	if !cfg.Sogni.Disabled {
		t.Errorf("Sogni.Disabled = false, want true")
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
}

func TestSplitModels(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  ", nil},
		{"a", []string{"a"}},
		{"a,b", []string{"a", "b"}},
		{" a , ,b, ", []string{"a", "b"}},
	}
	for _, tc := range cases {
		if got := splitModels(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("splitModels(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestProviderConfigHasModels(t *testing.T) {
	if (ProviderConfig{}).HasModels() {
		t.Errorf("empty config reports models")
	}
	if !(ProviderConfig{VideoModels: []string{"v"}}).HasModels() {
		t.Errorf("video-only config reports no models")
	}
	if !(ProviderConfig{AudioModels: []string{"a"}}).HasModels() {
		t.Errorf("audio-only config reports no models")
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT_SECONDS", "not-a-number")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPReadTimeout != 15*time.Second {
		t.Errorf("HTTPReadTimeout = %v, want fallback 15s", cfg.HTTPReadTimeout)
	}
}
