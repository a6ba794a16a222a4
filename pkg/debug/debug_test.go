package debug

import (
	"log/slog"
	"testing"
)

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]bool
	}{
		{"empty", "", map[string]bool{}},
		{"single", "auth", map[string]bool{"auth": true}},
		{"multiple", "auth,keystore", map[string]bool{"auth": true, "keystore": true}},
		{"all", "all", map[string]bool{"all": true}},
		{"with spaces", " auth , keystore ", map[string]bool{"auth": true, "keystore": true}},
		{"uppercase normalized", "AUTH,Keystore", map[string]bool{"auth": true, "keystore": true}},
		{"empty segments", "auth,,keystore", map[string]bool{"auth": true, "keystore": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCategories(tt.input)
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("got[%q] = %v, want %v", k, got[k], v)
				}
			}
			if len(got) != len(tt.want) {
				t.Errorf("len(got) = %d, want %d", len(got), len(tt.want))
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("auth,config")

	if !Enabled("auth") {
		t.Error("auth should be enabled")
	}
	if !Enabled("config") {
		t.Error("config should be enabled")
	}
	if Enabled("keystore") {
		t.Error("keystore should not be enabled")
	}
}

func TestEnabled_All(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("all")

	if !Enabled("auth") {
		t.Error("auth should be enabled via 'all'")
	}
	if !Enabled("anything") {
		t.Error("anything should be enabled via 'all'")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCategories_Sorted(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("transport,auth")

	got := Categories()
	if len(got) != 2 || got[0] != "auth" || got[1] != "transport" {
		t.Errorf("Categories() = %v, want [auth transport]", got)
	}
}

func TestInit_EnvOverridesConfig(t *testing.T) {
	orig := categories
	origLogger := slog.Default()
	defer func() {
		categories = orig
		slog.SetDefault(origLogger)
	}()

	t.Setenv("KEYGATE_DEBUG", "keystore")
	t.Setenv("KEYGATE_LOG_LEVEL", "")

	Init("auth", "debug", "json")

	if Enabled("auth") {
		t.Error("auth should not be enabled; env should override config")
	}
	if !Enabled("keystore") {
		t.Error("keystore should be enabled from env")
	}
	if !slog.Default().Enabled(nil, slog.LevelDebug) {
		t.Error("debug level should be enabled from config")
	}
}
