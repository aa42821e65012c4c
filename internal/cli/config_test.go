package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "composer.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig(\"\") error = %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("LoadConfig(\"\") = %+v, want defaults", cfg)
	}
	if cfg.Resolution().String() != "1920x1080" || cfg.Interval.Duration != time.Second {
		t.Errorf("defaults = %v %v", cfg.Resolution(), cfg.Interval)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
width = 640
height = 360
interval = "250ms"
image = "a.png"
timecode = true

[record]
path = "clip.y4m"
duration = "3s"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Width != 640 || cfg.Height != 360 || cfg.Image != "a.png" || !cfg.Timecode {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Interval.Duration != 250*time.Millisecond {
		t.Errorf("interval = %v, want 250ms", cfg.Interval)
	}
	if cfg.Record.Path != "clip.y4m" || cfg.Record.Duration.Duration != 3*time.Second {
		t.Errorf("record = %+v", cfg.Record)
	}
	// Unset keys keep their defaults.
	if cfg.Framerate != 10 || cfg.Video != DefaultConfig().Video {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"unknown key", `colour = "red"`, "unknown key"},
		{"bad duration", `interval = "soon"`, "soon"},
		{"zero width", `width = 0`, "invalid resolution"},
		{"zero framerate", `framerate = 0`, "invalid framerate"},
		{"syntax", `width = `, "composer.toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadConfig() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("LoadConfig(missing) should fail")
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	path := writeConfig(t, "width = 640\nheight = 360\nframerate = 25\n")
	var f sourceFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.register(fs)
	if err := fs.Parse([]string{"--config", path, "--width", "800", "--interval", "2s"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := f.load(fs)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Width != 800 || cfg.Height != 360 || cfg.Framerate != 25 || cfg.Interval.Duration != 2*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil || d.Duration != 90*time.Second {
		t.Errorf("UnmarshalText() = %v, %v", d, err)
	}
	text, err := d.MarshalText()
	if err != nil || string(text) != "1m30s" {
		t.Errorf("MarshalText() = %q, %v", text, err)
	}
}
