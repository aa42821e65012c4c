package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"

	"github.com/gogpu/compositor"
)

// Duration is a time.Duration written as "1.5s" or "500ms" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the composer configuration. It is read from an optional TOML
// file; command-line flags override it.
type Config struct {
	Width     int      `toml:"width"`
	Height    int      `toml:"height"`
	Framerate int      `toml:"framerate"`
	Interval  Duration `toml:"interval"`
	Image     string   `toml:"image"`
	Video     string   `toml:"video"`
	Loop      bool     `toml:"loop"`
	Timecode  bool     `toml:"timecode"`
	HotReload bool     `toml:"hot_reload"`

	Record RecordConfig `toml:"record"`
}

// RecordConfig configures recordings.
type RecordConfig struct {
	Path     string   `toml:"path"`
	Duration Duration `toml:"duration"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Width:     1920,
		Height:    1080,
		Framerate: 10,
		Interval:  Duration{time.Second},
		Image:     "assets/image.png",
		Video:     "assets/clip.gif",
		Loop:      true,
		HotReload: true,
		Record: RecordConfig{
			Path:     "output.y4m",
			Duration: Duration{5 * time.Second},
		},
	}
}

// LoadConfig reads path over the defaults. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, cfg.Validate()
}

// Validate checks the values the pipeline cannot default.
func (c Config) Validate() error {
	if !c.Resolution().Valid() {
		return fmt.Errorf("config: invalid resolution %s", c.Resolution())
	}
	if c.Framerate <= 0 {
		return fmt.Errorf("config: invalid framerate %d", c.Framerate)
	}
	if c.Interval.Duration <= 0 {
		return fmt.Errorf("config: invalid interval %v", c.Interval)
	}
	return nil
}

// Resolution returns the configured output size.
func (c Config) Resolution() compositor.Resolution {
	return compositor.Resolution{Width: c.Width, Height: c.Height}
}

// sourceFlags holds the flags shared by every command that builds a
// pipeline.
type sourceFlags struct {
	configPath string
	width      int
	height     int
	framerate  int
	interval   time.Duration
	image      string
	video      string
	timecode   bool
}

func (f *sourceFlags) register(fs *pflag.FlagSet) {
	def := DefaultConfig()
	fs.StringVarP(&f.configPath, "config", "c", "", "TOML config file")
	fs.IntVar(&f.width, "width", def.Width, "output width in pixels")
	fs.IntVar(&f.height, "height", def.Height, "output height in pixels")
	fs.IntVar(&f.framerate, "framerate", def.Framerate, "engine frames per second")
	fs.DurationVar(&f.interval, "interval", def.Interval.Duration, "time between scene swaps")
	fs.StringVar(&f.image, "image", def.Image, "still image source (png, jpeg, webp)")
	fs.StringVar(&f.video, "video", def.Video, "video source (gif)")
	fs.BoolVar(&f.timecode, "timecode", def.Timecode, "burn the presentation time into frames")
}

// load reads the config file and applies the flags that were set
// explicitly.
func (f *sourceFlags) load(fs *pflag.FlagSet) (Config, error) {
	cfg, err := LoadConfig(f.configPath)
	if err != nil {
		return cfg, err
	}
	if fs.Changed("width") {
		cfg.Width = f.width
	}
	if fs.Changed("height") {
		cfg.Height = f.height
	}
	if fs.Changed("framerate") {
		cfg.Framerate = f.framerate
	}
	if fs.Changed("interval") {
		cfg.Interval = Duration{f.interval}
	}
	if fs.Changed("image") {
		cfg.Image = f.image
	}
	if fs.Changed("video") {
		cfg.Video = f.video
	}
	if fs.Changed("timecode") {
		cfg.Timecode = f.timecode
	}
	return cfg, cfg.Validate()
}
