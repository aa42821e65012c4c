package cli

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gogpu/gg"

	"github.com/gogpu/compositor"
)

func writeAssets(t *testing.T) (imgPath, gifPath string) {
	t.Helper()
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := range 8 {
		for x := range 8 {
			img.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	imgPath = filepath.Join(dir, "image.png")
	gifPath = filepath.Join(dir, "clip.png") // stills play as one-frame videos
	for _, p := range []string{imgPath, gifPath} {
		f, err := os.Create(p)
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}
	return imgPath, gifPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	orig := compositor.Logger()
	t.Cleanup(func() {
		compositor.SetLogger(orig)
		gg.SetLogger(nil)
	})

	var buf bytes.Buffer
	root := New(&buf, log.InfoLevel).RootCommand()
	root.SetArgs(args)
	root.SetOut(&buf)
	root.SetErr(&buf)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{"info at info level", log.InfoLevel, func(l *log.Logger) { l.Info("registered") }, true},
		{"debug at info level", log.InfoLevel, func(l *log.Logger) { l.Debug("swapped") }, false},
		{"debug at debug level", log.DebugLevel, func(l *log.Logger) { l.Debug("swapped") }, true},
		{"warn at info level", log.InfoLevel, func(l *log.Logger) { l.Warn("dropped") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.wantLog {
				t.Errorf("logged = %v, want %v", got, tt.wantLog)
			}
		})
	}
}

func TestInstallRoutesLibraryLogs(t *testing.T) {
	orig := compositor.Logger()
	t.Cleanup(func() {
		compositor.SetLogger(orig)
		gg.SetLogger(nil)
	})

	var buf bytes.Buffer
	install(newLogger(&buf, log.InfoLevel))
	compositor.Logger().Info("output registered", "output", "raw_output")
	if !strings.Contains(buf.String(), "output registered") || !strings.Contains(buf.String(), "raw_output") {
		t.Errorf("library log not routed, got %q", buf.String())
	}
}

func TestLoggerFromContext(t *testing.T) {
	if loggerFromContext(context.Background()) != log.Default() {
		t.Error("empty context should yield log.Default()")
	}
	l := newLogger(&bytes.Buffer{}, log.InfoLevel)
	if loggerFromContext(withLogger(context.Background(), l)) != l {
		t.Error("attached logger not returned")
	}
}

func TestRootCommand(t *testing.T) {
	root := New(&bytes.Buffer{}, log.InfoLevel).RootCommand()
	want := map[string]bool{"preview": false, "record": false, "snapshot": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q missing", name)
		}
	}
	if root.PersistentFlags().Lookup("verbose") == nil {
		t.Error("--verbose flag missing")
	}
}

func TestRecordCommand(t *testing.T) {
	img, vid := writeAssets(t)
	out := filepath.Join(t.TempDir(), "out.y4m")

	logs, err := execute(t, "record",
		"--image", img, "--video", vid,
		"--width", "16", "--height", "8",
		"--interval", "50ms", "--duration", "200ms",
		"--output", out)
	if err != nil {
		t.Fatalf("record error = %v\n%s", err, logs)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("YUV4MPEG2 W16 H8 F10:1")) {
		t.Errorf("recording header = %q", data[:min(len(data), 40)])
	}
	if !strings.Contains(logs, "Recorded") {
		t.Errorf("missing completion log, got %q", logs)
	}
}

func TestSnapshotCommand(t *testing.T) {
	img, vid := writeAssets(t)
	out := filepath.Join(t.TempDir(), "snap.png")

	logs, err := execute(t, "snapshot",
		"--image", img, "--video", vid,
		"--width", "8", "--height", "8",
		"--framerate", "50",
		"--scene", "0",
		"--output", out)
	if err != nil {
		t.Fatalf("snapshot error = %v\n%s", err, logs)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if r, _, _, a := got.At(4, 4).RGBA(); r < 0xf000 || a < 0xf000 {
		t.Errorf("snapshot pixel = %v, want red", got.At(4, 4))
	}
}

func TestSnapshotCommandErrors(t *testing.T) {
	img, vid := writeAssets(t)
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"bad extension", []string{"--output", filepath.Join(dir, "snap.gif")}},
		{"bad scene", []string{"--scene", "5", "--output", filepath.Join(dir, "snap.png")}},
		{"missing image", []string{"--image", filepath.Join(dir, "none.png"), "--output", filepath.Join(dir, "snap.png")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"snapshot", "--image", img, "--video", vid, "--width", "4", "--height", "4"}, tt.args...)
			if _, err := execute(t, args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestPreviewHeadless(t *testing.T) {
	img, vid := writeAssets(t)
	orig := compositor.Logger()
	t.Cleanup(func() {
		compositor.SetLogger(orig)
		gg.SetLogger(nil)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	root := New(&bytes.Buffer{}, log.InfoLevel).RootCommand()
	root.SetArgs([]string{"preview", "--headless",
		"--image", img, "--video", vid, "--width", "4", "--height", "4"})
	err := root.ExecuteContext(ctx)
	if err == nil || ctx.Err() == nil {
		t.Errorf("preview returned %v before the context ended", err)
	}
}
