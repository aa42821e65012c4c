package compositor

import (
	"testing"
)

func TestFrameImage(t *testing.T) {
	tests := []struct {
		name   string
		frame  Frame
		wantOK bool
	}{
		{"tight", Frame{Width: 3, Height: 2, Pixels: make([]byte, 3*2*4)}, true},
		{"short", Frame{Width: 3, Height: 2, Pixels: make([]byte, 5)}, false},
		{"gpu", Frame{Width: 3, Height: 2, Texture: &Texture{Width: 3, Height: 2}}, false},
		{"zero", Frame{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, ok := tt.frame.Image()
			if ok != tt.wantOK {
				t.Fatalf("Image() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if img.Bounds().Dx() != tt.frame.Width || img.Bounds().Dy() != tt.frame.Height {
				t.Errorf("bounds = %v", img.Bounds())
			}
			// The image aliases the frame's pixels.
			img.Pix[0] = 42
			if tt.frame.Pixels[0] != 42 {
				t.Error("Image() copied the pixel buffer")
			}
		})
	}
}

func TestFrameKind(t *testing.T) {
	if !(Frame{}).IsZero() {
		t.Error("zero Frame should report IsZero")
	}
	cpu := Frame{Output: "raw_output", Seq: 1, Pixels: []byte{}}
	if cpu.IsZero() || cpu.OnGPU() {
		t.Errorf("cpu frame: IsZero=%v OnGPU=%v", cpu.IsZero(), cpu.OnGPU())
	}
	gpu := Frame{Output: "raw_output", Seq: 2, Texture: &Texture{}}
	if !gpu.OnGPU() {
		t.Error("texture frame should report OnGPU")
	}
}

func TestFrameEvents(t *testing.T) {
	f := Frame{Output: "raw_output", Seq: 3}
	ev := Data(f)
	if ev.EOS || ev.Frame.Seq != 3 {
		t.Errorf("Data() = %+v", ev)
	}
	if eos := EndOfStream(); !eos.EOS || !eos.Frame.IsZero() {
		t.Errorf("EndOfStream() = %+v", eos)
	}
}

func TestResolution(t *testing.T) {
	tests := []struct {
		res   Resolution
		valid bool
		str   string
	}{
		{Resolution{1920, 1080}, true, "1920x1080"},
		{Resolution{0, 1080}, false, "0x1080"},
		{Resolution{1920, 0}, false, "1920x0"},
		{Resolution{-1, 5}, false, "-1x5"},
	}
	for _, tt := range tests {
		if got := tt.res.Valid(); got != tt.valid {
			t.Errorf("%v.Valid() = %v, want %v", tt.res, got, tt.valid)
		}
		if got := tt.res.String(); got != tt.str {
			t.Errorf("String() = %q, want %q", got, tt.str)
		}
	}
}

func TestOutputKindString(t *testing.T) {
	tests := []struct {
		kind OutputKind
		want string
	}{
		{OutputRaw, "raw"},
		{OutputFile, "file"},
		{OutputKind(9), "OutputKind(9)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("OutputKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
