package velocity

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
)

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestNewValidates(t *testing.T) {
	if _, err := New(make([]byte, 16), 2, 2, 0, 0, 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := New(make([]byte, 15), 2, 2, 0, 0, 1, 1); err == nil {
		t.Error("expected error for short buffer")
	}
	if _, err := New(nil, 0, 2, 0, 0, 1, 1); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestDecodeUsesPremultipliedScale(t *testing.T) {
	// raw*0.1 - 12.75 spans [-12.75, 12.75] over raw [0, 255]
	im := Uniform(1, 1, 255, 0, Params{UOffset: -12.75, VOffset: -12.75, UScale: 0.1, VScale: 0.1})

	u, v := im.At(0, 0)
	if !approx(u, 12.75, 1e-9) {
		t.Errorf("expected u=12.75, got %f", u)
	}
	if !approx(v, -12.75, 1e-9) {
		t.Errorf("expected v=-12.75, got %f", v)
	}

	su, sv := im.Scales()
	if !approx(su, 25.5, 1e-9) || !approx(sv, 25.5, 1e-9) {
		t.Errorf("expected stored scales 25.5, got %f, %f", su, sv)
	}
}

func TestMaxVelocity(t *testing.T) {
	tests := []struct {
		name       string
		p          Params
		wantU, wantV float64
	}{
		{"symmetric", Params{UOffset: -2, VOffset: -4, UScale: 4.0 / 255, VScale: 8.0 / 255}, 2, 4},
		{"positive only", Params{UOffset: 1, VOffset: 0, UScale: 1.0 / 255, VScale: 3.0 / 255}, 2, 3},
		{"skewed negative", Params{UOffset: -10, VOffset: -1, UScale: 2.0 / 255, VScale: 1.0 / 255}, 10, 1},
	}

	for _, tc := range tests {
		im := Uniform(1, 1, 128, 128, tc.p)
		u, v := im.MaxVelocity()
		if !approx(u, tc.wantU, 1e-9) || !approx(v, tc.wantV, 1e-9) {
			t.Errorf("%s: expected (%g, %g), got (%g, %g)", tc.name, tc.wantU, tc.wantV, u, v)
		}
	}
}

func TestSampleInterpolates(t *testing.T) {
	data := []byte{
		0, 0, 0, 255, 255, 0, 0, 255,
		0, 255, 0, 255, 255, 255, 0, 255,
	}
	im, err := New(data, 2, 2, 0, 0, 1.0/255, 1.0/255)
	if err != nil {
		t.Fatal(err)
	}

	// Texel centres return exact values
	u, v := im.Sample(0.25, 0.25)
	if !approx(u, 0, 1e-9) || !approx(v, 0, 1e-9) {
		t.Errorf("top-left centre: expected (0,0), got (%f,%f)", u, v)
	}
	u, v = im.Sample(0.75, 0.75)
	if !approx(u, 1, 1e-9) || !approx(v, 1, 1e-9) {
		t.Errorf("bottom-right centre: expected (1,1), got (%f,%f)", u, v)
	}

	// Midpoint is the average
	u, v = im.Sample(0.5, 0.5)
	if !approx(u, 0.5, 1e-9) || !approx(v, 0.5, 1e-9) {
		t.Errorf("centre: expected (0.5,0.5), got (%f,%f)", u, v)
	}

	// Clamp to edge
	u, _ = im.Sample(0, 0.25)
	if !approx(u, 0, 1e-9) {
		t.Errorf("left edge: expected u=0, got %f", u)
	}
	u, _ = im.Sample(1, 0.25)
	if !approx(u, 1, 1e-9) {
		t.Errorf("right edge: expected u=1, got %f", u)
	}
}

func TestEncodeDecodeKeepsParams(t *testing.T) {
	p := Params{UOffset: -1.5, VOffset: -0.75, UScale: 3.0 / 255, VScale: 1.5 / 255}
	im, err := Generate(8, 4, p, func(x, y float64) (float64, float64) {
		return x - 0.5, 0.5 - y
	})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, im); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}

	if got.Width() != 8 || got.Height() != 4 {
		t.Fatalf("expected 8x4, got %dx%d", got.Width(), got.Height())
	}
	gp := got.Params()
	if !approx(gp.UOffset, p.UOffset, 1e-12) || !approx(gp.VScale, p.VScale, 1e-12) {
		t.Errorf("params changed: %+v vs %+v", gp, p)
	}
	if !bytes.Equal(got.Pixels(), im.Pixels()) {
		t.Error("pixels changed by encode/decode")
	}
}

func TestDecodeWithoutParams(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	_, err := Decode(buf.Bytes())
	if !errors.Is(err, ErrMissingParams) {
		t.Fatalf("expected ErrMissingParams, got %v", err)
	}

	im, err := DecodeWithParams(bytes.NewReader(buf.Bytes()), Params{UScale: 1, VScale: 1})
	if err != nil {
		t.Fatal(err)
	}
	if im.Width() != 2 {
		t.Errorf("expected width 2, got %d", im.Width())
	}
}

func TestFromImageReadsFirstTwoChannels(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	im, err := FromImage(src, Params{UScale: 1, VScale: 1})
	if err != nil {
		t.Fatal(err)
	}
	px := im.Pixels()
	if px[0] != 10 || px[1] != 20 || px[2] != 0 || px[3] != 255 {
		t.Errorf("unexpected pixel %v", px[:4])
	}
}

func TestResample(t *testing.T) {
	p := Params{UOffset: -1, VOffset: -1, UScale: 2.0 / 255, VScale: 2.0 / 255}
	src, err := Generate(4, 4, p, func(x, y float64) (float64, float64) { return x, -y })
	if err != nil {
		t.Fatal(err)
	}

	// Left half of the output maps onto the source, right half is outside.
	out, err := src.Resample(2, 1, func(x, y float64) (float64, float64, bool) {
		return x * 2, y, x < 0.5
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Width() != 2 || out.Height() != 1 {
		t.Fatalf("expected 2x1, got %dx%d", out.Width(), out.Height())
	}

	wantU, wantV := src.At(2, 2)
	if u, v := out.At(0, 0); !approx(u, wantU, 1e-9) || !approx(v, wantV, 1e-9) {
		t.Errorf("expected (%f, %f), got (%f, %f)", wantU, wantV, u, v)
	}
	if u, v := out.At(1, 0); !approx(u, 0, 0.01) || !approx(v, 0, 0.01) {
		t.Errorf("expected near-zero velocity outside the source, got (%f, %f)", u, v)
	}
}
