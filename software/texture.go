package software

import (
	"math"

	"github.com/pthm-cable/streamflow/streamline"
)

// TextureRenderer copies a trail while fading its alpha.
type TextureRenderer struct {
	backend *Backend
}

// Render writes src with alpha multiplied by (1 - fade) into dst, or into the
// backend frame when dst is nil. Alpha is truncated so that any positive fade
// lowers a non-zero alpha by at least one step.
func (r *TextureRenderer) Render(src streamline.Trail, fade float64, dst streamline.Trail) {
	s := src.(*Trail)
	var out []uint8
	if dst == nil {
		out = r.backend.frame.Pix
	} else {
		out = dst.(*Trail).Pix
	}
	if len(out) != len(s.Pix) {
		panic("software: texture size mismatch")
	}

	keep := 1 - fade
	for i := 0; i < len(s.Pix); i += 4 {
		out[i] = s.Pix[i]
		out[i+1] = s.Pix[i+1]
		out[i+2] = s.Pix[i+2]
		out[i+3] = fadeAlpha(s.Pix[i+3], keep)
	}
}

func (r *TextureRenderer) Unload() {}

func fadeAlpha(a uint8, keep float64) uint8 {
	if keep >= 1 {
		return a
	}
	if keep <= 0 {
		return 0
	}
	return uint8(math.Floor(float64(a)*keep + 1e-6))
}
