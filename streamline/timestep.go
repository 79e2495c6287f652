package streamline

import "math"

// MaxSubsteps caps the sub-steps of a single frame so that stalls and resizes
// cannot request unbounded GPU work.
const MaxSubsteps = 32

// DtMin returns the largest sub-step for which a particle moving at the
// fastest representable velocity advances at most maxDisplacement pixels.
// It returns +Inf when no velocity can move a particle.
func DtMin(maxDisplacement float64, width, height int, maxU, maxV, speedFactor float64) float64 {
	if width <= 0 || height <= 0 {
		return math.Inf(1)
	}
	w, h := float64(width), float64(height)
	aspect := w / h

	// Pixels to clip units per axis.
	dispX := 2 * maxDisplacement / w
	dispY := 2 * maxDisplacement / h

	// Physical velocity to clip units per second; x is corrected by aspect.
	velX := math.Abs(maxU*speedFactor) / aspect
	velY := math.Abs(maxV * speedFactor)

	dt := math.Inf(1)
	if velX > 0 {
		dt = math.Min(dt, dispX/velX)
	}
	if velY > 0 {
		dt = math.Min(dt, dispY/velY)
	}
	return dt
}

// Substeps splits a frame of duration dt into n equal sub-steps no longer
// than dtMin, capped at MaxSubsteps. n is ceil(dt/dtMin), not floor: a floored
// count leaves sub-steps longer than dtMin, which would move particles further
// than MaxDisplacement pixels in one step. Only the cap can break that bound.
func Substeps(dt, dtMin float64) (n int, step float64) {
	if dt <= 0 {
		return 0, 0
	}
	if math.IsInf(dtMin, 1) || dtMin <= 0 || dt <= dtMin {
		return 1, dt
	}
	n = int(math.Ceil(dt / dtMin))
	if n > MaxSubsteps {
		n = MaxSubsteps
	}
	return n, dt / float64(n)
}

// DisplacementPixels converts a clip-space displacement to pixels.
func DisplacementPixels(dx, dy float64, width, height int) (px, py float64) {
	return dx * float64(width) / 2, dy * float64(height) / 2
}
