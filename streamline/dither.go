package streamline

import "math/rand"

// FadeQuantum is the smallest alpha step an 8-bit trail texture can hold.
const FadeQuantum = 1.0 / 255

// EffectiveFade returns the fade to apply in one trail pass. Amounts below
// FadeQuantum cannot be represented, so they become a full quantum with
// probability amount/FadeQuantum and zero otherwise; the expected fade is
// unchanged. One draw covers the whole pass, so very slow fades flicker
// globally rather than being spatially dithered.
func EffectiveFade(amount float64, rng *rand.Rand) (fade float64, dithered bool) {
	switch {
	case amount <= 0:
		return 0, false
	case amount >= 1:
		return 1, false
	case amount >= FadeQuantum:
		return amount, false
	}
	if rng.Float64() < amount/FadeQuantum {
		return FadeQuantum, true
	}
	return 0, true
}
