package streamline

import (
	"math"
	"math/rand"
)

// RespawnRange is a contiguous run of particle indices, wrapping modulo N,
// whose particles are reset to random positions in one update.
type RespawnRange struct {
	Start, Count, N int
}

// Contains reports whether particle i is in the range.
func (r RespawnRange) Contains(i int) bool {
	if r.Count <= 0 || r.N <= 0 {
		return false
	}
	d := i - r.Start
	if d < 0 {
		d += r.N
	}
	return d < r.Count
}

// Eliminator picks the particles to respawn on each update.
type Eliminator struct {
	rng   *rand.Rand
	carry float64
}

// NewEliminator creates an eliminator drawing from rng.
func NewEliminator(rng *rand.Rand) *Eliminator {
	return &Eliminator{rng: rng}
}

// Next returns the range for an update of duration dt over n particles.
// The count is floor(perSecond*dt) plus the whole part of the remainder
// carried from earlier updates, so a single update can respawn one more
// particle than floor(perSecond*dt) while the long-run rate is exactly
// perSecond. A zero rate never respawns.
func (e *Eliminator) Next(perSecond, dt float64, n int) RespawnRange {
	if n <= 0 || perSecond <= 0 || dt <= 0 {
		return RespawnRange{N: n}
	}

	want := perSecond*dt + e.carry
	count := int(math.Floor(want))
	e.carry = want - float64(count)
	if count > n {
		count = n
	}
	return RespawnRange{
		Start: e.rng.Intn(n),
		Count: count,
		N:     n,
	}
}
