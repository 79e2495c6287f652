package streamline

// PingPong owns two resources of the same kind and alternates which one is
// read and which one is written.
type PingPong[T any] struct {
	read, write T
}

// NewPingPong creates a pair with a in the read role.
func NewPingPong[T any](a, b T) *PingPong[T] {
	return &PingPong[T]{read: a, write: b}
}

// Read returns the resource currently holding the last completed result.
func (p *PingPong[T]) Read() T { return p.read }

// Write returns the resource the next pass renders into.
func (p *PingPong[T]) Write() T { return p.write }

// Swap exchanges the roles.
func (p *PingPong[T]) Swap() { p.read, p.write = p.write, p.read }

// Each calls fn on both resources, read first.
func (p *PingPong[T]) Each(fn func(T)) {
	fn(p.read)
	fn(p.write)
}
