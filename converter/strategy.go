package converter

// Strategy is the memory strategy of a conversion. Both implementations
// produce identical output; they differ in peak memory and in the number of
// passes over the input.
type Strategy interface {
	Name() string

	// WorkingSet returns the bytes Allocate will reserve, given the bytes
	// already committed to statistics and the pyramid.
	WorkingSet(c *Converter, committed uint64) (uint64, error)

	Allocate(c *Converter) error

	// Copy reads the cube and produces every output except the statistics
	// datasets, entering Reading through Writing in order.
	Copy(c *Converter) error

	// Release drops the strategy's buffers. It is safe to call more than
	// once.
	Release()
}

// allocFloat32 allocates n samples, reporting a refused allocation as
// ErrOutOfMemory.
func allocFloat32(op string, n int) (buf []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, recovered(op, r)
		}
	}()
	return make([]float32, n), nil
}
