package converter

import (
	"github.com/idia-astro/hdf5convert/internal/fits"
)

// Source is a cube reader.
type Source interface {
	// Shape returns the image shape, slowest axis first.
	Shape() []uint64
	// ReadSlab reads the box (start, count), in Shape order, into dst.
	ReadSlab(dst []float32, start, count []uint64) error
	// Cards returns the header keywords to copy as attributes.
	Cards() []fits.Card
	Close() error
}

// fitsSource reads a FITS primary image.
type fitsSource struct {
	*fits.File
}

// OpenFITS opens a FITS file as a Source.
func OpenFITS(path string) (Source, error) {
	f, err := fits.Open(path)
	if err != nil {
		return nil, err
	}
	return fitsSource{f}, nil
}

func (s fitsSource) Cards() []fits.Card {
	return s.Header().Cards
}

// read reads the box given in [stokes, depth, height, width] coordinates
// from a source of any rank.
func (c *Converter) read(dst []float32, start, count [4]uint64) error {
	rank := len(c.srcShape)
	s, n := make([]uint64, rank), make([]uint64, rank)
	for i := range s {
		n[i] = 1
	}
	for i := 0; i < 4 && i < rank; i++ {
		s[rank-1-i] = start[3-i]
		n[rank-1-i] = count[3-i]
	}
	return c.src.ReadSlab(dst, s, n)
}

// readPlane reads plane (s, z) into dst.
func (c *Converter) readPlane(dst []float32, s, z int) error {
	d := c.dims
	return c.read(dst,
		[4]uint64{uint64(s), uint64(z), 0, 0},
		[4]uint64{1, 1, uint64(d.Height), uint64(d.Width)})
}
