// Package fits reads the primary image of a FITS file as float32 samples.
//
// Open parses the primary header and locates the data unit; ReadSlab and
// ReadAll then read any rectangular sub-region without loading the rest of
// the image. Integer images are scaled with BSCALE and BZERO, and BLANK
// samples become NaN. Gzip-compressed files are decompressed to a temporary
// file first, since slab reads need random access.
package fits

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/idia-astro/hdf5convert/internal/layout"
)

var (
	ErrNotFITS     = errors.New("not a FITS file")
	ErrUnsupported = errors.New("unsupported FITS image")
)

var gzipMagic = []byte{0x1f, 0x8b}

// File is an open FITS file.
type File struct {
	path    string
	file    *os.File
	tmpPath string

	header     *Header
	bitpix     int
	shape      []uint64
	dataOffset int64

	bscale, bzero float64
	blank         int64
	hasBlank      bool
}

// Open opens a FITS file, or a gzip-compressed one, and reads its primary
// header.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	ff := &File{path: path, file: f}

	magic := make([]byte, 2)
	if _, err := f.ReadAt(magic, 0); err == nil && bytes.Equal(magic, gzipMagic) {
		if err := ff.decompress(); err != nil {
			ff.Close()
			return nil, err
		}
	}

	if err := ff.readHeader(); err != nil {
		ff.Close()
		return nil, err
	}
	return ff, nil
}

// decompress inflates the file into a temporary file and reads from that.
func (f *File) decompress() error {
	zr, err := gzip.NewReader(bufio.NewReader(f.file))
	if err != nil {
		return fmt.Errorf("reading gzip stream: %w", err)
	}
	defer zr.Close()

	tmp, err := os.CreateTemp("", "hdf5convert-*.fits")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	f.tmpPath = tmp.Name()
	if _, err := io.Copy(tmp, zr); err != nil {
		tmp.Close()
		return fmt.Errorf("decompressing %s: %w", f.path, err)
	}
	f.file.Close()
	f.file = tmp
	return nil
}

// Close closes the file and removes any decompressed copy.
func (f *File) Close() error {
	var err error
	if f.file != nil {
		err = f.file.Close()
		f.file = nil
	}
	if f.tmpPath != "" {
		if rmErr := os.Remove(f.tmpPath); err == nil && rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = rmErr
		}
		f.tmpPath = ""
	}
	return err
}

// Path returns the path the file was opened with.
func (f *File) Path() string { return f.path }

// Header returns the primary header.
func (f *File) Header() *Header { return f.header }

// BitPix returns the BITPIX keyword of the image.
func (f *File) BitPix() int { return f.bitpix }

// Shape returns the image dimensions slowest-varying first, i.e. the
// reverse of NAXISn order: [NAXIS3, NAXIS2, NAXIS1] for a cube.
func (f *File) Shape() []uint64 {
	return append([]uint64(nil), f.shape...)
}

func (f *File) elemSize() int {
	return abs(f.bitpix) / 8
}

func (f *File) readHeader() error {
	block := make([]byte, blockSize)
	var cards []Card
	var offset int64
	for done := false; !done; {
		if _, err := f.file.ReadAt(block, offset); err != nil {
			if offset == 0 {
				return fmt.Errorf("%w: %s", ErrNotFITS, f.path)
			}
			return fmt.Errorf("reading header: missing END card: %w", err)
		}
		if offset == 0 && !bytes.HasPrefix(block, []byte("SIMPLE  =")) {
			return fmt.Errorf("%w: %s", ErrNotFITS, f.path)
		}
		offset += blockSize
		for i := 0; i < blockSize; i += cardSize {
			image := string(block[i : i+cardSize])
			if image[:8] == "END     " {
				done = true
				break
			}
			c, err := parseCard(image)
			if err != nil {
				return fmt.Errorf("parsing header: %w", err)
			}
			cards = append(cards, c)
		}
	}
	f.header = &Header{Cards: joinContinued(cards)}
	f.dataOffset = offset
	return f.parseImage()
}

func (f *File) parseImage() error {
	h := f.header
	bitpix, ok := h.Int("BITPIX")
	if !ok {
		return fmt.Errorf("%w: missing BITPIX", ErrNotFITS)
	}
	switch bitpix {
	case 8, 16, 32, 64, -32, -64:
	default:
		return fmt.Errorf("%w: BITPIX %d", ErrUnsupported, bitpix)
	}
	f.bitpix = int(bitpix)

	naxis, ok := h.Int("NAXIS")
	if !ok || naxis < 0 || naxis > 999 {
		return fmt.Errorf("%w: bad NAXIS", ErrNotFITS)
	}
	if naxis == 0 {
		return fmt.Errorf("%w: primary HDU holds no image", ErrUnsupported)
	}
	f.shape = make([]uint64, naxis)
	for i := int64(1); i <= naxis; i++ {
		n, ok := h.Int(fmt.Sprintf("NAXIS%d", i))
		if !ok || n < 0 {
			return fmt.Errorf("%w: bad NAXIS%d", ErrNotFITS, i)
		}
		f.shape[naxis-i] = uint64(n)
	}

	f.bscale, f.bzero = 1, 0
	if v, ok := h.Float("BSCALE"); ok {
		f.bscale = v
	}
	if v, ok := h.Float("BZERO"); ok {
		f.bzero = v
	}
	if f.bitpix > 0 {
		f.blank, f.hasBlank = h.Int("BLANK")
	}

	need := f.dataOffset + int64(layout.Elements(f.shape))*int64(f.elemSize())
	st, err := f.file.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if st.Size() < need {
		return fmt.Errorf("%w: data unit truncated: file is %d bytes, need %d", ErrNotFITS, st.Size(), need)
	}
	return nil
}

// ReadSlab reads the box (start, count), in Shape order, into dst in
// row-major order. len(dst) must equal the number of selected samples.
func (f *File) ReadSlab(dst []float32, start, count []uint64) error {
	if n := layout.Elements(count); uint64(len(dst)) != n {
		return fmt.Errorf("buffer holds %d samples, selection %v has %d", len(dst), count, n)
	}
	es := f.elemSize()
	l := layout.NewContiguous(uint64(f.dataOffset), f.shape, uint64(es))
	var scratch []byte
	return l.Runs(start, count, func(r layout.Run) error {
		if cap(scratch) < r.N*es {
			scratch = make([]byte, r.N*es)
		}
		buf := scratch[:r.N*es]
		if _, err := f.file.ReadAt(buf, int64(r.Addr)); err != nil {
			return fmt.Errorf("reading %s at %d: %w", f.path, r.Addr, err)
		}
		f.decode(dst[r.Index:r.Index+r.N], buf)
		return nil
	})
}

// ReadAll reads the whole image into dst.
func (f *File) ReadAll(dst []float32) error {
	return f.ReadSlab(dst, make([]uint64, len(f.shape)), f.shape)
}

// decode converts big-endian samples to physical float32 values.
func (f *File) decode(dst []float32, src []byte) {
	be := binary.BigEndian
	scaled := f.bscale != 1 || f.bzero != 0
	phys := func(raw int64) float32 {
		if f.hasBlank && raw == f.blank {
			return float32(math.NaN())
		}
		if scaled {
			return float32(f.bzero + f.bscale*float64(raw))
		}
		return float32(raw)
	}
	switch f.bitpix {
	case 8:
		for i := range dst {
			dst[i] = phys(int64(src[i]))
		}
	case 16:
		for i := range dst {
			dst[i] = phys(int64(int16(be.Uint16(src[2*i:]))))
		}
	case 32:
		for i := range dst {
			dst[i] = phys(int64(int32(be.Uint32(src[4*i:]))))
		}
	case 64:
		for i := range dst {
			dst[i] = phys(int64(be.Uint64(src[8*i:])))
		}
	case -32:
		for i := range dst {
			v := math.Float32frombits(be.Uint32(src[4*i:]))
			if scaled {
				v = float32(f.bzero + f.bscale*float64(v))
			}
			dst[i] = v
		}
	case -64:
		for i := range dst {
			v := math.Float64frombits(be.Uint64(src[8*i:]))
			if scaled {
				v = f.bzero + f.bscale*v
			}
			dst[i] = float32(v)
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
