package fits

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/idia-astro/hdf5convert/internal/layout"
)

// Image is a primary image to encode. Data holds physical values in Shape
// order; integer images store round((v-BZERO)/BSCALE) and NaN as BLANK,
// taking BSCALE, BZERO and BLANK from Cards.
type Image struct {
	Shape  []uint64
	BitPix int
	Data   []float64
	Cards  []Card
}

// Write encodes img to path, gzip-compressed if path ends in ".gz".
func Write(path string, img *Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	bw := bufio.NewWriter(f)
	var w io.Writer = bw
	var zw *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		zw = gzip.NewWriter(bw)
		w = zw
	}
	if err := Encode(w, img); err != nil {
		f.Close()
		return err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			f.Close()
			return fmt.Errorf("compressing: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// Encode writes img as a single-HDU FITS stream.
func Encode(w io.Writer, img *Image) error {
	if uint64(len(img.Data)) != layout.Elements(img.Shape) {
		return fmt.Errorf("image has %d samples, shape %v needs %d", len(img.Data), img.Shape, layout.Elements(img.Shape))
	}
	cards := []Card{
		{Key: "SIMPLE", Value: true, Comment: "conforms to FITS standard"},
		{Key: "BITPIX", Value: int64(img.BitPix)},
		{Key: "NAXIS", Value: int64(len(img.Shape))},
	}
	for i := range img.Shape {
		cards = append(cards, Card{Key: fmt.Sprintf("NAXIS%d", i+1), Value: int64(img.Shape[len(img.Shape)-1-i])})
	}
	cards = append(cards, img.Cards...)

	var hdr strings.Builder
	for _, c := range cards {
		s, err := formatCard(c)
		if err != nil {
			return err
		}
		hdr.WriteString(s)
	}
	hdr.WriteString("END" + strings.Repeat(" ", cardSize-3))
	if pad := hdr.Len() % blockSize; pad != 0 {
		hdr.WriteString(strings.Repeat(" ", blockSize-pad))
	}
	if _, err := io.WriteString(w, hdr.String()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	data, err := encodeData(img)
	if err != nil {
		return err
	}
	if pad := len(data) % blockSize; pad != 0 {
		data = append(data, make([]byte, blockSize-pad)...)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing data: %w", err)
	}
	return nil
}

func encodeData(img *Image) ([]byte, error) {
	h := &Header{Cards: img.Cards}
	bscale, bzero := 1.0, 0.0
	if v, ok := h.Float("BSCALE"); ok {
		bscale = v
	}
	if v, ok := h.Float("BZERO"); ok {
		bzero = v
	}
	blank, hasBlank := h.Int("BLANK")

	be := binary.BigEndian
	size := abs(img.BitPix) / 8
	out := make([]byte, len(img.Data)*size)
	for i, v := range img.Data {
		b := out[i*size:]
		switch img.BitPix {
		case -32:
			be.PutUint32(b, math.Float32bits(float32((v-bzero)/bscale)))
			continue
		case -64:
			be.PutUint64(b, math.Float64bits((v-bzero)/bscale))
			continue
		}
		var raw int64
		if math.IsNaN(v) {
			if !hasBlank {
				return nil, fmt.Errorf("sample %d is NaN but the image has no BLANK value", i)
			}
			raw = blank
		} else {
			raw = int64(math.Round((v - bzero) / bscale))
		}
		switch img.BitPix {
		case 8:
			b[0] = uint8(raw)
		case 16:
			be.PutUint16(b, uint16(raw))
		case 32:
			be.PutUint32(b, uint32(raw))
		case 64:
			be.PutUint64(b, uint64(raw))
		default:
			return nil, fmt.Errorf("%w: BITPIX %d", ErrUnsupported, img.BitPix)
		}
	}
	return out, nil
}
