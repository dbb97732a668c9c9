package grib

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/bits"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Grid is a regular latitude/longitude grid in degrees. ScanMode follows the
// GRIB2 flag table 3.4; 0x40 lays rows out south to north.
type Grid struct {
	Ni, Nj   int
	La1, Lo1 float64
	Di, Dj   float64
	ScanMode byte
}

// Message is one field to encode with simple packing.
type Message struct {
	Discipline   uint8
	Category     uint8
	Number       uint8
	Reference    time.Time
	Grid         Grid
	Values       []float64 // NaN marks a missing point
	DecimalScale int
}

// Encode writes msgs as consecutive GRIB2 messages.
func Encode(w io.Writer, msgs ...Message) error {
	for i, m := range msgs {
		b, err := encodeMessage(m)
		if err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// EncodeGzip is Encode followed by gzip compression.
func EncodeGzip(msgs ...Message) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := Encode(zw, msgs...); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeMessage(m Message) ([]byte, error) {
	n := m.Grid.Ni * m.Grid.Nj
	if n <= 0 || len(m.Values) != n {
		return nil, fmt.Errorf("grid %dx%d does not match %d values", m.Grid.Ni, m.Grid.Nj, len(m.Values))
	}

	var body bytes.Buffer
	writeSection(&body, 1, identification(m.Reference))
	writeSection(&body, 3, gridDefinition(m.Grid))
	writeSection(&body, 4, productDefinition(m.Category, m.Number))

	packed, bitmap, repr := pack(m.Values, m.DecimalScale)
	writeSection(&body, 5, repr)
	if bitmap != nil {
		writeSection(&body, 6, append([]byte{0}, bitmap...))
	} else {
		writeSection(&body, 6, []byte{255})
	}
	writeSection(&body, 7, packed)

	total := 16 + body.Len() + len(endMarker)
	out := make([]byte, 0, total)
	out = append(out, magic...)
	out = append(out, 0, 0, m.Discipline, 2)
	out = binary.BigEndian.AppendUint64(out, uint64(total))
	out = append(out, body.Bytes()...)
	out = append(out, endMarker...)
	return out, nil
}

func writeSection(buf *bytes.Buffer, num byte, payload []byte) {
	var hdr [5]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(len(payload)+5))
	hdr[4] = num
	buf.Write(hdr[:])
	buf.Write(payload)
}

func identification(ref time.Time) []byte {
	ref = ref.UTC()
	b := make([]byte, 0, 16)
	b = binary.BigEndian.AppendUint16(b, 161) // originating centre: NOAA/OAR
	b = binary.BigEndian.AppendUint16(b, 0)
	b = append(b, 2, 1, 1)
	b = binary.BigEndian.AppendUint16(b, uint16(ref.Year()))
	b = append(b, byte(ref.Month()), byte(ref.Day()), byte(ref.Hour()), byte(ref.Minute()), byte(ref.Second()))
	return append(b, 0, 1)
}

func gridDefinition(g Grid) []byte {
	b := make([]byte, 0, 67)
	b = append(b, 0)
	b = binary.BigEndian.AppendUint32(b, uint32(g.Ni*g.Nj))
	b = append(b, 0, 0)
	b = binary.BigEndian.AppendUint16(b, 0)
	// spherical earth, no scaled radii
	b = append(b, 6, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	b = binary.BigEndian.AppendUint32(b, uint32(g.Ni))
	b = binary.BigEndian.AppendUint32(b, uint32(g.Nj))
	b = binary.BigEndian.AppendUint32(b, 0)
	b = binary.BigEndian.AppendUint32(b, missing32)
	la2 := g.La1 + float64(g.Nj-1)*g.Dj
	if g.ScanMode&0x40 == 0 {
		la2 = g.La1 - float64(g.Nj-1)*g.Dj
	}
	lo2 := g.Lo1 + float64(g.Ni-1)*g.Di
	b = appendSigned32(b, micro(g.La1))
	b = appendSigned32(b, micro(g.Lo1))
	b = append(b, 0x30)
	b = appendSigned32(b, micro(la2))
	b = appendSigned32(b, micro(lo2))
	b = binary.BigEndian.AppendUint32(b, uint32(micro(g.Di)))
	b = binary.BigEndian.AppendUint32(b, uint32(micro(g.Dj)))
	return append(b, g.ScanMode)
}

func productDefinition(category, number uint8) []byte {
	b := make([]byte, 0, 29)
	b = binary.BigEndian.AppendUint16(b, 0)
	b = binary.BigEndian.AppendUint16(b, 0)
	b = append(b, category, number, 2, 0, 0)
	b = binary.BigEndian.AppendUint16(b, 0)
	b = append(b, 0, 1)
	b = binary.BigEndian.AppendUint32(b, 0)
	b = append(b, 255, 0)
	b = binary.BigEndian.AppendUint32(b, 0)
	b = append(b, 255, 0)
	return binary.BigEndian.AppendUint32(b, 0)
}

// pack applies simple packing with a zero binary scale. It returns the packed
// bits, the bitmap (nil when no value is missing) and the section 5 payload.
func pack(values []float64, decimal int) ([]byte, []byte, []byte) {
	dscale := math.Pow(10, float64(decimal))

	var present []float64
	var bitmap []byte
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) != len(values) {
		bitmap = make([]byte, (len(values)+7)/8)
		for k, v := range values {
			if !math.IsNaN(v) {
				bitmap[k>>3] |= 0x80 >> uint(k&7)
			}
		}
	}

	var ref float32
	if len(present) > 0 {
		lowest := present[0]
		for _, v := range present[1:] {
			lowest = math.Min(lowest, v)
		}
		ref = float32(lowest * dscale)
	}

	ints := make([]uint64, len(present))
	var highest uint64
	for i, v := range present {
		x := math.Round(v*dscale - float64(ref))
		if x < 0 {
			x = 0
		}
		ints[i] = uint64(x)
		highest = max(highest, ints[i])
	}
	width := bits.Len64(highest)

	packed := make([]byte, (len(ints)*width+7)/8)
	pos := 0
	for _, x := range ints {
		for b := width - 1; b >= 0; b-- {
			if x>>uint(b)&1 == 1 {
				packed[pos>>3] |= 0x80 >> uint(pos&7)
			}
			pos++
		}
	}

	repr := make([]byte, 0, 16)
	repr = binary.BigEndian.AppendUint32(repr, uint32(len(present)))
	repr = binary.BigEndian.AppendUint16(repr, 0)
	repr = binary.BigEndian.AppendUint32(repr, math.Float32bits(ref))
	repr = appendSigned16(repr, 0)
	repr = appendSigned16(repr, decimal)
	repr = append(repr, byte(width), 0)
	return packed, bitmap, repr
}

func micro(deg float64) int64 { return int64(math.Round(deg * 1e6)) }

func appendSigned16(b []byte, v int) []byte {
	u := uint16(v)
	if v < 0 {
		u = uint16(-v) | 0x8000
	}
	return binary.BigEndian.AppendUint16(b, u)
}

func appendSigned32(b []byte, v int64) []byte {
	u := uint32(v)
	if v < 0 {
		u = uint32(-v) | 0x80000000
	}
	return binary.BigEndian.AppendUint32(b, u)
}
