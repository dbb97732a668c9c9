package grib

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
)

var (
	magic     = []byte("GRIB")
	endMarker = []byte("7777")

	errTruncated = errors.New("truncated message")
)

// maxGridPoints bounds every header-declared count before it sizes an
// allocation. A 0.01 degree CONUS grid is about 24.5M points.
const maxGridPoints = 50_000_000

// Field is one decoded product. Values has one entry per grid point, NaN where
// the bitmap marks the point missing; it is nil when the packing is
// unsupported. Coord maps a value index to its latitude and longitude and is
// nil when the grid template is unsupported.
type Field struct {
	Name       string
	Discipline uint8
	Category   uint8
	Number     uint8
	Values     []float64
	GridPoints int
	Coord      func(i int) (lat, lon float64)
}

// Complete reports whether the field has values for every grid point and a
// coordinate mapping.
func (f Field) Complete() bool {
	n := len(f.Values)
	return n > 0 && f.Coord != nil && f.GridPoints == n
}

// ParseFields decodes every GRIB2 message in data.
func ParseFields(data []byte) ([]Field, error) {
	var fields []Field
	off := 0
	for off < len(data) {
		idx := bytes.Index(data[off:], magic)
		if idx < 0 {
			break
		}
		off += idx
		msgFields, n, err := parseMessage(data[off:])
		if err != nil {
			return nil, fmt.Errorf("message at offset %d: %w", off, err)
		}
		fields = append(fields, msgFields...)
		off += n
	}
	if len(fields) == 0 {
		return nil, errors.New("no GRIB2 messages found")
	}
	return fields, nil
}

// messageState carries the sections that apply to the next data section.
// GRIB2 lets a message repeat sections 3 to 7, so later sections replace
// earlier ones.
type messageState struct {
	discipline uint8
	npoints    int
	grid       *latLonGrid
	category   uint8
	number     uint8
	repr       *representation
	bitmap     []byte
}

func parseMessage(b []byte) ([]Field, int, error) {
	if len(b) < 16 {
		return nil, 0, errTruncated
	}
	if edition := b[7]; edition != 2 {
		return nil, 0, fmt.Errorf("unsupported GRIB edition %d", edition)
	}
	total := binary.BigEndian.Uint64(b[8:16])
	if total < 20 || total > uint64(len(b)) {
		return nil, 0, fmt.Errorf("%w: declared length %d, have %d bytes", errTruncated, total, len(b))
	}
	msg := b[:total]
	st := messageState{discipline: b[6]}

	var fields []Field
	pos := 16
	for pos < len(msg) {
		if bytes.HasPrefix(msg[pos:], endMarker) {
			return fields, int(total), nil
		}
		if pos+5 > len(msg) {
			return nil, 0, errTruncated
		}
		secLen := int(binary.BigEndian.Uint32(msg[pos:]))
		if secLen < 5 || secLen > len(msg)-pos {
			return nil, 0, fmt.Errorf("section at offset %d: bad length %d", pos, secLen)
		}
		sec := msg[pos : pos+secLen]

		var err error
		switch num := sec[4]; num {
		case 1, 2:
		case 3:
			err = st.readGrid(sec)
		case 4:
			err = st.readProduct(sec)
		case 5:
			err = st.readRepresentation(sec)
		case 6:
			err = st.readBitmap(sec)
		case 7:
			var f Field
			f, err = st.field(sec)
			if err == nil {
				fields = append(fields, f)
			}
		default:
			err = fmt.Errorf("unknown section %d", num)
		}
		if err != nil {
			return nil, 0, fmt.Errorf("section %d: %w", sec[4], err)
		}
		pos += secLen
	}
	return nil, 0, errors.New("missing end marker")
}

func (st *messageState) readGrid(sec []byte) error {
	if len(sec) < 14 {
		return errTruncated
	}
	st.npoints = 0
	st.grid = nil
	npoints := binary.BigEndian.Uint32(sec[6:10])
	if npoints == 0 || npoints > maxGridPoints {
		return fmt.Errorf("grid declares %d points, limit %d", npoints, maxGridPoints)
	}
	st.npoints = int(npoints)
	if tmpl := binary.BigEndian.Uint16(sec[12:14]); tmpl != 0 {
		return nil
	}
	g, err := parseLatLonGrid(sec)
	if err != nil {
		return err
	}
	if g.ni*g.nj != st.npoints {
		return fmt.Errorf("grid %dx%d does not match %d points", g.ni, g.nj, st.npoints)
	}
	st.grid = g
	return nil
}

func (st *messageState) readProduct(sec []byte) error {
	if len(sec) < 11 {
		return errTruncated
	}
	st.category = sec[9]
	st.number = sec[10]
	return nil
}

func (st *messageState) readRepresentation(sec []byte) error {
	r, err := parseRepresentation(sec)
	if err != nil {
		return err
	}
	st.repr = r
	return nil
}

func (st *messageState) readBitmap(sec []byte) error {
	if len(sec) < 6 {
		return errTruncated
	}
	switch ind := sec[5]; ind {
	case 0:
		st.bitmap = sec[6:]
	case 255:
		st.bitmap = nil
	case 254:
		// previously defined bitmap stays in effect
	default:
		return fmt.Errorf("unsupported bitmap indicator %d", ind)
	}
	return nil
}

func (st *messageState) field(sec []byte) (Field, error) {
	f := Field{
		Name:       ParameterName(st.discipline, st.category, st.number),
		Discipline: st.discipline,
		Category:   st.category,
		Number:     st.number,
	}
	if st.repr == nil {
		return f, errors.New("data section before representation section")
	}
	if st.npoints == 0 {
		return f, errors.New("data section before grid section")
	}
	if st.repr.npacked > st.npoints {
		return f, fmt.Errorf("%d packed values exceed %d grid points", st.repr.npacked, st.npoints)
	}
	f.GridPoints = st.npoints

	packed, err := st.repr.unpack(sec[5:])
	if err != nil {
		return f, err
	}
	if packed != nil {
		values := packed
		if st.bitmap != nil {
			values, err = applyBitmap(packed, st.bitmap, st.npoints)
			if err != nil {
				return f, err
			}
		}
		f.Values = values
	}
	if st.grid != nil {
		f.Coord = st.grid.coord
	}
	return f, nil
}

// latLonGrid is grid template 3.0. Angles are in degrees.
type latLonGrid struct {
	ni, nj   int
	la1, lo1 float64
	di, dj   float64
	scan     byte
}

const missing32 = 0xFFFFFFFF

func parseLatLonGrid(sec []byte) (*latLonGrid, error) {
	if len(sec) < 72 {
		return nil, errTruncated
	}
	u32 := func(off int) uint32 { return binary.BigEndian.Uint32(sec[off : off+4]) }

	unit := 1e-6
	if basic, sub := u32(38), u32(42); basic != 0 && basic != missing32 && sub != 0 && sub != missing32 {
		unit = float64(basic) / float64(sub)
	}

	g := &latLonGrid{
		ni:   int(u32(30)),
		nj:   int(u32(34)),
		la1:  float64(signed32(sec[46:50])) * unit,
		lo1:  float64(signed32(sec[50:54])) * unit,
		scan: sec[71],
	}
	la2 := float64(signed32(sec[55:59])) * unit
	lo2 := float64(signed32(sec[59:63])) * unit

	if di := u32(63); di != missing32 {
		g.di = float64(di) * unit
	} else if g.ni > 1 {
		g.di = math.Abs(lo2-g.lo1) / float64(g.ni-1)
	}
	if dj := u32(67); dj != missing32 {
		g.dj = float64(dj) * unit
	} else if g.nj > 1 {
		g.dj = math.Abs(la2-g.la1) / float64(g.nj-1)
	}
	if g.ni <= 0 || g.nj <= 0 || g.ni > maxGridPoints || g.nj > maxGridPoints {
		return nil, fmt.Errorf("invalid grid size %dx%d", g.ni, g.nj)
	}
	return g, nil
}

// coord returns the latitude and longitude of value index k following the
// scanning mode flags.
func (g *latLonGrid) coord(k int) (lat, lon float64) {
	i, j := k%g.ni, k/g.ni
	if g.scan&0x20 != 0 {
		i, j = k/g.nj, k%g.nj
	}

	dLat := g.dj
	if g.scan&0x40 == 0 {
		dLat = -dLat
	}
	dLon := g.di
	if g.scan&0x80 != 0 {
		dLon = -dLon
	}
	return g.la1 + float64(j)*dLat, g.lo1 + float64(i)*dLon
}

// representation is data template 5.0 or 5.41; both share the packing
// parameters. Other templates leave tmpl set and unpack returns nil.
type representation struct {
	npacked int
	tmpl    uint16
	ref     float32
	binary  int
	decimal int
	nbits   int
}

func parseRepresentation(sec []byte) (*representation, error) {
	if len(sec) < 11 {
		return nil, errTruncated
	}
	r := &representation{
		npacked: int(binary.BigEndian.Uint32(sec[5:9])),
		tmpl:    binary.BigEndian.Uint16(sec[9:11]),
	}
	if r.tmpl != 0 && r.tmpl != 41 {
		return r, nil
	}
	if len(sec) < 21 {
		return nil, errTruncated
	}
	r.ref = math.Float32frombits(binary.BigEndian.Uint32(sec[11:15]))
	r.binary = signed16(sec[15:17])
	r.decimal = signed16(sec[17:19])
	r.nbits = int(sec[19])
	return r, nil
}

func (r *representation) unpack(data []byte) ([]float64, error) {
	var raw []float64
	switch {
	case r.tmpl != 0 && r.tmpl != 41:
		return nil, nil
	case r.nbits == 0:
		raw = make([]float64, r.npacked)
	case r.tmpl == 0:
		ints, err := unpackBits(data, r.npacked, r.nbits)
		if err != nil {
			return nil, err
		}
		raw = ints
	default:
		pixels, err := unpackPNG(data, r.npacked)
		if err != nil {
			return nil, err
		}
		raw = pixels
	}

	ref := float64(r.ref)
	bscale := math.Pow(2, float64(r.binary))
	dscale := math.Pow(10, float64(-r.decimal))
	out := make([]float64, len(raw))
	for i, x := range raw {
		out[i] = (ref + x*bscale) * dscale
	}
	return out, nil
}

func unpackBits(data []byte, n, width int) ([]float64, error) {
	if width > 32 {
		return nil, fmt.Errorf("unsupported bit width %d", width)
	}
	if need := (n*width + 7) / 8; len(data) < need {
		return nil, fmt.Errorf("%w: need %d data bytes, have %d", errTruncated, need, len(data))
	}
	out := make([]float64, n)
	pos := 0
	for i := range out {
		var v uint64
		for b := 0; b < width; b++ {
			bit := (data[pos>>3] >> (7 - uint(pos&7))) & 1
			v = v<<1 | uint64(bit)
			pos++
		}
		out[i] = float64(v)
	}
	return out, nil
}

func unpackPNG(data []byte, want int) ([]float64, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("png: %w", err)
	}
	if cfg.Width*cfg.Height != want {
		return nil, fmt.Errorf("png holds %dx%d values, want %d", cfg.Width, cfg.Height, want)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("png: %w", err)
	}
	b := img.Bounds()
	out := make([]float64, 0, b.Dx()*b.Dy())
	switch im := img.(type) {
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out = append(out, float64(im.GrayAt(x, y).Y))
			}
		}
	case *image.Gray16:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out = append(out, float64(im.Gray16At(x, y).Y))
			}
		}
	default:
		return nil, fmt.Errorf("unsupported png color model %T", img)
	}
	return out, nil
}

func applyBitmap(packed []float64, bitmap []byte, n int) ([]float64, error) {
	if len(bitmap)*8 < n {
		return nil, fmt.Errorf("bitmap covers %d points, want %d", len(bitmap)*8, n)
	}
	out := make([]float64, n)
	j := 0
	for k := range out {
		if bitmap[k>>3]&(0x80>>uint(k&7)) == 0 {
			out[k] = math.NaN()
			continue
		}
		if j >= len(packed) {
			return nil, errors.New("bitmap marks more points than were packed")
		}
		out[k] = packed[j]
		j++
	}
	return out, nil
}

// GRIB2 stores signed integers as sign and magnitude.
func signed16(b []byte) int {
	v := binary.BigEndian.Uint16(b)
	if v&0x8000 != 0 {
		return -int(v & 0x7FFF)
	}
	return int(v)
}

func signed32(b []byte) int64 {
	v := binary.BigEndian.Uint32(b)
	if v&0x80000000 != 0 {
		return -int64(v & 0x7FFFFFFF)
	}
	return int64(v)
}
