package grib

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
	"github.com/klauspost/compress/gzip"
)

// maxDecompressed caps the inflated payload size.
const maxDecompressed = 1 << 30

var gzipMagic = []byte{0x1f, 0x8b}

// Decoder turns raw grid payloads into radar points.
type Decoder struct {
	logger *slog.Logger
}

// NewDecoder creates a Decoder.
func NewDecoder(logger *slog.Logger) *Decoder {
	return &Decoder{logger: logger}
}

// Decode decompresses raw, parses its fields and samples every complete
// field. Fields missing values or coordinates are skipped; if none remain the
// result is a DecodeError with StageMissingFields.
func (d *Decoder) Decode(raw []byte) ([]radar.RadarPoint, error) {
	data, err := Decompress(raw)
	if err != nil {
		return nil, &DecodeError{Stage: StageDecompress, Err: err}
	}

	fields, err := ParseFields(data)
	if err != nil {
		return nil, &DecodeError{Stage: StageParse, Err: err}
	}

	var points []radar.RadarPoint
	usable := 0
	for _, f := range fields {
		if !f.Complete() {
			d.logger.Debug("skipping incomplete field",
				"field", f.Name,
				"values", len(f.Values),
				"grid_points", f.GridPoints,
				"has_coordinates", f.Coord != nil,
			)
			continue
		}
		usable++
		sampled := SampleField(f)
		d.logger.Debug("sampled field", "field", f.Name, "values", len(f.Values), "stride", Stride(len(f.Values)), "points", len(sampled))
		points = append(points, sampled...)
	}

	if usable == 0 {
		return nil, &DecodeError{
			Stage: StageMissingFields,
			Err:   fmt.Errorf("none of %d fields has values and coordinates", len(fields)),
		}
	}
	return points, nil
}

// Decompress inflates gzip payloads and passes raw GRIB through. Anything else
// is rejected.
func Decompress(raw []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(raw, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gzip header: %w", err)
		}
		defer zr.Close()
		data, err := io.ReadAll(io.LimitReader(zr, maxDecompressed))
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return data, nil
	case bytes.HasPrefix(raw, magic):
		return raw, nil
	default:
		return nil, errors.New("payload is neither gzip nor GRIB")
	}
}
