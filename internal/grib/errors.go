package grib

import "fmt"

// Stage names the decode step that failed.
type Stage string

const (
	StageDecompress    Stage = "decompress"
	StageParse         Stage = "parse"
	StageMissingFields Stage = "missing-fields"
)

// DecodeError is returned by Decoder.Decode.
type DecodeError struct {
	Stage Stage
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode grid (%s): %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
