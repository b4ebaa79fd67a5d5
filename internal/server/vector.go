package server

import (
	"encoding/json"
	"fmt"
)

// byteVector is a PIR query vector or response row. The wire protocol
// represents it as a plain JSON array of integers in [0,255], not the
// base64 string encoding/json gives []byte by default, so it carries its
// own marshaling.
type byteVector []byte

func (v byteVector) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(v))
	for i, b := range v {
		ints[i] = int(b)
	}
	return json.Marshal(ints)
}

func (v *byteVector) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make([]byte, len(ints))
	for i, n := range ints {
		if n < 0 || n > 255 {
			return fmt.Errorf("%w: byte %d out of range", errByteRange, n)
		}
		out[i] = byte(n)
	}
	*v = out
	return nil
}

var errByteRange = fmt.Errorf("vector byte out of range")
