package store

import (
	"bytes"
	"encoding/binary"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register sqlite-vec as an auto-loadable extension on the
	// mattn/go-sqlite3 driver before any connection opens.
	vec.Auto()
}

// encodeEmbedding serializes a float32 vector into the little-endian blob
// format sqlite-vec expects.
func encodeEmbedding(v []float32) []byte {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		return nil
	}
	return buf.Bytes()
}
