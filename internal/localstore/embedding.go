package localstore

import (
	"encoding/binary"
	"math"

	"github.com/charmbracelet/log"
)

// DecodeEmbedding deserializes a sqlite-vec embedding blob into a float
// vector. sqlite-vec stores vectors as packed little-endian float32 arrays
// (384 dimensions * 4 bytes = 1536 bytes). Returns nil for a nil/empty blob
// or a blob whose length is not a multiple of 4.
func DecodeEmbedding(blob []byte) []float32 {
	if len(blob) == 0 {
		return nil
	}
	if len(blob)%4 != 0 {
		log.Warn("Failed to deserialize embedding", "bytes", len(blob))
		return nil
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec
}

// EncodeEmbedding serializes a float vector into the sqlite-vec blob format.
func EncodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	blob := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(f))
	}
	return blob
}
