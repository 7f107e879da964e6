package simulation

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
)

// RandomSeed draws a fresh seed from crypto/rand, for runs where the caller
// asks for a new sample but still wants to be able to reproduce it.
func RandomSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
