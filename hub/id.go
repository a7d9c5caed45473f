package hub

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// assignID draws a fresh 64-bit random value and takes its first 8 hex
// digits, retrying if the result collides with a peer already in table
// (§4.4). assignID holds no lock while calling inUse, so inUse must take
// whatever lock it needs itself.
func assignID(inUse func(id string) bool) (string, error) {
	const maxAttempts = 64
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return "", err
		}
		v := binary.BigEndian.Uint64(buf[:])
		id := fmt.Sprintf("%08x", uint32(v>>32))
		if !inUse(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("hub: could not assign a unique peer id after %d attempts", maxAttempts)
}
