// Package roundid generates sortable round identifiers: UUIDv7 encoded as
// 26 characters of Crockford base32. The timestamp prefix keeps round ids
// ordered by creation time, which makes server logs and transcripts easy
// to correlate.
package roundid

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Encoded length of a 128-bit id in base32
const Length = 26

// RandSource supplies the random tail of an id. Injected so tests can pin
// ids; production uses crypto/rand when nil.
type RandSource interface {
	Intn(n int) int
}

// Generator produces round ids with configurable randomness
type Generator struct {
	src RandSource
}

// NewGenerator creates a generator. A nil source means crypto/rand.
func NewGenerator(src RandSource) *Generator {
	return &Generator{src: src}
}

// New generates a round id using crypto/rand
func New() string {
	return NewGenerator(nil).New()
}

// New generates a round id
func (g *Generator) New() string {
	var id [16]byte

	now := time.Now().UnixMilli()
	id[0] = byte(now >> 40)
	id[1] = byte(now >> 32)
	id[2] = byte(now >> 24)
	id[3] = byte(now >> 16)
	id[4] = byte(now >> 8)
	id[5] = byte(now)

	if g.src != nil {
		for i := 6; i < len(id); i++ {
			id[i] = byte(g.src.Intn(256))
		}
	} else {
		if _, err := rand.Read(id[6:]); err != nil {
			panic("roundid: reading entropy: " + err.Error())
		}
	}

	// UUIDv7 version and variant bits.
	id[6] = (id[6] & 0x0f) | 0x70
	id[8] = (id[8] & 0x3f) | 0x80

	return encode(id)
}

// encode packs the 128 bits big-endian into 26 base32 characters. The
// first character carries only 3 data bits, so it is always 0-7.
func encode(id [16]byte) string {
	var b strings.Builder
	b.Grow(Length)

	// Prime the accumulator with 2 zero bits so 130 bits divide evenly
	// into 26 five-bit groups.
	var acc uint64
	bits := 2
	for _, octet := range id {
		acc = acc<<8 | uint64(octet)
		bits += 8
		for bits >= 5 {
			bits -= 5
			b.WriteByte(alphabet[(acc>>bits)&0x1f])
		}
	}
	return b.String()
}

// Validate checks that an id is well-formed
func Validate(id string) error {
	if len(id) != Length {
		return fmt.Errorf("round id must be %d characters, got %d", Length, len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("round id first character must be 0-7, got %c", id[0])
	}
	for i := 0; i < len(id); i++ {
		if !strings.ContainsRune(alphabet, rune(id[i])) {
			return fmt.Errorf("round id has invalid character %c at position %d", id[i], i)
		}
	}
	return nil
}
