// Package identifier provides the 128-bit value used to name clusters.
package identifier

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// HexLen is the length of the canonical textual form.
const HexLen = 32

// ErrInvalidFormat is returned when a string is not a canonical identifier.
var ErrInvalidFormat = errors.New("invalid identifier format")

// Identifier is an opaque 128-bit value. When composed, the first half
// carries the network id and the second half the service id.
type Identifier [2]uint64

// Zero is the identifier with all bits cleared.
var Zero Identifier

// Compose builds an identifier from a network id and a service id.
func Compose(networkID, serviceID uint64) Identifier {
	return Identifier{networkID, serviceID}
}

// Generate returns a random identifier. Uniqueness is not checked here.
func Generate() Identifier {
	u := uuid.New()
	return fromBytes(u[:])
}

// ParseHex parses the canonical form: exactly 32 lowercase hex characters.
func ParseHex(s string) (Identifier, error) {
	if len(s) != HexLen {
		return Zero, fmt.Errorf("%w: %q has length %d, expected %d", ErrInvalidFormat, s, len(s), HexLen)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return Zero, fmt.Errorf("%w: %q has non-canonical character %q at offset %d", ErrInvalidFormat, s, c, i)
		}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q: %v", ErrInvalidFormat, s, err)
	}
	return fromBytes(b), nil
}

// MustParseHex is like ParseHex but panics on error. Intended for tests and constants.
func MustParseHex(s string) Identifier {
	id, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return id
}

func fromBytes(b []byte) Identifier {
	return Identifier{
		binary.BigEndian.Uint64(b[0:8]),
		binary.BigEndian.Uint64(b[8:16]),
	}
}

// NetworkID returns the upper 64 bits.
func (id Identifier) NetworkID() uint64 { return id[0] }

// ServiceID returns the lower 64 bits.
func (id Identifier) ServiceID() uint64 { return id[1] }

// Bytes returns the big-endian 16 byte encoding.
func (id Identifier) Bytes() []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], id[0])
	binary.BigEndian.PutUint64(b[8:16], id[1])
	return b
}

// Hex returns the canonical lowercase hex form.
func (id Identifier) Hex() string {
	return hex.EncodeToString(id.Bytes())
}

func (id Identifier) String() string {
	return id.Hex()
}

// Equal reports whether both halves match.
func (id Identifier) Equal(other Identifier) bool {
	return id == other
}

// IsZero reports whether the identifier has no bits set.
func (id Identifier) IsZero() bool {
	return id == Zero
}

// MarshalText implements encoding.TextMarshaler.
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Uppercase hex is accepted.
func (id *Identifier) UnmarshalText(text []byte) error {
	parsed, err := ParseHex(strings.ToLower(string(text)))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
