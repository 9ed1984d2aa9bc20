package booking

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tripdesk/internal/domain/inventory"
)

// crockford base32, no I/L/O/U to keep codes readable over the phone.
const referenceAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const referenceRandomChars = 10

var referencePrefixes = map[inventory.Kind]string{
	inventory.KindVehicle:     "VEH",
	inventory.KindTourPackage: "TUR",
}

// ReferenceGenerator builds codes like VEH-250101-7K2M9XPQ4D: a kind prefix,
// the UTC creation date and 50 random bits.
type ReferenceGenerator struct {
	// Entropy returns at least 7 random bytes. Defaults to a random UUID.
	Entropy func() ([]byte, error)
}

func (g ReferenceGenerator) Generate(kind inventory.Kind, now time.Time) (Reference, error) {
	prefix, ok := referencePrefixes[kind]
	if !ok {
		return "", inventory.ErrUnknownKind
	}
	raw, err := g.entropy()
	if err != nil {
		return "", fmt.Errorf("booking: reference entropy: %w", err)
	}
	if len(raw) < 7 {
		return "", fmt.Errorf("booking: reference entropy too short (%d bytes)", len(raw))
	}
	var buf [8]byte
	copy(buf[1:], raw[len(raw)-7:])
	bits := binary.BigEndian.Uint64(buf[:]) >> 6

	var sb strings.Builder
	sb.Grow(len(prefix) + 8 + referenceRandomChars)
	sb.WriteString(prefix)
	sb.WriteByte('-')
	sb.WriteString(now.UTC().Format("060102"))
	sb.WriteByte('-')
	for i := referenceRandomChars - 1; i >= 0; i-- {
		sb.WriteByte(referenceAlphabet[(bits>>(uint(i)*5))&0x1f])
	}
	return Reference(sb.String()), nil
}

func (g ReferenceGenerator) entropy() ([]byte, error) {
	if g.Entropy != nil {
		return g.Entropy()
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	return id[:], nil
}
