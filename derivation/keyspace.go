// Package derivation models CAP26 derivation requests, at the concrete path
// level and at the abstract keyspace level, and classifies raw BIP32 indices
// into the unsecurified and securified keyspaces.
package derivation

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

const (
	// HardenedOffset is the first hardened BIP32 index.
	HardenedOffset uint32 = hdkeychain.HardenedKeyStart
	// SecurifiedHalf is the size of the hardened range reserved to
	// unsecurified entities.
	SecurifiedHalf uint32 = 0x4000_0000
	// UnsecurifiedBoundary is the greatest raw index of the unsecurified
	// keyspace.
	UnsecurifiedBoundary = HardenedOffset + SecurifiedHalf

	maxUnsecurifiedOffset = SecurifiedHalf
	maxSecurifiedOffset   = ^uint32(0) - UnsecurifiedBoundary - 1
)

// ErrInvalidKeySpace is returned or raised when an index does not belong to
// the keyspace it is used for.
var ErrInvalidKeySpace = errors.New("derivation: invalid key space")

// KeySpace partitions CAP26 indices between single factor and multi factor
// entities.
type KeySpace uint8

const (
	Unsecurified KeySpace = iota
	Securified
)

func (k KeySpace) String() string {
	switch k {
	case Unsecurified:
		return "unsecurified"
	case Securified:
		return "securified"
	default:
		return fmt.Sprintf("keyspace(%d)", uint8(k))
	}
}

// CAP26Index is a raw BIP32 index tagged with its keyspace.
type CAP26Index struct {
	space KeySpace
	raw   uint32
}

// Classify tags raw with its keyspace. Values up to and including
// UnsecurifiedBoundary are unsecurified.
func Classify(raw uint32) CAP26Index {
	if raw <= UnsecurifiedBoundary {
		return CAP26Index{space: Unsecurified, raw: raw}
	}
	return CAP26Index{space: Securified, raw: raw}
}

// NewUnsecurifiedIndex returns the hardened index at offset in the
// unsecurified keyspace. It panics if offset overflows the keyspace.
func NewUnsecurifiedIndex(offset uint32) CAP26Index {
	if offset > maxUnsecurifiedOffset {
		panic(fmt.Errorf("%w: unsecurified offset %d out of range", ErrInvalidKeySpace, offset))
	}
	return CAP26Index{space: Unsecurified, raw: HardenedOffset + offset}
}

// NewSecurifiedIndex returns the index at offset in the securified keyspace.
// It panics if offset overflows the keyspace.
func NewSecurifiedIndex(offset uint32) CAP26Index {
	if offset > maxSecurifiedOffset {
		panic(fmt.Errorf("%w: securified offset %d out of range", ErrInvalidKeySpace, offset))
	}
	return CAP26Index{space: Securified, raw: UnsecurifiedBoundary + 1 + offset}
}

// NewIndex returns the index at offset in space.
func NewIndex(space KeySpace, offset uint32) CAP26Index {
	if space == Securified {
		return NewSecurifiedIndex(offset)
	}
	return NewUnsecurifiedIndex(offset)
}

// MaxOffset returns the greatest offset of space.
func MaxOffset(space KeySpace) uint32 {
	if space == Securified {
		return maxSecurifiedOffset
	}
	return maxUnsecurifiedOffset
}

// KeySpace returns the keyspace of the index.
func (i CAP26Index) KeySpace() KeySpace {
	return i.space
}

// Raw returns the BIP32 value of the index.
func (i CAP26Index) Raw() uint32 {
	return i.raw
}

// Offset returns the position of the index inside its keyspace.
func (i CAP26Index) Offset() uint32 {
	if i.space == Securified {
		return i.raw - UnsecurifiedBoundary - 1
	}
	if i.raw < HardenedOffset {
		return i.raw
	}
	return i.raw - HardenedOffset
}

func (i CAP26Index) String() string {
	if i.space == Securified {
		return fmt.Sprintf("%dS", i.Offset())
	}
	return fmt.Sprintf("%dH", i.Offset())
}

// IsInKeySpace reports whether raw classifies into space.
func IsInKeySpace(raw uint32, space KeySpace) bool {
	return Classify(raw).space == space
}

// MustBeInKeySpace panics with ErrInvalidKeySpace if raw does not classify
// into space.
func MustBeInKeySpace(raw uint32, space KeySpace) {
	if !IsInKeySpace(raw, space) {
		panic(fmt.Errorf("%w: index %d is not %s", ErrInvalidKeySpace, raw, space))
	}
}
