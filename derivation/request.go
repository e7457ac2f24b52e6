package derivation

import (
	"cmp"
	"fmt"

	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/network"
)

const (
	// Purpose is the BIP44 purpose component of every CAP26 path.
	Purpose uint32 = 44
	// CoinType is the SLIP-44 coin type component of every CAP26 path.
	CoinType uint32 = 1022
)

// EntityKind is the kind of on-ledger entity a key controls.
type EntityKind uint32

const (
	Account  EntityKind = 525
	Identity EntityKind = 618
)

func (e EntityKind) String() string {
	switch e {
	case Account:
		return "account"
	case Identity:
		return "identity"
	default:
		return fmt.Sprintf("entity(%d)", uint32(e))
	}
}

// KeyKind is the purpose of a key for its entity.
type KeyKind uint32

const (
	TransactionSigning    KeyKind = 1460
	AuthenticationSigning KeyKind = 1678
)

func (k KeyKind) String() string {
	switch k {
	case TransactionSigning:
		return "transaction_signing"
	case AuthenticationSigning:
		return "authentication_signing"
	default:
		return fmt.Sprintf("keykind(%d)", uint32(k))
	}
}

// Path is a concrete derivation request: a full CAP26 path for a factor
// source.
type Path struct {
	FactorSourceID factorsource.ID
	Network        network.ID
	EntityKind     EntityKind
	KeyKind        KeyKind
	Index          CAP26Index
}

// NewPath returns the path of the given slot.
func NewPath(
	id factorsource.ID,
	net network.ID,
	entity EntityKind,
	key KeyKind,
	index CAP26Index,
) Path {
	return Path{
		FactorSourceID: id,
		Network:        net,
		EntityKind:     entity,
		KeyKind:        key,
		Index:          index,
	}
}

// InKeySpace erases the index of the path, keeping only its keyspace. It
// panics with ErrInvalidKeySpace if the index tag disagrees with the
// keyspace its raw value classifies into.
func (p Path) InKeySpace() Request {
	space := p.Index.KeySpace()
	MustBeInKeySpace(p.Index.Raw(), space)
	return Request{
		FactorSourceID: p.FactorSourceID,
		Network:        p.Network,
		EntityKind:     p.EntityKind,
		KeyKind:        p.KeyKind,
		KeySpace:       space,
	}
}

// Components returns the BIP32 components of the path.
func (p Path) Components() []uint32 {
	return []uint32{
		Purpose + HardenedOffset,
		CoinType + HardenedOffset,
		uint32(p.Network) + HardenedOffset,
		uint32(p.EntityKind) + HardenedOffset,
		uint32(p.KeyKind) + HardenedOffset,
		p.Index.Raw(),
	}
}

// String returns the path in m/44H/1022H/... form.
func (p Path) String() string {
	return fmt.Sprintf(
		"m/%dH/%dH/%dH/%dH/%dH/%dH",
		Purpose, CoinType, uint32(p.Network), uint32(p.EntityKind),
		uint32(p.KeyKind), p.Index.Raw()-HardenedOffset,
	)
}

// Request is an abstract derivation request: a slot identified by keyspace
// only, before an index is chosen. It keys the instance cache.
type Request struct {
	FactorSourceID factorsource.ID
	Network        network.ID
	EntityKind     EntityKind
	KeyKind        KeyKind
	KeySpace       KeySpace
}

// NewRequest returns the abstract request of the given slot.
func NewRequest(
	id factorsource.ID,
	net network.ID,
	entity EntityKind,
	key KeyKind,
	space KeySpace,
) Request {
	return Request{
		FactorSourceID: id,
		Network:        net,
		EntityKind:     entity,
		KeyKind:        key,
		KeySpace:       space,
	}
}

// PathAt returns the concrete path at offset inside the request keyspace.
func (r Request) PathAt(offset uint32) Path {
	return NewPath(
		r.FactorSourceID, r.Network, r.EntityKind, r.KeyKind,
		NewIndex(r.KeySpace, offset),
	)
}

// Compare gives requests a canonical total order.
func (r Request) Compare(other Request) int {
	if c := r.FactorSourceID.Compare(other.FactorSourceID); c != 0 {
		return c
	}
	if c := cmp.Compare(r.Network, other.Network); c != 0 {
		return c
	}
	if c := cmp.Compare(r.EntityKind, other.EntityKind); c != 0 {
		return c
	}
	if c := cmp.Compare(r.KeyKind, other.KeyKind); c != 0 {
		return c
	}
	return cmp.Compare(r.KeySpace, other.KeySpace)
}

func (r Request) String() string {
	return fmt.Sprintf(
		"%s/%s/%s/%s/%s",
		r.FactorSourceID, r.Network, r.EntityKind, r.KeyKind, r.KeySpace,
	)
}
