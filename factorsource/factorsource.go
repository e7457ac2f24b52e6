// Package factorsource defines the signing sources keys are derived from and
// the hash based identifiers they are known by.
package factorsource

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

var (
	// ErrUnknownKind is returned when parsing an unsupported factor source kind.
	ErrUnknownKind = errors.New("factorsource: unknown kind")
	// ErrInvalidID is returned when a factor source id string is malformed.
	ErrInvalidID = errors.New("factorsource: invalid id")
)

// Kind is the type of signing source.
type Kind uint8

const (
	// Device is a mnemonic stored on the host device.
	Device Kind = iota + 1
	// Ledger is a hardware signer.
	Ledger
)

const (
	deviceBatchSize = 20
	ledgerBatchSize = 10
)

var kindNames = map[Kind]string{
	Device: "device",
	Ledger: "ledger",
}

// BatchSize returns how many instances are derived per round for the kind.
func (k Kind) BatchSize() int {
	switch k {
	case Device:
		return deviceBatchSize
	case Ledger:
		return ledgerBatchSize
	default:
		return 0
	}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind returns the kind with the given name.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == strings.ToLower(name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownKind, name)
}

// Kinds returns every supported kind.
func Kinds() []Kind {
	return []Kind{Device, Ledger}
}

// ID identifies a factor source by its kind and the hash of a public key
// the source controls.
type ID struct {
	Kind Kind
	Body [32]byte
}

// NewIDFromPublicKey hashes the serialized public key with blake2b-256.
func NewIDFromPublicKey(kind Kind, pubkey []byte) ID {
	return ID{Kind: kind, Body: blake2b.Sum256(pubkey)}
}

// ParseID parses the kind:hex form returned by String.
func ParseID(s string) (ID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return ID{}, fmt.Errorf("%w: %s", ErrInvalidID, s)
	}
	kind, err := ParseKind(parts[0])
	if err != nil {
		return ID{}, err
	}
	body, err := hex.DecodeString(parts[1])
	if err != nil || len(body) != 32 {
		return ID{}, fmt.Errorf("%w: %s", ErrInvalidID, s)
	}
	id := ID{Kind: kind}
	copy(id.Body[:], body)
	return id, nil
}

func (id ID) String() string {
	return id.Kind.String() + ":" + hex.EncodeToString(id.Body[:])
}

// Compare orders ids by kind then body.
func (id ID) Compare(other ID) int {
	if id.Kind != other.Kind {
		if id.Kind < other.Kind {
			return -1
		}
		return 1
	}
	return bytes.Compare(id.Body[:], other.Body[:])
}

// FactorSource is an immutable signing source.
type FactorSource struct {
	ID    ID
	Label string
}

// New returns a factor source with the given id.
func New(id ID, label string) FactorSource {
	return FactorSource{ID: id, Label: label}
}

// FactorSourceID returns the id of the source.
func (f FactorSource) FactorSourceID() ID {
	return f.ID
}

// Kind returns the kind of the source.
func (f FactorSource) Kind() Kind {
	return f.ID.Kind
}

// FactorSources is an insertion ordered collection of sources, unique by id.
// The zero value is an empty collection ready to use.
type FactorSources struct {
	items []FactorSource
	index map[ID]int
}

// NewFactorSources returns a collection holding the given sources, skipping
// duplicated ids.
func NewFactorSources(sources ...FactorSource) *FactorSources {
	fs := &FactorSources{}
	for _, s := range sources {
		fs.Insert(s)
	}
	return fs
}

// Insert appends the source and reports whether it was not already present.
func (fs *FactorSources) Insert(source FactorSource) bool {
	if fs.index == nil {
		fs.index = make(map[ID]int)
	}
	if _, ok := fs.index[source.ID]; ok {
		return false
	}
	fs.index[source.ID] = len(fs.items)
	fs.items = append(fs.items, source)
	return true
}

// Contains reports whether a source with id is present.
func (fs *FactorSources) Contains(id ID) bool {
	_, ok := fs.index[id]
	return ok
}

// Get returns the source with id.
func (fs *FactorSources) Get(id ID) (FactorSource, bool) {
	i, ok := fs.index[id]
	if !ok {
		return FactorSource{}, false
	}
	return fs.items[i], true
}

// Len returns the number of sources.
func (fs *FactorSources) Len() int {
	return len(fs.items)
}

// All returns the sources in insertion order.
func (fs *FactorSources) All() []FactorSource {
	out := make([]FactorSource, len(fs.items))
	copy(out, fs.items)
	return out
}

// Clone returns an independent copy of the collection.
func (fs *FactorSources) Clone() *FactorSources {
	return NewFactorSources(fs.items...)
}
