// Package hdsigner is a key derivation provider backed by BIP39 mnemonics.
// Each mnemonic acts as one factor source and answers CAP26 paths with
// secp256k1 public keys derived along BIP32 hardened indices.
package hdsigner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/instance"
	"go.uber.org/zap"
)

var (
	// ErrInvalidMnemonic is returned when a mnemonic fails its checksum.
	ErrInvalidMnemonic = errors.New("hdsigner: invalid mnemonic")
	// ErrUnknownFactorSource is returned when deriving for a factor source
	// the provider holds no mnemonic for.
	ErrUnknownFactorSource = errors.New("hdsigner: unknown factor source")
)

// idKeyIndex is the hardened component, below m/44H/1022H, of the key
// whose hash identifies the factor source.
const idKeyIndex uint32 = 365

// Signer derives keys for the factor source of a single mnemonic.
type Signer struct {
	master *hdkeychain.ExtendedKey
	source factorsource.FactorSource

	mu      sync.Mutex
	parents map[[5]uint32]*hdkeychain.ExtendedKey
}

// NewSigner returns the signer of mnemonic, protected by passphrase, acting
// as a factor source of kind.
func NewSigner(mnemonic, passphrase string, kind factorsource.Kind, label string) (*Signer, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMnemonic, err)
	}
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}

	s := &Signer{
		master:  master,
		parents: make(map[[5]uint32]*hdkeychain.ExtendedKey),
	}

	idKey, err := derive(master,
		derivation.Purpose+derivation.HardenedOffset,
		derivation.CoinType+derivation.HardenedOffset,
		idKeyIndex+derivation.HardenedOffset,
	)
	if err != nil {
		return nil, err
	}
	pub, err := idKey.ECPubKey()
	if err != nil {
		return nil, err
	}
	id := factorsource.NewIDFromPublicKey(kind, pub.SerializeCompressed())
	s.source = factorsource.New(id, label)
	return s, nil
}

// NewMnemonic returns a fresh 24 words mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// FactorSource returns the factor source of the signer.
func (s *Signer) FactorSource() factorsource.FactorSource {
	return s.source
}

// PublicKey derives the public key at path.
func (s *Signer) PublicKey(path derivation.Path) (instance.PublicKey, error) {
	if path.FactorSourceID != s.source.ID {
		return instance.PublicKey{}, fmt.Errorf(
			"%w: %s", ErrUnknownFactorSource, path.FactorSourceID,
		)
	}
	components := path.Components()

	parent, err := s.parent(components[:5])
	if err != nil {
		return instance.PublicKey{}, err
	}
	child, err := parent.Derive(components[5])
	if err != nil {
		return instance.PublicKey{}, fmt.Errorf("derive %s: %w", path, err)
	}
	pub, err := child.ECPubKey()
	if err != nil {
		return instance.PublicKey{}, fmt.Errorf("public key at %s: %w", path, err)
	}
	return instance.ParsePublicKey(pub.SerializeCompressed())
}

// parent returns the key at the given path prefix, deriving it once.
func (s *Signer) parent(prefix []uint32) (*hdkeychain.ExtendedKey, error) {
	var key [5]uint32
	copy(key[:], prefix)

	s.mu.Lock()
	defer s.mu.Unlock()

	if parent, ok := s.parents[key]; ok {
		return parent, nil
	}
	parent, err := derive(s.master, prefix...)
	if err != nil {
		return nil, err
	}
	// Force lazy pubkey computation so concurrent Derive calls don't race.
	if _, err := parent.ECPubKey(); err != nil {
		return nil, err
	}
	s.parents[key] = parent
	return parent, nil
}

func derive(key *hdkeychain.ExtendedKey, path ...uint32) (*hdkeychain.ExtendedKey, error) {
	var err error
	for _, i := range path {
		key, err = key.Derive(i)
		if err != nil {
			return nil, fmt.Errorf("derive component %d: %w", i, err)
		}
	}
	return key, nil
}

// Provider answers derivation requests with the signers it holds.
type Provider struct {
	signers map[factorsource.ID]*Signer
	logger  *zap.Logger
}

// NewProvider returns a provider over signers.
func NewProvider(logger *zap.Logger, signers ...*Signer) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provider{
		signers: make(map[factorsource.ID]*Signer, len(signers)),
		logger:  logger,
	}
	for _, s := range signers {
		p.signers[s.source.ID] = s
	}
	return p
}

// FactorSources returns the factor sources of the signers.
func (p *Provider) FactorSources() *factorsource.FactorSources {
	fs := factorsource.NewFactorSources()
	for _, s := range p.signers {
		fs.Insert(s.source)
	}
	return fs
}

// Derive returns an instance for every requested path.
func (p *Provider) Derive(
	ctx context.Context,
	paths map[factorsource.ID][]derivation.Path,
) ([]instance.FactorInstance, error) {
	var out []instance.FactorInstance
	for id, list := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		signer, ok := p.signers[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFactorSource, id)
		}
		for _, path := range list {
			pub, err := signer.PublicKey(path)
			if err != nil {
				return nil, err
			}
			fi, err := instance.New(path, pub, id)
			if err != nil {
				return nil, err
			}
			out = append(out, fi)
		}
		p.logger.Debug("derived public keys",
			zap.Stringer("factor_source", id),
			zap.Int("count", len(list)),
		)
	}
	return out, nil
}
