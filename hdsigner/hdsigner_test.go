package hdsigner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/hdsigner"
	"github.com/vulpemventures/go-polyderive/network"
)

const (
	mnemonic1 = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	mnemonic2 = "zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo wrong"
)

func newSigner(t *testing.T, mnemonic string, kind factorsource.Kind) *hdsigner.Signer {
	s, err := hdsigner.NewSigner(mnemonic, "", kind, kind.String())
	require.NoError(t, err)
	return s
}

func request(id factorsource.ID, space derivation.KeySpace) derivation.Request {
	return derivation.NewRequest(id, network.MainnetID, derivation.Account, derivation.TransactionSigning, space)
}

func TestNewSigner(t *testing.T) {
	a := newSigner(t, mnemonic1, factorsource.Device)
	b := newSigner(t, mnemonic1, factorsource.Device)
	c := newSigner(t, mnemonic2, factorsource.Device)

	assert.Equal(t, a.FactorSource(), b.FactorSource())
	assert.NotEqual(t, a.FactorSource().ID, c.FactorSource().ID)
	assert.Equal(t, factorsource.Device, a.FactorSource().Kind())

	withPassphrase, err := hdsigner.NewSigner(mnemonic1, "TREZOR", factorsource.Device, "")
	require.NoError(t, err)
	assert.NotEqual(t, a.FactorSource().ID, withPassphrase.FactorSource().ID)

	_, err = hdsigner.NewSigner("abandon abandon abandon", "", factorsource.Device, "")
	assert.ErrorIs(t, err, hdsigner.ErrInvalidMnemonic)
}

func TestNewMnemonic(t *testing.T) {
	m, err := hdsigner.NewMnemonic()
	require.NoError(t, err)
	_, err = hdsigner.NewSigner(m, "", factorsource.Ledger, "")
	assert.NoError(t, err)
}

func TestPublicKeyDeterministic(t *testing.T) {
	s := newSigner(t, mnemonic1, factorsource.Device)
	req := request(s.FactorSource().ID, derivation.Unsecurified)

	k0, err := s.PublicKey(req.PathAt(0))
	require.NoError(t, err)
	again, err := s.PublicKey(req.PathAt(0))
	require.NoError(t, err)
	k1, err := s.PublicKey(req.PathAt(1))
	require.NoError(t, err)
	ks, err := s.PublicKey(request(s.FactorSource().ID, derivation.Securified).PathAt(0))
	require.NoError(t, err)

	assert.Equal(t, k0, again)
	assert.NotEqual(t, k0, k1)
	assert.NotEqual(t, k0, ks)

	other := newSigner(t, mnemonic2, factorsource.Device)
	_, err = s.PublicKey(request(other.FactorSource().ID, derivation.Unsecurified).PathAt(0))
	assert.ErrorIs(t, err, hdsigner.ErrUnknownFactorSource)
}

func TestProviderDerive(t *testing.T) {
	device := newSigner(t, mnemonic1, factorsource.Device)
	ledger := newSigner(t, mnemonic2, factorsource.Ledger)
	p := hdsigner.NewProvider(nil, device, ledger)
	assert.Equal(t, 2, p.FactorSources().Len())

	dreq := request(device.FactorSource().ID, derivation.Unsecurified)
	lreq := request(ledger.FactorSource().ID, derivation.Securified)
	paths := map[factorsource.ID][]derivation.Path{
		device.FactorSource().ID: {dreq.PathAt(0), dreq.PathAt(1)},
		ledger.FactorSource().ID: {lreq.PathAt(5)},
	}

	instances, err := p.Derive(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, instances, 3)
	for _, fi := range instances {
		assert.Equal(t, fi.Path.FactorSourceID, fi.FactorSourceID)
		expected, err := map[factorsource.ID]*hdsigner.Signer{
			device.FactorSource().ID: device,
			ledger.FactorSource().ID: ledger,
		}[fi.FactorSourceID].PublicKey(fi.Path)
		require.NoError(t, err)
		assert.Equal(t, expected, fi.PublicKey)
	}
}

func TestProviderErrors(t *testing.T) {
	device := newSigner(t, mnemonic1, factorsource.Device)
	p := hdsigner.NewProvider(nil, device)

	unknown := factorsource.ID{Kind: factorsource.Ledger}
	_, err := p.Derive(context.Background(), map[factorsource.ID][]derivation.Path{
		unknown: {request(unknown, derivation.Unsecurified).PathAt(0)},
	})
	assert.ErrorIs(t, err, hdsigner.ErrUnknownFactorSource)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	id := device.FactorSource().ID
	_, err = p.Derive(ctx, map[factorsource.ID][]derivation.Path{
		id: {request(id, derivation.Unsecurified).PathAt(0)},
	})
	assert.ErrorIs(t, err, context.Canceled)
}
