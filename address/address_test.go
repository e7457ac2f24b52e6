package address_test

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/go-polyderive/address"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/network"
)

const (
	privKeyHex = "1cc080a4cd371eafcad489a29664af6a7276b362fe783443ce036552482b971d"
	// native segwit address committing to hash160 of the public key of
	// privKeyHex
	segwitAddress = "ert1qlg343tpldc4wvjxn3jdq2qs35r8j5yd5kjfrrt"
)

func publicKey(t *testing.T) []byte {
	b, err := hex.DecodeString(privKeyHex)
	require.NoError(t, err)
	_, pub := btcec.PrivKeyFromBytes(b)
	return pub.SerializeCompressed()
}

func TestHash160(t *testing.T) {
	_, data, err := bech32.Decode(segwitAddress)
	require.NoError(t, err)
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	require.NoError(t, err)

	assert.Equal(t, program, address.Hash160(publicKey(t)))
}

func TestFromPublicKey(t *testing.T) {
	pub := publicKey(t)
	tests := []struct {
		net    network.ID
		entity derivation.EntityKind
		prefix string
	}{
		{network.MainnetID, derivation.Account, "account_rdx1"},
		{network.MainnetID, derivation.Identity, "identity_rdx1"},
		{network.StokenetID, derivation.Account, "account_tdx_2_1"},
		{network.StokenetID, derivation.Identity, "identity_tdx_2_1"},
	}

	for _, tt := range tests {
		addr := address.FromPublicKey(tt.net, tt.entity, pub)
		assert.Equal(t, address.Hash160(pub), addr.Hash[:])

		encoded, err := addr.Encode()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(encoded, tt.prefix), encoded)

		decoded, err := address.Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, addr, decoded)
	}
}

func TestAddressesDifferPerNetwork(t *testing.T) {
	pub := publicKey(t)
	main := address.FromPublicKey(network.MainnetID, derivation.Account, pub)
	test := address.FromPublicKey(network.StokenetID, derivation.Account, pub)
	assert.NotEqual(t, main, test)
	assert.NotEqual(t, main.String(), test.String())
}

func TestDecodeInvalid(t *testing.T) {
	tests := []string{
		"",
		segwitAddress,
		"account_rdx1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq",
	}
	for _, s := range tests {
		_, err := address.Decode(s)
		assert.ErrorIs(t, err, address.ErrInvalidAddress, s)
	}
}

func TestTextMarshaling(t *testing.T) {
	addr := address.FromPublicKey(network.MainnetID, derivation.Account, publicKey(t))
	text, err := addr.MarshalText()
	require.NoError(t, err)

	var got address.AccountAddress
	require.NoError(t, got.UnmarshalText(text))
	assert.Equal(t, addr, got)

	unknown := address.AccountAddress{Network: network.ID(99)}
	_, err = unknown.MarshalText()
	assert.Error(t, err)
	assert.Contains(t, unknown.String(), "network(99):")
}
