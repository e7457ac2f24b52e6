package factorsource_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/go-polyderive/factorsource"
)

const pubKey = "03a398eed59a2368563bbd2bc68a7ccdbbd6dcbf43b298edc810d22edb6d761800"

func TestBatchSize(t *testing.T) {
	assert.Equal(t, 20, factorsource.Device.BatchSize())
	assert.Equal(t, 10, factorsource.Ledger.BatchSize())
	assert.Equal(t, 0, factorsource.Kind(42).BatchSize())
}

func TestParseKind(t *testing.T) {
	k, err := factorsource.ParseKind("Ledger")
	require.NoError(t, err)
	assert.Equal(t, factorsource.Ledger, k)

	_, err = factorsource.ParseKind("yubikey")
	assert.ErrorIs(t, err, factorsource.ErrUnknownKind)
}

func TestIDRoundTrip(t *testing.T) {
	pk, _ := hex.DecodeString(pubKey)
	id := factorsource.NewIDFromPublicKey(factorsource.Device, pk)
	assert.Equal(t, factorsource.Device, id.Kind)
	assert.NotEqual(t, [32]byte{}, id.Body)

	parsed, err := factorsource.ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	other := factorsource.NewIDFromPublicKey(factorsource.Ledger, pk)
	assert.Equal(t, id.Body, other.Body)
	assert.NotEqual(t, id, other)
	assert.Equal(t, -1, id.Compare(other))
	assert.Equal(t, 0, id.Compare(parsed))
}

func TestParseIDInvalid(t *testing.T) {
	tests := []string{"", "device", "device:zz", "device:abcd", "nope:" + pubKey[:64]}
	for _, s := range tests {
		_, err := factorsource.ParseID(s)
		assert.Error(t, err, s)
	}
}

func TestFactorSources(t *testing.T) {
	a := factorsource.New(factorsource.ID{Kind: factorsource.Device, Body: [32]byte{1}}, "a")
	b := factorsource.New(factorsource.ID{Kind: factorsource.Ledger, Body: [32]byte{2}}, "b")

	fs := factorsource.NewFactorSources(a, b, a)
	assert.Equal(t, 2, fs.Len())
	assert.Equal(t, []factorsource.FactorSource{a, b}, fs.All())
	assert.False(t, fs.Insert(b))
	assert.True(t, fs.Contains(a.ID))

	got, ok := fs.Get(b.ID)
	require.True(t, ok)
	assert.Equal(t, "b", got.Label)

	var empty factorsource.FactorSources
	assert.True(t, empty.Insert(a))
	assert.Equal(t, 1, empty.Len())
}
