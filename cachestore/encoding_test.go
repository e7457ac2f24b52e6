package cachestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/internal/testutil"
)

func TestDecodeRequestRejectsMalformed(t *testing.T) {
	req := testutil.Request(testutil.FactorSourceID(factorsource.Ledger, 9), derivation.Securified)
	b := encodeRequest(req)

	got, err := decodeRequest(b)
	require.NoError(t, err)
	assert.Equal(t, req, got)

	_, err = decodeRequest(append(b, 0x00))
	assert.Error(t, err)
	_, err = decodeRequest(b[:10])
	assert.Error(t, err)
}

func TestDecodePoolChecksKeySpace(t *testing.T) {
	id := testutil.FactorSourceID(factorsource.Device, 1)
	unsec := testutil.Request(id, derivation.Unsecurified)
	sec := testutil.Request(id, derivation.Securified)
	value := encodePool(testutil.Instances(unsec, 0, 2))

	items, err := decodePool(unsec, value)
	require.NoError(t, err)
	assert.Equal(t, testutil.Instances(unsec, 0, 2), items)

	_, err = decodePool(sec, value)
	assert.Error(t, err)
}
