package cachestore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/go-polyderive/cache"
	"github.com/vulpemventures/go-polyderive/cachestore"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/internal/testutil"
)

var (
	device = testutil.FactorSourceID(factorsource.Device, 1)
	ledger = testutil.FactorSourceID(factorsource.Ledger, 2)
)

func openStore(t *testing.T) *cachestore.Store {
	s, err := cachestore.Open(cachestore.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadEmpty(t *testing.T) {
	s := openStore(t)
	c, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestSaveLoad(t *testing.T) {
	s := openStore(t)

	unsec := testutil.Request(device, derivation.Unsecurified)
	sec := testutil.Request(ledger, derivation.Securified)
	c := cache.New(append(testutil.Instances(unsec, 0, 20), testutil.Instances(sec, 3, 2)...)...)
	c.Load(sec)
	c.Advance(unsec.PathAt(30))

	require.NoError(t, s.Save(c))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, c.Snapshot(), loaded.Snapshot())
	assert.Equal(t, uint32(31), loaded.NextOffset(unsec, 0))
	assert.Equal(t, uint32(5), loaded.NextOffset(sec, 0))
	assert.Equal(t, testutil.Instances(unsec, 0, 20), loaded.Peek(unsec))
}

func TestSaveReplaces(t *testing.T) {
	s := openStore(t)

	unsec := testutil.Request(device, derivation.Unsecurified)
	require.NoError(t, s.Save(cache.New(testutil.Instances(unsec, 0, 3)...)))

	c := cache.New(testutil.Instances(unsec, 0, 3)...)
	c.Take(map[derivation.Request]int{unsec: 2})
	require.NoError(t, s.Save(c))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())

	require.NoError(t, s.Save(cache.New()))
	loaded, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
	assert.Equal(t, uint32(0), loaded.NextOffset(unsec, 0))
}
