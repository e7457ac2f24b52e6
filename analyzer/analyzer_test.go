package analyzer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/go-polyderive/account"
	"github.com/vulpemventures/go-polyderive/address"
	"github.com/vulpemventures/go-polyderive/analyzer"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/instance"
	"github.com/vulpemventures/go-polyderive/internal/testutil"
	"github.com/vulpemventures/go-polyderive/network"
	"github.com/vulpemventures/go-polyderive/profile"
)

var (
	device = testutil.FactorSourceID(factorsource.Device, 1)
	unsec  = testutil.Request(device, derivation.Unsecurified)
	sec    = testutil.Request(device, derivation.Securified)
)

// mockGateway answers from a fixed set of used addresses and fails the first
// failures calls.
type mockGateway struct {
	mu        sync.Mutex
	used      map[address.AccountAddress]bool
	failures  int
	callCount int
	asked     int
}

func (m *mockGateway) UsedAddresses(
	_ context.Context,
	_ network.ID,
	addrs []address.AccountAddress,
) ([]address.AccountAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	if m.callCount <= m.failures {
		return nil, errors.New("connection refused")
	}
	m.asked += len(addrs)
	var out []address.AccountAddress
	for _, a := range addrs {
		if m.used[a] {
			out = append(out, a)
		}
	}
	return out, nil
}

func usedGateway(items ...instance.FactorInstance) *mockGateway {
	gw := &mockGateway{used: make(map[address.AccountAddress]bool)}
	for _, fi := range items {
		gw.used[instance.AddressOf(fi)] = true
	}
	return gw
}

func TestDummy(t *testing.T) {
	taken, err := analyzer.Dummy().Taken(context.Background(), testutil.Instances(unsec, 0, 3))
	require.NoError(t, err)
	assert.Empty(t, taken)
	assert.Equal(t, uint32(0), analyzer.Dummy().Floor(unsec))
}

func TestOnChainTaken(t *testing.T) {
	items := testutil.Instances(unsec, 0, 5)
	gw := usedGateway(items[1], items[3])

	a, err := analyzer.NewOnChain(gw)
	require.NoError(t, err)
	defer a.Close()

	candidates := append(items, testutil.Instances(sec, 0, 2)...)
	taken, err := a.Taken(context.Background(), candidates)
	require.NoError(t, err)
	assert.Equal(t, []instance.FactorInstance{items[1], items[3]}, taken)
	assert.Equal(t, 1, gw.callCount)
	assert.Equal(t, 5, gw.asked)

	taken, err = a.Taken(context.Background(), items)
	require.NoError(t, err)
	assert.Len(t, taken, 2)
	assert.Equal(t, 1, gw.callCount)
}

func TestOnChainRetries(t *testing.T) {
	items := testutil.Instances(unsec, 0, 2)
	gw := usedGateway(items[0])
	gw.failures = 2

	a, err := analyzer.NewOnChain(gw, analyzer.WithRetries(2, time.Millisecond))
	require.NoError(t, err)
	defer a.Close()

	taken, err := a.Taken(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, []instance.FactorInstance{items[0]}, taken)
	assert.Equal(t, 3, gw.callCount)
}

func TestOnChainGatewayUnavailable(t *testing.T) {
	gw := usedGateway()
	gw.failures = 10

	a, err := analyzer.NewOnChain(gw, analyzer.WithRetries(1, time.Millisecond))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Taken(context.Background(), testutil.Instances(unsec, 0, 1))
	assert.ErrorIs(t, err, analyzer.ErrGatewayUnavailable)
	assert.Equal(t, 2, gw.callCount)
}

func TestOnChainCancelled(t *testing.T) {
	gw := usedGateway()
	gw.failures = 10

	a, err := analyzer.NewOnChain(gw, analyzer.WithRetries(5, time.Hour))
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = a.Taken(ctx, testutil.Instances(unsec, 0, 1))
	assert.ErrorIs(t, err, analyzer.ErrGatewayUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProfileAnalyzer(t *testing.T) {
	items := testutil.Instances(unsec, 0, 6)
	u := account.NewUnsecurifiedAccount(instance.MustUnsecurified(items[4]))

	secItem := instance.MustSecurified(testutil.Instance(sec, 2))
	matrix, err := account.NewMatrix([]instance.Securified{secItem}, 1, nil)
	require.NoError(t, err)
	other := account.NewUnsecurifiedAccount(instance.MustUnsecurified(items[1]))
	securified := account.Securify(other, matrix)

	p, err := profile.New(network.MainnetID, nil, u.Account(), securified.Account())
	require.NoError(t, err)

	a := analyzer.NewProfile(p)
	taken, err := a.Taken(context.Background(), append(items, secItem.Instance()))
	require.NoError(t, err)
	assert.Equal(t, []instance.FactorInstance{items[1], items[4], secItem.Instance()}, taken)

	assert.Equal(t, uint32(5), a.Floor(unsec))
	assert.Equal(t, uint32(3), a.Floor(sec))
}
