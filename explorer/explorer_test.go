package explorer_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulpemventures/go-polyderive/address"
	"github.com/vulpemventures/go-polyderive/analyzer"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/explorer"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/instance"
	"github.com/vulpemventures/go-polyderive/internal/testutil"
	"github.com/vulpemventures/go-polyderive/network"
)

var req = testutil.Request(testutil.FactorSourceID(factorsource.Device, 1), derivation.Unsecurified)

func addrAt(offset uint32) address.AccountAddress {
	return instance.AddressOf(testutil.Instance(req, offset))
}

// newServer answers with chain stats for confirmed, mempool stats for
// pending and 404 for every other address.
func newServer(t *testing.T, confirmed, pending address.AccountAddress) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		encoded := strings.TrimPrefix(r.URL.Path, "/address/")
		body := map[string]any{"address": encoded}
		switch encoded {
		case confirmed.String():
			body["chain_stats"] = map[string]int{"tx_count": 3}
		case pending.String():
			body["mempool_stats"] = map[string]int{"tx_count": 1}
		default:
			http.NotFound(w, r)
			return
		}
		assert.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestUsedAddresses(t *testing.T) {
	srv, calls := newServer(t, addrAt(0), addrAt(2))
	e := explorer.New(explorer.WithNetwork(network.MainnetID, srv.URL+"/"))

	addrs := []address.AccountAddress{addrAt(0), addrAt(1), addrAt(2), addrAt(3)}
	used, err := e.UsedAddresses(context.Background(), network.MainnetID, addrs)
	require.NoError(t, err)

	assert.Equal(t, []address.AccountAddress{addrAt(0), addrAt(2)}, used)
	assert.Equal(t, int32(4), atomic.LoadInt32(calls))
}

func TestUsedAddressesErrors(t *testing.T) {
	e := explorer.New()
	_, err := e.UsedAddresses(context.Background(), network.MainnetID, []address.AccountAddress{addrAt(0)})
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e = explorer.New(explorer.WithNetwork(network.MainnetID, srv.URL))
	_, err = e.UsedAddresses(context.Background(), network.MainnetID, []address.AccountAddress{addrAt(0)})
	assert.ErrorIs(t, err, explorer.ErrUnexpectedStatus)
}

func TestExplorerBacksOnChainAnalyzer(t *testing.T) {
	srv, calls := newServer(t, addrAt(1), addrAt(7))
	onChain, err := analyzer.NewOnChain(
		explorer.New(explorer.WithNetwork(network.MainnetID, srv.URL), explorer.WithHTTPClient(srv.Client())),
	)
	require.NoError(t, err)
	defer onChain.Close()

	items := testutil.Instances(req, 0, 3)
	taken, err := onChain.Taken(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, []instance.FactorInstance{items[1]}, taken)

	// Answers are memoised.
	_, err = onChain.Taken(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}
