// Package explorer implements an analyzer gateway over the REST API of a
// block explorer, where GET /address/{address} returns the transaction
// stats of an address.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vulpemventures/go-polyderive/address"
	"github.com/vulpemventures/go-polyderive/network"
)

const defaultTimeout = 15 * time.Second

// ErrUnexpectedStatus is returned when the explorer answers with a status
// other than 200 or 404.
var ErrUnexpectedStatus = errors.New("explorer: unexpected status")

// Explorer is safe for concurrent use.
type Explorer struct {
	baseURLs map[network.ID]string
	client   *http.Client
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithHTTPClient replaces the default http client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Explorer) {
		e.client = c
	}
}

// WithNetwork sets the base url of the explorer of net.
func WithNetwork(net network.ID, baseURL string) Option {
	return func(e *Explorer) {
		e.baseURLs[net] = strings.TrimRight(baseURL, "/")
	}
}

// New returns a gateway querying the explorers set with WithNetwork.
func New(opts ...Option) *Explorer {
	e := &Explorer{
		baseURLs: make(map[network.ID]string),
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type txStats struct {
	TxCount int `json:"tx_count"`
}

type addressInfo struct {
	Address      string  `json:"address"`
	ChainStats   txStats `json:"chain_stats"`
	MempoolStats txStats `json:"mempool_stats"`
}

// UsedAddresses returns the addresses with at least one confirmed or pending
// transaction.
func (e *Explorer) UsedAddresses(
	ctx context.Context,
	net network.ID,
	addrs []address.AccountAddress,
) ([]address.AccountAddress, error) {
	baseURL, ok := e.baseURLs[net]
	if !ok {
		return nil, fmt.Errorf("explorer: no url for network %s", net)
	}

	var used []address.AccountAddress
	for _, addr := range addrs {
		info, err := e.address(ctx, baseURL, addr)
		if err != nil {
			return nil, err
		}
		if info.ChainStats.TxCount+info.MempoolStats.TxCount > 0 {
			used = append(used, addr)
		}
	}
	return used, nil
}

func (e *Explorer) address(
	ctx context.Context,
	baseURL string,
	addr address.AccountAddress,
) (*addressInfo, error) {
	encoded, err := addr.Encode()
	if err != nil {
		return nil, err
	}

	url := baseURL + "/address/" + encoded
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return &addressInfo{Address: encoded}, nil
	default:
		return nil, fmt.Errorf("%w: %s: %d", ErrUnexpectedStatus, url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	info := &addressInfo{}
	if err := json.Unmarshal(data, info); err != nil {
		return nil, fmt.Errorf("explorer: decode %s: %w", url, err)
	}
	return info, nil
}
