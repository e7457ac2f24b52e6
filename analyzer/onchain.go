package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/cenkalti/backoff/v4"
	"github.com/vulpemventures/go-polyderive/address"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/instance"
	"github.com/vulpemventures/go-polyderive/network"
	"go.uber.org/zap"
)

// ErrGatewayUnavailable wraps every gateway failure surfaced by OnChain.
var ErrGatewayUnavailable = errors.New("analyzer: gateway unavailable")

const (
	defaultMemoTTL  = 10 * time.Minute
	defaultInterval = 200 * time.Millisecond

	maxIntervalFactor = 16

	usedMark byte = 1
	freeMark byte = 0
)

// OnChainOption configures an OnChain analyzer.
type OnChainOption func(*OnChain)

// WithRetries retries failed gateway calls up to n times, with an
// exponential backoff starting at interval.
func WithRetries(n int, interval time.Duration) OnChainOption {
	return func(a *OnChain) {
		a.retries = n
		a.interval = interval
	}
}

// WithMemoTTL sets how long gateway answers are remembered.
func WithMemoTTL(ttl time.Duration) OnChainOption {
	return func(a *OnChain) {
		a.memoTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) OnChainOption {
	return func(a *OnChain) {
		a.logger = logger
	}
}

// OnChain classifies unsecurified instances as taken when the address they
// control has ledger history. Answers are memoised per address.
type OnChain struct {
	gateway  Gateway
	memo     *bigcache.BigCache
	memoTTL  time.Duration
	retries  int
	interval time.Duration
	logger   *zap.Logger
}

// NewOnChain returns an analyzer querying gw.
func NewOnChain(gw Gateway, opts ...OnChainOption) (*OnChain, error) {
	a := &OnChain{
		gateway:  gw,
		memoTTL:  defaultMemoTTL,
		interval: defaultInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	config := bigcache.DefaultConfig(a.memoTTL)
	config.Verbose = false
	memo, err := bigcache.New(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("analyzer: memo: %w", err)
	}
	a.memo = memo
	return a, nil
}

// Close releases the memo.
func (a *OnChain) Close() error {
	return a.memo.Close()
}

// Taken returns the unsecurified instances whose address is used on ledger.
// Securified instances never control an address of their own and are never
// reported.
func (a *OnChain) Taken(
	ctx context.Context,
	instances []instance.FactorInstance,
) ([]instance.FactorInstance, error) {
	byAddress := make(map[address.AccountAddress][]instance.FactorInstance)
	unknown := make(map[network.ID][]address.AccountAddress)
	used := make(map[address.AccountAddress]bool)

	for _, fi := range instances {
		if fi.KeySpace() != derivation.Unsecurified {
			continue
		}
		addr := instance.AddressOf(fi)
		if _, ok := byAddress[addr]; !ok {
			mark, err := a.memo.Get(addr.String())
			switch {
			case err == nil && len(mark) == 1:
				used[addr] = mark[0] == usedMark
			case err == nil || errors.Is(err, bigcache.ErrEntryNotFound):
				unknown[addr.Network] = append(unknown[addr.Network], addr)
			default:
				return nil, fmt.Errorf("analyzer: memo: %w", err)
			}
		}
		byAddress[addr] = append(byAddress[addr], fi)
	}

	for net, addrs := range unknown {
		onLedger, err := a.query(ctx, net, addrs)
		if err != nil {
			return nil, err
		}
		isUsed := make(map[address.AccountAddress]bool, len(onLedger))
		for _, addr := range onLedger {
			isUsed[addr] = true
		}
		for _, addr := range addrs {
			used[addr] = isUsed[addr]
			mark := freeMark
			if isUsed[addr] {
				mark = usedMark
			}
			if err := a.memo.Set(addr.String(), []byte{mark}); err != nil {
				a.logger.Warn("failed to memoise address", zap.Stringer("address", addr), zap.Error(err))
			}
		}
	}

	var taken []instance.FactorInstance
	for _, fi := range instances {
		if fi.KeySpace() != derivation.Unsecurified {
			continue
		}
		if used[instance.AddressOf(fi)] {
			taken = append(taken, fi)
		}
	}
	return taken, nil
}

func (a *OnChain) query(
	ctx context.Context,
	net network.ID,
	addrs []address.AccountAddress,
) ([]address.AccountAddress, error) {
	attempt := 0
	op := func() ([]address.AccountAddress, error) {
		attempt++
		return a.gateway.UsedAddresses(ctx, net, addrs)
	}
	notify := func(err error, wait time.Duration) {
		a.logger.Debug("gateway query failed",
			zap.Int("attempt", attempt),
			zap.Int("addresses", len(addrs)),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}

	used, err := backoff.RetryNotifyWithData(op, a.newBackOff(ctx), notify)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}
	return used, nil
}

func (a *OnChain) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.interval
	b.MaxInterval = maxIntervalFactor * a.interval
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(a.retries, 0))), ctx)
}
