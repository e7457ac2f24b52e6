package polyderive

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vulpemventures/go-polyderive/account"
	"github.com/vulpemventures/go-polyderive/analyzer"
	"github.com/vulpemventures/go-polyderive/cache"
	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/instance"
	"github.com/vulpemventures/go-polyderive/network"
	"github.com/vulpemventures/go-polyderive/predicate"
	"github.com/vulpemventures/go-polyderive/profile"
)

// State is the step an Orchestrator is at.
type State int

const (
	StateInitializing State = iota
	StateDeriving
	StateChecking
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateDeriving:
		return "deriving"
	case StateChecking:
		return "checking"
	case StateFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache shares c with the orchestrator. Without one an empty cache is
// used and returned in the Result.
func WithCache(c *cache.Cache) Option {
	return func(o *Orchestrator) {
		o.cache = c
	}
}

// WithOnChainAnalyzer sets the analyzer reporting instances used on ledger.
func WithOnChainAnalyzer(a analyzer.Analyzer) Option {
	return func(o *Orchestrator) {
		o.onChain = a
	}
}

// WithProfile sets the profile whose accounts count as taken. The profile is
// only read.
func WithProfile(p *profile.Profile) Option {
	return func(o *Orchestrator) {
		o.profile = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		o.config = cfg
	}
}

// WithMaxRounds bounds the number of derive and check rounds.
func WithMaxRounds(n int) Option {
	return func(o *Orchestrator) {
		o.config.MaxRounds = n
	}
}

// WithRoundTimeout sets the deadline of each round.
func WithRoundTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.config.RoundTimeout = d
	}
}

// WithAnalyzerFailurePolicy sets what to do when an analyzer fails.
func WithAnalyzerFailurePolicy(p AnalyzerFailurePolicy) Option {
	return func(o *Orchestrator) {
		o.config.AnalyzerFailurePolicy = p
	}
}

// Orchestrator runs one derivation request to completion.
type Orchestrator struct {
	kind     RequestKind
	provider KeyDerivationProvider
	plan     *plan

	cache           *cache.Cache
	onChain         analyzer.Analyzer
	profile         *profile.Profile
	profileAnalyzer analyzer.ProfileAnalyzer

	config Config
	logger *zap.Logger

	mu    sync.Mutex
	state State
	ran   bool
}

// Result is what a successful run produced.
type Result struct {
	ScanID uuid.UUID
	Kind   RequestKind
	Rounds int
	// Derived holds every instance the run consumed, with the known taken
	// ones marked.
	Derived *instance.Derived
	// Accounts are the recovered accounts of a scan, or the single account
	// created or updated by an account flow.
	Accounts []account.Account
	// Cache is the refreshed cache, holding every probably free instance
	// the run did not hand out.
	Cache *cache.Cache
}

// plan is what a request kind fixes at initialization.
type plan struct {
	network    network.ID
	quantities map[derivation.Request]int
	requests   []derivation.Request
	predicate  predicate.Predicate
	// scan runs keep every derived instance in the result; other runs only
	// keep the wanted quantity and pool the rest of each batch.
	scan bool
}

func newPlan(net network.ID, scan bool) *plan {
	return &plan{
		network:    net,
		quantities: make(map[derivation.Request]int),
		scan:       scan,
	}
}

func (p *plan) want(r derivation.Request, n int) {
	if _, ok := p.quantities[r]; !ok {
		p.requests = append(p.requests, r)
	}
	p.quantities[r] = n
}

// New returns an orchestrator for kind. At least one of a cache, an on-chain
// analyzer or a profile is required.
func New(kind RequestKind, provider KeyDerivationProvider, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		kind:     kind,
		provider: provider,
		config:   DefaultConfig(),
		logger:   zap.NewNop(),
		state:    StateInitializing,
	}
	for _, opt := range opts {
		opt(o)
	}

	if kind == nil {
		return nil, NewError(ErrInvalidRequest, "missing request kind")
	}
	if provider == nil {
		return nil, NewError(ErrInvalidRequest, "missing key derivation provider")
	}
	if o.cache == nil && o.onChain == nil && o.profile == nil {
		return nil, NewError(
			ErrInvalidRequest, "one of cache, on-chain analyzer or profile is required",
		)
	}
	if err := o.config.Validate(); err != nil {
		return nil, WrapError(ErrInvalidRequest, "invalid config", err)
	}

	p, err := o.newPlan()
	if err != nil {
		return nil, err
	}
	o.plan = p

	if o.cache == nil {
		o.cache = cache.New()
	}
	if o.onChain == nil {
		o.onChain = analyzer.Dummy()
	}
	o.profileAnalyzer = analyzer.Dummy()
	if o.profile != nil {
		o.profileAnalyzer = analyzer.NewProfile(o.profile)
	}
	return o, nil
}

// State returns the step the orchestrator is at.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
}

func (o *Orchestrator) newPlan() (*plan, error) {
	switch k := o.kind.(type) {
	case OARS:
		if k.FactorSources == nil || k.FactorSources.Len() == 0 {
			return nil, NewError(ErrInvalidRequest, "recovery scan without factor sources")
		}
		p := newPlan(network.MainnetID, true)
		all := make([]predicate.Predicate, 0, k.FactorSources.Len())
		for _, fs := range k.FactorSources.All() {
			all = append(all, o.wantScan(p, fs))
		}
		p.predicate = predicate.All(all...)
		return p, nil

	case MARS:
		if err := checkNetwork(k.Network); err != nil {
			return nil, err
		}
		p := newPlan(k.Network, true)
		p.predicate = o.wantScan(p, k.FactorSource)
		return p, nil

	case NewVirtualUnsecurifiedAccount:
		if err := checkNetwork(k.Network); err != nil {
			return nil, err
		}
		p := newPlan(k.Network, false)
		r := accountRequest(k.FactorSource.ID, k.Network, derivation.Unsecurified)
		p.want(r, 1)
		p.predicate = predicate.MatchesSpecificRequest(r)
		return p, nil

	case SecurifyUnsecurifiedAccount:
		return o.securifyPlan(k.Account.Address.Network, k.Matrix)

	case UpdateSecurifiedAccount:
		return o.securifyPlan(k.Account.Address.Network, k.Matrix)

	case PreDeriveInstancesForNewFactorSource:
		if err := checkNetwork(k.Network); err != nil {
			return nil, err
		}
		p := newPlan(k.Network, true)
		n := o.config.BatchSize(k.FactorSource.Kind())
		p.want(accountRequest(k.FactorSource.ID, k.Network, derivation.Unsecurified), n)
		p.want(accountRequest(k.FactorSource.ID, k.Network, derivation.Securified), n)
		p.predicate = predicate.AlwaysDone()
		return p, nil

	default:
		return nil, NewError(ErrInvalidRequest, "unknown request kind")
	}
}

// wantScan adds a batch of unsecurified account instances of fs to p and
// returns the predicate satisfied once the batch is in the result.
func (o *Orchestrator) wantScan(p *plan, fs factorsource.FactorSource) predicate.Predicate {
	n := o.config.BatchSize(fs.Kind())
	p.want(accountRequest(fs.ID, p.network, derivation.Unsecurified), n)
	return predicate.HasCountForFactorSource(predicate.Specific(fs.ID), n)
}

func (o *Orchestrator) securifyPlan(net network.ID, matrix account.MatrixOfFactorSources) (*plan, error) {
	if err := checkNetwork(net); err != nil {
		return nil, err
	}
	if err := matrix.Validate(); err != nil {
		return nil, WrapError(ErrInvalidRequest, "invalid matrix", err)
	}
	p := newPlan(net, false)
	for _, fs := range matrix.AllFactors() {
		p.want(accountRequest(fs.ID, net, derivation.Securified), 1)
	}
	p.predicate = predicate.HasFreeSecurified(matrix.AllFactorSourceIDs()...)
	return p, nil
}

func checkNetwork(net network.ID) error {
	if _, err := net.Params(); err != nil {
		return WrapError(ErrInvalidRequest, "invalid network", err)
	}
	return nil
}

func accountRequest(id factorsource.ID, net network.ID, space derivation.KeySpace) derivation.Request {
	return derivation.NewRequest(
		id, net, derivation.Account, derivation.TransactionSigning, space,
	)
}

// scan is the state of a single run.
type scan struct {
	id           uuid.UUID
	logger       *zap.Logger
	derived      *instance.Derived
	profileTaken map[instance.FactorInstance]struct{}
	rounds       int
}

// Run derives until the request is satisfied. An orchestrator runs once.
//
// On failure every consumed instance not known to be taken goes back to the
// cache and nothing else changes.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	o.mu.Lock()
	if o.ran {
		o.mu.Unlock()
		return nil, NewError(ErrInvalidRequest, "orchestrator already ran")
	}
	o.ran = true
	o.mu.Unlock()

	id := uuid.New()
	s := &scan{
		id: id,
		logger: o.logger.With(
			zap.String("scan_id", id.String()),
			zap.String("kind", o.kind.Name()),
		),
		derived:      instance.NewDerived(o.plan.network),
		profileTaken: make(map[instance.FactorInstance]struct{}),
	}

	s.logger.Debug("scan started", zap.Int("requests", len(o.plan.requests)))

	res, err := o.run(ctx, s)
	if err != nil {
		o.cache.Insert(s.derived.ProbablyFree()...)
		failedRunsTotal.WithLabelValues(string(CodeOf(err))).Inc()
		s.logger.Warn("scan failed", zap.Int("rounds", s.rounds), zap.Error(err))
		return nil, err
	}

	s.logger.Info("scan finished",
		zap.Int("rounds", s.rounds),
		zap.Int("instances", s.derived.Len()),
		zap.Int("taken", len(s.derived.KnownTaken())),
		zap.Int("accounts", len(res.Accounts)),
	)
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, s *scan) (*Result, error) {
	for {
		if s.rounds >= o.config.MaxRounds {
			return nil, NewError(ErrMaxIterationsExceeded, "completion predicate not satisfied").
				WithContext("rounds", s.rounds).
				WithContext("predicate", o.plan.predicate)
		}
		if err := ctx.Err(); err != nil {
			return nil, WrapError(ErrCancelled, "scan cancelled", err)
		}

		s.rounds++
		done, err := o.round(ctx, s)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}

	o.setState(StateFinalizing)
	return o.finalize(s)
}

// round runs one derive and check step under the round deadline.
func (o *Orchestrator) round(ctx context.Context, s *scan) (bool, error) {
	roundCtx, cancel := context.WithTimeout(ctx, o.config.RoundTimeout)
	defer cancel()

	roundsTotal.WithLabelValues(o.kind.Name()).Inc()
	logger := s.logger.With(zap.Int("round", s.rounds))

	o.setState(StateDeriving)
	if err := o.derive(roundCtx, s, logger); err != nil {
		return false, roundError(ctx, roundCtx, err)
	}

	o.setState(StateChecking)
	done, err := o.plan.predicate.IsDone(roundCtx, s.derived)
	if err != nil {
		return false, roundError(ctx, roundCtx, WrapError(ErrAnalyzerFailure, "check completion", err))
	}
	logger.Debug("round checked", zap.Bool("done", done), zap.Int("instances", s.derived.Len()))
	return done, nil
}

func roundError(ctx, roundCtx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return WrapError(ErrCancelled, "scan cancelled", err)
	case errors.Is(err, cache.ErrKeyContended):
		return WrapError(ErrConcurrentDerivationConflict, "request key held by another scan", err)
	case roundCtx.Err() != nil:
		return WrapError(ErrRoundTimeout, "round deadline exceeded", err)
	default:
		return err
	}
}

// derive obtains the instances of one round: from the cache first, then from
// the provider for whatever the cache lacked.
func (o *Orchestrator) derive(ctx context.Context, s *scan, logger *zap.Logger) error {
	release, err := o.cache.Acquire(ctx, o.plan.requests)
	if err != nil {
		return err
	}
	defer release()

	outcome := o.cache.Take(o.plan.quantities)
	misses := outcome.Misses()
	cacheLookupsTotal.WithLabelValues("hit").Add(float64(len(o.plan.requests) - len(misses)))
	cacheLookupsTotal.WithLabelValues("miss").Add(float64(len(misses)))

	// From here on consumed instances belong to the result, so a failure
	// hands them back to the cache.
	obtained := s.derived.Merge(outcome.Instances()...)

	if len(misses) > 0 {
		used, err := o.deriveMissing(ctx, outcome, misses, logger)
		if err != nil {
			return err
		}
		obtained = append(obtained, s.derived.Merge(used...)...)
	}

	return o.classify(ctx, s, obtained)
}

// deriveMissing derives the next batch of every missed request. It returns
// the instances the round uses and pools the surplus.
func (o *Orchestrator) deriveMissing(
	ctx context.Context,
	outcome *cache.LoadOutcome,
	misses []derivation.Request,
	logger *zap.Logger,
) ([]instance.FactorInstance, error) {
	paths := make(map[factorsource.ID][]derivation.Path)
	var all []derivation.Path
	for _, r := range misses {
		missing := outcome.Missing(r)
		n := missing
		if !o.plan.scan {
			n = max(missing, o.config.BatchSize(r.FactorSourceID.Kind))
		}
		start := o.cache.NextOffset(r, o.profileAnalyzer.Floor(r))
		size := uint64(derivation.MaxOffset(r.KeySpace)) + 1
		if uint64(start)+uint64(missing) > size {
			return nil, NewError(ErrInvalidKeySpace, "keyspace exhausted").
				WithContext("request", r.String()).
				WithContext("from", start)
		}
		n = int(min(uint64(n), size-uint64(start)))
		for i := 0; i < n; i++ {
			p := r.PathAt(start + uint32(i))
			paths[r.FactorSourceID] = append(paths[r.FactorSourceID], p)
			all = append(all, p)
		}
		logger.Debug("deriving",
			zap.Stringer("request", r),
			zap.Uint32("from", start),
			zap.Int("count", n),
		)
	}

	derived, err := o.provider.Derive(ctx, paths)
	if err != nil {
		return nil, WrapError(ErrDerivationProviderFailure, "derive instances", err)
	}
	if err := checkDerived(paths, derived); err != nil {
		return nil, WrapError(ErrDerivationProviderFailure, "inconsistent derivation", err)
	}
	derivedInstancesTotal.WithLabelValues(o.kind.Name()).Add(float64(len(derived)))

	byRequest := make(map[derivation.Request][]instance.FactorInstance)
	for _, fi := range derived {
		r := fi.Request()
		byRequest[r] = append(byRequest[r], fi)
	}

	var used, surplus []instance.FactorInstance
	for _, r := range misses {
		list := byRequest[r]
		slices.SortFunc(list, instance.CompareIndex)
		n := min(outcome.Missing(r), len(list))
		used = append(used, list[:n]...)
		surplus = append(surplus, list[n:]...)
	}

	o.cache.Advance(all...)
	o.cache.Insert(surplus...)
	return used, nil
}

// classify marks the instances the analyzers report as taken.
func (o *Orchestrator) classify(ctx context.Context, s *scan, items []instance.FactorInstance) error {
	if len(items) == 0 {
		return nil
	}

	analyzers := []struct {
		name     string
		analyzer analyzer.Analyzer
		profile  bool
	}{
		{name: "on_chain", analyzer: o.onChain},
		{name: "profile", analyzer: o.profileAnalyzer, profile: true},
	}
	for _, a := range analyzers {
		taken, err := a.analyzer.Taken(ctx, items)
		if err != nil {
			if ctx.Err() != nil || o.config.AnalyzerFailurePolicy == PolicyAbort {
				return WrapError(ErrAnalyzerFailure, "classify instances", err).
					WithContext("analyzer", a.name)
			}
			s.logger.Warn("analyzer failed, assuming instances free",
				zap.String("analyzer", a.name),
				zap.Int("instances", len(items)),
				zap.Error(err),
			)
			continue
		}
		s.derived.MarkTaken(taken...)
		if a.profile {
			for _, fi := range taken {
				s.profileTaken[fi] = struct{}{}
			}
		}
	}
	return nil
}

func (o *Orchestrator) finalize(s *scan) (*Result, error) {
	res := &Result{
		ScanID:  s.id,
		Kind:    o.kind,
		Rounds:  s.rounds,
		Derived: s.derived,
		Cache:   o.cache,
	}
	free := s.derived.ProbablyFree()

	switch k := o.kind.(type) {
	case OARS, MARS:
		res.Accounts = o.recovered(s)

	case NewVirtualUnsecurifiedAccount:
		target := accountRequest(k.FactorSource.ID, k.Network, derivation.Unsecurified)
		i := slices.IndexFunc(free, func(fi instance.FactorInstance) bool {
			return fi.Request() == target
		})
		if i < 0 {
			return nil, NewError(ErrInvalidRequest, "no free instance for new account")
		}
		veci := instance.MustUnsecurified(free[i])
		res.Accounts = []account.Account{account.NewUnsecurifiedAccount(veci).Account()}
		free = slices.Delete(free, i, i+1)

	case SecurifyUnsecurifiedAccount:
		matrix, rest, err := buildMatrix(k.Matrix, free)
		if err != nil {
			return nil, err
		}
		res.Accounts = []account.Account{account.Securify(k.Account, matrix).Account()}
		free = rest

	case UpdateSecurifiedAccount:
		matrix, rest, err := buildMatrix(k.Matrix, free)
		if err != nil {
			return nil, err
		}
		res.Accounts = []account.Account{k.Account.WithMatrix(matrix).Account()}
		free = rest
	}

	o.cache.Insert(free...)
	return res, nil
}

// recovered returns an account per unsecurified instance used on ledger and
// unknown to the profile.
func (o *Orchestrator) recovered(s *scan) []account.Account {
	var out []account.Account
	for _, u := range s.derived.Unsecurified() {
		fi := u.Instance()
		if !s.derived.IsTaken(fi) {
			continue
		}
		if _, ok := s.profileTaken[fi]; ok {
			continue
		}
		out = append(out, account.NewUnsecurifiedAccount(u).Account())
	}
	return out
}

// buildMatrix substitutes every factor source of policy with a free
// securified instance and returns the instances left over.
func buildMatrix(
	policy account.MatrixOfFactorSources,
	free []instance.FactorInstance,
) (account.MatrixOfFactorInstances, []instance.FactorInstance, error) {
	var (
		picked []instance.Securified
		rest   []instance.FactorInstance
		seen   = make(map[factorsource.ID]struct{})
	)
	for _, fi := range free {
		if _, ok := seen[fi.FactorSourceID]; ok || fi.KeySpace() != derivation.Securified {
			rest = append(rest, fi)
			continue
		}
		seen[fi.FactorSourceID] = struct{}{}
		picked = append(picked, instance.MustSecurified(fi))
	}

	matrix, err := account.BuildMatrixOfFactorInstances(policy, picked)
	if err != nil {
		return account.MatrixOfFactorInstances{}, nil, WrapError(ErrInvalidRequest, "build matrix", err)
	}
	return matrix, rest, nil
}
