// Package core hosts the resolution engine, the single writer over the
// insurance state. Every mutating operation runs under one mutex, so
// the sequence of committed operations is totally ordered and the
// solvency rules are checked against a stable view of the state.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/auth"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/clock"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/event"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/observability"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/persistence"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/policy"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/state"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/transfer"
)

// Result reports the fate of one policy during a flight resolution.
// Exactly one of three shapes: settled (Status terminal, Err nil),
// skipped (already terminal before this resolution), or failed (Err
// set, policy still unresolved).
type Result struct {
	PolicyID uint64          `json:"policy_id"`
	Status   policy.Status   `json:"status"`
	Payout   decimal.Decimal `json:"payout_amount"`
	Skipped  bool            `json:"skipped,omitempty"`
	Err      error           `json:"-"`
}

// Config wires the engine's collaborators. Events is optional and
// never blocks the engine; Audit is optional and blocks, so its
// consumer must keep draining.
type Config struct {
	Settings  *state.Settings
	Ledger    *state.PolicyLedger
	Pool      *state.PoolAccountant
	Indexes   *state.IndexMaintainer
	Transfers transfer.Service
	Authz     auth.Authorizer
	Clock     clock.Clock

	// Treasury is the custodial principal holding pool funds.
	Treasury uuid.UUID

	// DeadlineWindow bounds how long after the flight date a policy may
	// still be settled. Zero disables the bound.
	DeadlineWindow time.Duration

	Events  chan<- event.Envelope
	Audit   chan<- persistence.OperationRow
	Metrics *observability.Metrics
	Log     zerolog.Logger
}

type Engine struct {
	mu sync.Mutex

	settings  *state.Settings
	ledger    *state.PolicyLedger
	pool      *state.PoolAccountant
	indexes   *state.IndexMaintainer
	transfers transfer.Service
	authz     auth.Authorizer
	clock     clock.Clock

	treasury       uuid.UUID
	deadlineWindow time.Duration

	events  chan<- event.Envelope
	audit   chan<- persistence.OperationRow
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewEngine(cfg Config) *Engine {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}
	return &Engine{
		settings:       cfg.Settings,
		ledger:         cfg.Ledger,
		pool:           cfg.Pool,
		indexes:        cfg.Indexes,
		transfers:      cfg.Transfers,
		authz:          cfg.Authz,
		clock:          clk,
		treasury:       cfg.Treasury,
		deadlineWindow: cfg.DeadlineWindow,
		events:         cfg.Events,
		audit:          cfg.Audit,
		metrics:        cfg.Metrics,
		log:            cfg.Log,
	}
}

// Initialize configures the administrator, backing asset, and initial
// pool balance. Succeeds at most once for the lifetime of the state.
func (e *Engine) Initialize(ctx context.Context, admin uuid.UUID, asset string, seed decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.track("initialize")()

	if err := e.authz.RequireAuthorization(ctx, admin); err != nil {
		return e.rejected("initialize", err)
	}
	initialized, err := e.settings.Initialized(ctx)
	if err != nil {
		return e.rejected("initialize", err)
	}
	if initialized {
		return e.rejected("initialize", policy.ErrAlreadyInitialized)
	}
	if seed.IsNegative() {
		return e.rejected("initialize", fmt.Errorf("initial pool %s: %w", seed, policy.ErrInvalidAmount))
	}

	if err := e.settings.Initialize(ctx, admin, asset, e.treasury); err != nil {
		return e.rejected("initialize", err)
	}
	if err := e.pool.Initialize(ctx, seed); err != nil {
		return e.rejected("initialize", err)
	}

	e.applied("initialize")
	e.metrics.PoolBalance.Set(seed.InexactFloat64())
	e.log.Info().
		Stringer("admin", admin).
		Str("asset", asset).
		Str("seed", seed.String()).
		Msg("service initialized")

	e.emit(emission{
		typ:       event.TypeInitialized,
		principal: admin,
		amount:    &seed,
		payload: event.InitializedPayload{
			Admin:    admin,
			Asset:    asset,
			Treasury: e.treasury,
			Seed:     seed.String(),
		},
	})
	return nil
}

// CreatePolicy collects the premium, credits it to the pool, and
// records a new unresolved policy. The customer must be the caller,
// the flight must be in the future, and the pool must already hold at
// least the requested coverage.
func (e *Engine) CreatePolicy(
	ctx context.Context,
	customer uuid.UUID,
	flightID string,
	flightDate time.Time,
	premium, coverage decimal.Decimal,
) (*policy.Policy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.track("create_policy")()

	if err := e.requireInitialized(ctx); err != nil {
		return nil, e.rejected("create_policy", err)
	}
	if err := e.authz.RequireAuthorization(ctx, customer); err != nil {
		return nil, e.rejected("create_policy", err)
	}
	if err := policy.ValidateCreation(premium, coverage, flightDate, e.clock.Now()); err != nil {
		return nil, e.rejected("create_policy", err)
	}
	if err := e.pool.CheckSolvencyForNewExposure(ctx, coverage); err != nil {
		return nil, e.rejected("create_policy", err)
	}
	asset, err := e.settings.Asset(ctx)
	if err != nil {
		return nil, e.rejected("create_policy", err)
	}

	// Premium moves first. A declined transfer leaves the state
	// untouched; everything after this point is internal bookkeeping.
	if err := e.transfers.Transfer(ctx, customer, e.treasury, asset, premium); err != nil {
		return nil, e.rejected("create_policy", err)
	}

	balance, err := e.pool.Credit(ctx, premium)
	if err != nil {
		return nil, e.rejected("create_policy", err)
	}
	p, err := e.ledger.Create(ctx, customer, flightID, flightDate, premium, coverage)
	if err != nil {
		return nil, e.rejected("create_policy", err)
	}
	if err := e.indexes.AddActive(ctx, p.ID); err != nil {
		return nil, e.rejected("create_policy", err)
	}
	if err := e.indexes.AppendFlightPolicy(ctx, flightID, p.ID); err != nil {
		return nil, e.rejected("create_policy", err)
	}

	e.applied("create_policy")
	e.metrics.PoliciesCreated.Inc()
	e.metrics.PoolBalance.Set(balance.InexactFloat64())
	e.metrics.ActiveExposure.Add(coverage.InexactFloat64())
	e.log.Info().
		Uint64("policy_id", p.ID).
		Stringer("customer", customer).
		Str("flight_id", flightID).
		Str("premium", premium.String()).
		Str("coverage", coverage.String()).
		Msg("policy created")

	e.emit(emission{
		typ:       event.TypePolicyCreated,
		flightID:  flightID,
		policyID:  p.ID,
		principal: customer,
		amount:    &premium,
		payload: event.PolicyCreatedPayload{
			PolicyID:       p.ID,
			Customer:       customer,
			FlightID:       flightID,
			FlightDate:     flightDate,
			PremiumAmount:  premium.String(),
			CoverageAmount: coverage.String(),
			PoolBalance:    balance.String(),
		},
	})
	return p, nil
}

// ResolveFlight settles every policy indexed against the flight under
// the asserted outcome. Policies settle independently: one failed
// payout does not abort the batch, and a policy that fails stays
// unresolved for a retry. The flight index is cleared only once every
// indexed policy is terminal.
func (e *Engine) ResolveFlight(ctx context.Context, flightID string, outcome policy.Outcome) ([]Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.track("resolve_flight")()

	admin, err := e.settings.Admin(ctx)
	if err != nil {
		return nil, e.rejected("resolve_flight", err)
	}
	if err := e.authz.RequireAuthorization(ctx, admin); err != nil {
		return nil, e.rejected("resolve_flight", err)
	}
	if err := outcome.Validate(); err != nil {
		return nil, e.rejected("resolve_flight", err)
	}
	exists, err := e.indexes.HasFlight(ctx, flightID)
	if err != nil {
		return nil, e.rejected("resolve_flight", err)
	}
	if !exists {
		return nil, e.rejected("resolve_flight", fmt.Errorf("flight %s: %w", flightID, policy.ErrNoPoliciesForFlight))
	}
	asset, err := e.settings.Asset(ctx)
	if err != nil {
		return nil, e.rejected("resolve_flight", err)
	}
	ids, err := e.indexes.ListForFlight(ctx, flightID)
	if err != nil {
		return nil, e.rejected("resolve_flight", err)
	}

	now := e.clock.Now()
	results := make([]Result, 0, len(ids))
	allTerminal := true
	var settled, skipped, failed int

	for _, id := range ids {
		res := e.settleOne(ctx, id, flightID, asset, outcome, now)
		switch {
		case res.Err != nil:
			allTerminal = false
			failed++
			e.log.Warn().
				Uint64("policy_id", id).
				Str("flight_id", flightID).
				Err(res.Err).
				Msg("policy settlement failed")
		case res.Skipped:
			skipped++
		default:
			settled++
		}
		results = append(results, res)
	}

	cleared := false
	if allTerminal {
		if err := e.indexes.ClearFlight(ctx, flightID); err != nil {
			return results, e.rejected("resolve_flight", err)
		}
		cleared = true
	}

	e.applied("resolve_flight")
	e.log.Info().
		Str("flight_id", flightID).
		Stringer("outcome", outcome.Kind).
		Int("settled", settled).
		Int("skipped", skipped).
		Int("failed", failed).
		Bool("cleared", cleared).
		Msg("flight resolved")

	e.emit(emission{
		typ:       event.TypeFlightResolved,
		flightID:  flightID,
		principal: admin,
		payload: event.FlightResolvedPayload{
			FlightID: flightID,
			Settled:  settled,
			Skipped:  skipped,
			Failed:   failed,
			Cleared:  cleared,
		},
	})
	return results, nil
}

// settleOne settles a single policy. Assumes e.mu is held.
func (e *Engine) settleOne(
	ctx context.Context,
	id uint64,
	flightID, asset string,
	outcome policy.Outcome,
	now time.Time,
) Result {
	p, err := e.ledger.Get(ctx, id)
	if err != nil {
		return Result{PolicyID: id, Err: err}
	}
	if p.Status.Terminal() {
		return Result{PolicyID: id, Status: p.Status, Payout: p.PayoutAmount, Skipped: true}
	}
	if e.deadlineWindow > 0 && now.After(p.FlightDate.Add(e.deadlineWindow)) {
		return Result{PolicyID: id, Err: fmt.Errorf(
			"policy %d: flight departed %s: %w", id, p.FlightDate.Format(time.RFC3339), policy.ErrResolutionDeadlineExpired)}
	}

	status, payout := outcome.Settle(p)
	if payout.IsPositive() {
		balance, err := e.pool.Balance(ctx)
		if err != nil {
			return Result{PolicyID: id, Err: err}
		}
		if balance.LessThan(payout) {
			return Result{PolicyID: id, Err: fmt.Errorf(
				"payout %s exceeds pool %s: %w", payout, balance, policy.ErrInsufficientPoolForPayout)}
		}
		if err := e.transfers.Transfer(ctx, e.treasury, p.Customer, asset, payout); err != nil {
			return Result{PolicyID: id, Err: err}
		}
		if _, err := e.pool.Debit(ctx, payout); err != nil {
			return Result{PolicyID: id, Err: err}
		}
	}

	updated, err := e.ledger.Settle(ctx, id, status, payout)
	if err != nil {
		return Result{PolicyID: id, Err: err}
	}
	if err := e.indexes.RemoveActive(ctx, id); err != nil {
		return Result{PolicyID: id, Err: err}
	}

	e.metrics.PoliciesResolved.WithLabelValues(status.String()).Inc()
	e.metrics.ActiveExposure.Sub(p.CoverageAmount.InexactFloat64())
	if payout.IsPositive() {
		e.metrics.PayoutsTotal.Add(payout.InexactFloat64())
	}
	balance, balErr := e.pool.Balance(ctx)
	if balErr == nil {
		e.metrics.PoolBalance.Set(balance.InexactFloat64())
	}

	e.emit(emission{
		typ:       event.TypePolicyResolved,
		flightID:  flightID,
		policyID:  id,
		principal: p.Customer,
		amount:    &payout,
		payload: event.PolicyResolvedPayload{
			PolicyID:     id,
			Customer:     p.Customer,
			FlightID:     flightID,
			Status:       status.String(),
			PayoutAmount: payout.String(),
			PoolBalance:  balance.String(),
		},
	})
	return Result{PolicyID: id, Status: updated.Status, Payout: payout}
}

// DepositToPool moves funds from the administrator into the treasury
// and credits the pool. Administrator only.
func (e *Engine) DepositToPool(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.track("deposit")()

	admin, err := e.settings.Admin(ctx)
	if err != nil {
		return decimal.Zero, e.rejected("deposit", err)
	}
	if err := e.authz.RequireAuthorization(ctx, admin); err != nil {
		return decimal.Zero, e.rejected("deposit", err)
	}
	if !amount.IsPositive() {
		return decimal.Zero, e.rejected("deposit", fmt.Errorf("deposit %s: %w", amount, policy.ErrInvalidAmount))
	}
	asset, err := e.settings.Asset(ctx)
	if err != nil {
		return decimal.Zero, e.rejected("deposit", err)
	}

	if err := e.transfers.Transfer(ctx, admin, e.treasury, asset, amount); err != nil {
		return decimal.Zero, e.rejected("deposit", err)
	}
	balance, err := e.pool.Credit(ctx, amount)
	if err != nil {
		return decimal.Zero, e.rejected("deposit", err)
	}

	e.applied("deposit")
	e.metrics.PoolBalance.Set(balance.InexactFloat64())
	e.log.Info().Str("amount", amount.String()).Str("balance", balance.String()).Msg("pool deposit")

	e.emit(emission{
		typ:       event.TypePoolDeposited,
		principal: admin,
		amount:    &amount,
		payload: event.PoolMovedPayload{
			Principal:   admin,
			Amount:      amount.String(),
			PoolBalance: balance.String(),
		},
	})
	return balance, nil
}

// WithdrawFromPool moves funds from the treasury back to the
// administrator. The withdrawal is refused when the remaining balance
// would no longer cover the live exposure of unresolved policies.
func (e *Engine) WithdrawFromPool(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.track("withdraw")()

	admin, err := e.settings.Admin(ctx)
	if err != nil {
		return decimal.Zero, e.rejected("withdraw", err)
	}
	if err := e.authz.RequireAuthorization(ctx, admin); err != nil {
		return decimal.Zero, e.rejected("withdraw", err)
	}
	if !amount.IsPositive() {
		return decimal.Zero, e.rejected("withdraw", fmt.Errorf("withdrawal %s: %w", amount, policy.ErrInvalidAmount))
	}

	exposure, err := e.totalExposure(ctx)
	if err != nil {
		return decimal.Zero, e.rejected("withdraw", err)
	}
	if err := e.pool.CheckWithdrawalSafe(ctx, amount, exposure); err != nil {
		return decimal.Zero, e.rejected("withdraw", err)
	}
	asset, err := e.settings.Asset(ctx)
	if err != nil {
		return decimal.Zero, e.rejected("withdraw", err)
	}

	if err := e.transfers.Transfer(ctx, e.treasury, admin, asset, amount); err != nil {
		return decimal.Zero, e.rejected("withdraw", err)
	}
	balance, err := e.pool.Debit(ctx, amount)
	if err != nil {
		return decimal.Zero, e.rejected("withdraw", err)
	}

	e.applied("withdraw")
	e.metrics.PoolBalance.Set(balance.InexactFloat64())
	e.metrics.ActiveExposure.Set(exposure.InexactFloat64())
	e.log.Info().
		Str("amount", amount.String()).
		Str("balance", balance.String()).
		Str("exposure", exposure.String()).
		Msg("pool withdrawal")

	e.emit(emission{
		typ:       event.TypePoolWithdrawn,
		principal: admin,
		amount:    &amount,
		payload: event.PoolMovedPayload{
			Principal:   admin,
			Amount:      amount.String(),
			PoolBalance: balance.String(),
		},
	})
	return balance, nil
}

// GetPolicy returns a policy record by id.
func (e *Engine) GetPolicy(ctx context.Context, id uint64) (*policy.Policy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Get(ctx, id)
}

// LiquidityPool returns the current pool balance.
func (e *Engine) LiquidityPool(ctx context.Context) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Balance(ctx)
}

// ActivePolicies returns every unresolved policy in creation order.
func (e *Engine) ActivePolicies(ctx context.Context) ([]*policy.Policy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids, err := e.indexes.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return e.loadPolicies(ctx, ids)
}

// PoliciesForFlight returns the policies indexed against a flight.
// Empty after the flight's resolution cleared the index.
func (e *Engine) PoliciesForFlight(ctx context.Context, flightID string) ([]*policy.Policy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids, err := e.indexes.ListForFlight(ctx, flightID)
	if err != nil {
		return nil, err
	}
	return e.loadPolicies(ctx, ids)
}

// TotalPolicies returns the number of policies ever created.
func (e *Engine) TotalPolicies(ctx context.Context) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Count(ctx)
}

// IsAdmin reports whether the principal is the configured
// administrator. False, not an error, before initialization.
func (e *Engine) IsAdmin(ctx context.Context, principal uuid.UUID) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	admin, err := e.settings.Admin(ctx)
	if errors.Is(err, policy.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return admin == principal, nil
}

// AdminPrincipal returns the configured administrator.
func (e *Engine) AdminPrincipal(ctx context.Context) (uuid.UUID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings.Admin(ctx)
}

func (e *Engine) requireInitialized(ctx context.Context) error {
	initialized, err := e.settings.Initialized(ctx)
	if err != nil {
		return err
	}
	if !initialized {
		return fmt.Errorf("service not initialized: %w", policy.ErrNotFound)
	}
	return nil
}

// totalExposure sums coverage over unresolved policies. An index entry
// whose record is missing is counted as zero rather than failing the
// whole sum.
func (e *Engine) totalExposure(ctx context.Context) (decimal.Decimal, error) {
	ids, err := e.indexes.ListActive(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	exposure := decimal.Zero
	for _, id := range ids {
		p, err := e.ledger.Get(ctx, id)
		if errors.Is(err, policy.ErrNotFound) {
			continue
		}
		if err != nil {
			return decimal.Zero, err
		}
		exposure = exposure.Add(p.CoverageAmount)
	}
	return exposure, nil
}

func (e *Engine) loadPolicies(ctx context.Context, ids []uint64) ([]*policy.Policy, error) {
	out := make([]*policy.Policy, 0, len(ids))
	for _, id := range ids {
		p, err := e.ledger.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

type emission struct {
	typ       event.Type
	flightID  string
	policyID  uint64
	principal uuid.UUID
	amount    *decimal.Decimal
	payload   any
}

// emit fans a committed operation out to the event publisher and the
// audit writer. The event send never blocks; a full queue drops the
// envelope and counts it. The audit send blocks so no committed
// operation is lost from the trail.
func (e *Engine) emit(em emission) {
	env := event.Envelope{
		EventID:   uuid.New(),
		Type:      em.typ,
		FlightID:  em.flightID,
		PolicyID:  em.policyID,
		Timestamp: e.clock.Now(),
		Payload:   em.payload,
	}

	if e.events != nil {
		select {
		case e.events <- env:
		default:
			e.metrics.EventPublishDrops.Inc()
			e.log.Warn().Str("type", string(em.typ)).Msg("event queue full, envelope dropped")
		}
	}

	if e.audit == nil {
		return
	}
	payload, err := json.Marshal(em.payload)
	if err != nil {
		e.log.Error().Err(err).Str("type", string(em.typ)).Msg("encode audit payload")
		payload = []byte("{}")
	}
	row := persistence.OperationRow{
		EventID:   env.EventID.String(),
		EventType: string(em.typ),
		Payload:   payload,
		CreatedAt: env.Timestamp,
	}
	if em.principal != uuid.Nil {
		s := em.principal.String()
		row.Principal = &s
	}
	if em.flightID != "" {
		f := em.flightID
		row.FlightID = &f
	}
	if em.policyID != 0 {
		id := int64(em.policyID)
		row.PolicyID = &id
	}
	if em.amount != nil {
		a := em.amount.String()
		row.Amount = &a
	}
	e.audit <- row
}

func (e *Engine) track(op string) func() {
	start := time.Now()
	return func() {
		e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func (e *Engine) applied(op string) {
	e.metrics.OpsApplied.WithLabelValues(op).Inc()
}

func (e *Engine) rejected(op string, err error) error {
	e.metrics.OpsRejected.WithLabelValues(op, policy.Kind(err)).Inc()
	return err
}
