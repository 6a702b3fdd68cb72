package server

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/auth"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/core"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/persistence"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/policy"
)

type errorResponse struct {
	Error string `json:"error"`
}

type initializeRequest struct {
	Admin       uuid.UUID       `json:"admin"`
	Asset       string          `json:"asset"`
	InitialPool decimal.Decimal `json:"initial_pool"`
}

type createPolicyRequest struct {
	FlightID       string          `json:"flight_id"`
	FlightDate     time.Time       `json:"flight_date"`
	PremiumAmount  decimal.Decimal `json:"premium_amount"`
	CoverageAmount decimal.Decimal `json:"coverage_amount"`
}

type resolveFlightRequest struct {
	Outcome      string `json:"outcome"`
	DelayMinutes int64  `json:"delay_minutes"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type poolResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

type resolutionResult struct {
	PolicyID uint64          `json:"policy_id"`
	Status   string          `json:"status,omitempty"`
	Payout   decimal.Decimal `json:"payout_amount"`
	Skipped  bool            `json:"skipped,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Handlers binds HTTP requests to engine operations. History is nil
// when the deployment runs without Postgres; its routes then answer
// 404.
type Handlers struct {
	engine  *core.Engine
	history *persistence.HistoryService
	log     zerolog.Logger
}

func NewHandlers(engine *core.Engine, history *persistence.HistoryService, log zerolog.Logger) *Handlers {
	return &Handlers{engine: engine, history: history, log: log}
}

func (h *Handlers) Initialize(c *fiber.Ctx) error {
	var req initializeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	if req.Admin == uuid.Nil || req.Asset == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "admin and asset are required"})
	}

	if err := h.engine.Initialize(c.UserContext(), req.Admin, req.Asset, req.InitialPool); err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"initialized": true})
}

func (h *Handlers) CreatePolicy(c *fiber.Ctx) error {
	var req createPolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	if req.FlightID == "" || req.FlightDate.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "flight_id and flight_date are required"})
	}

	customer, ok := auth.PrincipalFromContext(c.UserContext())
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: "no authenticated principal"})
	}

	p, err := h.engine.CreatePolicy(c.UserContext(), customer, req.FlightID, req.FlightDate, req.PremiumAmount, req.CoverageAmount)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *Handlers) ResolveFlight(c *fiber.Ctx) error {
	var req resolveFlightRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}

	outcome, err := policy.ParseOutcome(req.Outcome, req.DelayMinutes)
	if err != nil {
		return h.fail(c, err)
	}

	results, err := h.engine.ResolveFlight(c.UserContext(), c.Params("flight_id"), outcome)
	if err != nil {
		return h.fail(c, err)
	}

	out := make([]resolutionResult, 0, len(results))
	for _, r := range results {
		res := resolutionResult{
			PolicyID: r.PolicyID,
			Payout:   r.Payout,
			Skipped:  r.Skipped,
		}
		if r.Err != nil {
			res.Error = r.Err.Error()
		} else {
			res.Status = r.Status.String()
		}
		out = append(out, res)
	}
	return c.JSON(fiber.Map{"flight_id": c.Params("flight_id"), "results": out})
}

func (h *Handlers) Deposit(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	balance, err := h.engine.DepositToPool(c.UserContext(), req.Amount)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(poolResponse{Balance: balance})
}

func (h *Handlers) Withdraw(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	balance, err := h.engine.WithdrawFromPool(c.UserContext(), req.Amount)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(poolResponse{Balance: balance})
}

func (h *Handlers) GetPolicy(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid policy id"})
	}
	p, err := h.engine.GetPolicy(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(p)
}

func (h *Handlers) ActivePolicies(c *fiber.Ctx) error {
	policies, err := h.engine.ActivePolicies(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"policies": policies})
}

func (h *Handlers) PolicyCount(c *fiber.Ctx) error {
	count, err := h.engine.TotalPolicies(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

func (h *Handlers) Pool(c *fiber.Ctx) error {
	balance, err := h.engine.LiquidityPool(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(poolResponse{Balance: balance})
}

func (h *Handlers) FlightPolicies(c *fiber.Ctx) error {
	policies, err := h.engine.PoliciesForFlight(c.UserContext(), c.Params("flight_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"flight_id": c.Params("flight_id"), "policies": policies})
}

func (h *Handlers) IsAdmin(c *fiber.Ctx) error {
	principal, err := uuid.Parse(c.Params("principal"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid principal"})
	}
	isAdmin, err := h.engine.IsAdmin(c.UserContext(), principal)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"principal": principal, "is_admin": isAdmin})
}

func (h *Handlers) PolicyHistory(c *fiber.Ctx) error {
	if h.history == nil {
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "audit trail not enabled"})
	}
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid policy id"})
	}
	records, err := h.history.PolicyHistory(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"policy_id": id, "operations": records})
}

func (h *Handlers) FlightHistory(c *fiber.Ctx) error {
	if h.history == nil {
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "audit trail not enabled"})
	}
	records, err := h.history.FlightHistory(c.UserContext(), c.Params("flight_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"flight_id": c.Params("flight_id"), "operations": records})
}

// fail maps a domain error onto an HTTP status.
func (h *Handlers) fail(c *fiber.Ctx, err error) error {
	status := statusFromError(err)
	if status == fiber.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.Status(status).JSON(errorResponse{Error: "internal error"})
	}
	return c.Status(status).JSON(errorResponse{Error: err.Error()})
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, policy.ErrUnauthorized):
		return fiber.StatusForbidden
	case errors.Is(err, policy.ErrNotFound),
		errors.Is(err, policy.ErrNoPoliciesForFlight):
		return fiber.StatusNotFound
	case errors.Is(err, policy.ErrAlreadyInitialized),
		errors.Is(err, policy.ErrAlreadyResolved):
		return fiber.StatusConflict
	case errors.Is(err, policy.ErrInvalidAmount),
		errors.Is(err, policy.ErrInvalidSchedule),
		errors.Is(err, policy.ErrInvalidOutcome):
		return fiber.StatusBadRequest
	case errors.Is(err, policy.ErrInsufficientLiquidity),
		errors.Is(err, policy.ErrInsufficientPool),
		errors.Is(err, policy.ErrInsufficientPoolForPayout),
		errors.Is(err, policy.ErrInsufficientCoverage),
		errors.Is(err, policy.ErrResolutionDeadlineExpired):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}
