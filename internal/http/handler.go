package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/distrubuted-game-mechanic/round-engine/internal/engine"
	"github.com/distrubuted-game-mechanic/round-engine/internal/oracle"
	"github.com/distrubuted-game-mechanic/round-engine/internal/types"
)

// CallerHeader carries the identity of the acting party.
const CallerHeader = "X-Caller-ID"

const requestTimeout = 5 * time.Second

// Tracker receives sessions created by the coordinator's operator identity.
type Tracker interface {
	Operator() string
	Track(sessionID string)
}

// Wallet is the credit side of the custody vault.
type Wallet interface {
	Deposit(player string, amount uint64) error
	Balance(player string) uint64
}

// Deps are the handler dependencies. Tracker and Wallet are optional.
type Deps struct {
	Engine    *engine.Engine
	Validator *oracle.Validator
	Tracker   Tracker
	Wallet    Wallet
	Operator  string // the only identity allowed to credit balances
	Logger    *zap.Logger
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	engine    *engine.Engine
	validator *oracle.Validator
	tracker   Tracker
	wallet    Wallet
	operator  string
	logger    *zap.Logger
	now       func() time.Time
}

// NewHandler creates a new HTTP handler
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		engine:    d.Engine,
		validator: d.Validator,
		tracker:   d.Tracker,
		wallet:    d.Wallet,
		operator:  d.Operator,
		logger:    logger,
		now:       time.Now,
	}
}

// Routes sets up all HTTP routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Post("/join", h.JoinSession)
			r.Post("/start", h.StartSession)
			r.Post("/advance", h.AdvanceRound)
			r.Post("/predictions", h.SubmitPrediction)
			r.Get("/rounds/{round}", h.GetRound)
			r.Post("/rounds/{round}/outcome", h.RecordOutcome)
			r.Post("/rounds/{round}/evaluate", h.Evaluate)
			r.Post("/rank", h.FinalizeRank)
			r.Post("/complete", h.CompleteSession)
			r.Post("/cancel", h.CancelSession)
			r.Post("/claim", h.ClaimPrize)
			r.Post("/refund", h.RefundEntry)
			r.Post("/platform-fee", h.CollectPlatformFee)
			r.Get("/entries/{player}", h.GetEntry)
			r.Get("/progress", h.GetProgress)
		})
	})

	if h.wallet != nil {
		r.Route("/v1/vault", func(r chi.Router) {
			r.Post("/credits", h.CreditPlayer)
			r.Get("/balances/{player}", h.GetBalance)
		})
	}

	// Health check
	r.Get("/healthz", h.Health)

	return r
}

// Health handles health check requests
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateSession handles POST /v1/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req types.CreateSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid start_time", "start_time must be in RFC3339 format")
		return
	}

	sessionID := req.ID
	if sessionID == "" {
		sessionID = "sess_" + uuid.New().String()
	}

	session, err := h.engine.Create(ctx, caller, engine.CreateParams{
		SessionID: sessionID,
		GameType:  req.GameType,
		StartTime: startTime,
		EntryFee:  req.EntryFee,
	}, h.now())
	if err != nil {
		h.fail(w, err)
		return
	}

	if h.tracker != nil && caller == h.tracker.Operator() {
		h.tracker.Track(session.ID)
	}

	h.respondJSON(w, http.StatusCreated, session)
}

// GetSession handles GET /v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	session, err := h.engine.Session(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, session)
}

// JoinSession handles POST /v1/sessions/{id}/join
func (h *Handler) JoinSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req types.JoinSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	entry, err := h.engine.Join(ctx, chi.URLParam(r, "id"), caller, req.Username, h.now())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, entry)
}

// StartSession handles POST /v1/sessions/{id}/start
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req types.StartSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	sessionID := chi.URLParam(r, "id")
	now := h.now()
	prices, err := h.prices(sessionID, 1, oracle.PhaseStart, req.Observations, now)
	if err != nil {
		h.fail(w, err)
		return
	}

	session, err := h.engine.Start(ctx, caller, sessionID, prices, now)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, session)
}

// AdvanceRound handles POST /v1/sessions/{id}/advance
func (h *Handler) AdvanceRound(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req types.AdvanceRoundRequest
	if !h.decode(w, r, &req) {
		return
	}

	sessionID := chi.URLParam(r, "id")
	now := h.now()
	prices, err := h.prices(sessionID, req.Round, oracle.PhaseStart, req.Observations, now)
	if err != nil {
		h.fail(w, err)
		return
	}

	result, err := h.engine.Advance(ctx, caller, sessionID, req.Round, prices, now)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// SubmitPrediction handles POST /v1/sessions/{id}/predictions
func (h *Handler) SubmitPrediction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req types.SubmitPredictionRequest
	if !h.decode(w, r, &req) {
		return
	}

	prediction, err := h.engine.Submit(ctx, caller, chi.URLParam(r, "id"), caller, req.Round, req.Choice, h.now())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, prediction)
}

// GetRound handles GET /v1/sessions/{id}/rounds/{round}
func (h *Handler) GetRound(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	round, ok := h.round(w, r)
	if !ok {
		return
	}
	result, err := h.engine.Round(ctx, chi.URLParam(r, "id"), round)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// RecordOutcome handles POST /v1/sessions/{id}/rounds/{round}/outcome
func (h *Handler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	round, ok := h.round(w, r)
	if !ok {
		return
	}
	var req types.RecordOutcomeRequest
	if !h.decode(w, r, &req) {
		return
	}

	sessionID := chi.URLParam(r, "id")
	now := h.now()
	prices, err := h.prices(sessionID, round, oracle.PhaseEnd, req.Observations, now)
	if err != nil {
		h.fail(w, err)
		return
	}

	result, err := h.engine.RecordOutcome(ctx, caller, sessionID, round, prices, req.Answer, now)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// Evaluate handles POST /v1/sessions/{id}/rounds/{round}/evaluate
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	round, ok := h.round(w, r)
	if !ok {
		return
	}
	var req types.EvaluateRequest
	if !h.decode(w, r, &req) {
		return
	}

	prediction, err := h.engine.Evaluate(ctx, caller, chi.URLParam(r, "id"), req.Player, round, h.now())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, prediction)
}

// FinalizeRank handles POST /v1/sessions/{id}/rank
func (h *Handler) FinalizeRank(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req types.RankRequest
	if !h.decode(w, r, &req) {
		return
	}

	entry, err := h.engine.FinalizeRank(ctx, caller, chi.URLParam(r, "id"), req.Player, req.Rank, h.now())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, entry)
}

// CompleteSession handles POST /v1/sessions/{id}/complete
func (h *Handler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	session, err := h.engine.Complete(ctx, caller, chi.URLParam(r, "id"), h.now())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, session)
}

// CancelSession handles POST /v1/sessions/{id}/cancel
func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	session, err := h.engine.Cancel(ctx, caller, chi.URLParam(r, "id"), h.now())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, session)
}

// ClaimPrize handles POST /v1/sessions/{id}/claim
func (h *Handler) ClaimPrize(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	entry, err := h.engine.Claim(ctx, caller, chi.URLParam(r, "id"), caller, h.now())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, entry)
}

// RefundEntry handles POST /v1/sessions/{id}/refund
func (h *Handler) RefundEntry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	entry, err := h.engine.Refund(ctx, caller, chi.URLParam(r, "id"), caller, h.now())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, entry)
}

// CollectPlatformFee handles POST /v1/sessions/{id}/platform-fee
func (h *Handler) CollectPlatformFee(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "id")
	fee, err := h.engine.CollectPlatformFee(ctx, caller, sessionID, h.now())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, types.PlatformFeeResponse{SessionID: sessionID, Fee: fee})
}

// GetEntry handles GET /v1/sessions/{id}/entries/{player}
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	entry, err := h.engine.Entry(ctx, chi.URLParam(r, "id"), chi.URLParam(r, "player"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, entry)
}

// GetProgress handles GET /v1/sessions/{id}/progress
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	progress, err := h.engine.Progress(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, progress)
}

// CreditPlayer handles POST /v1/vault/credits
func (h *Handler) CreditPlayer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if h.operator == "" || caller != h.operator {
		h.respondError(w, http.StatusForbidden, string(engine.KindUnauthorized), "Unauthorized: Only the operator can credit balances")
		return
	}

	var req types.CreditRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Player == "" || req.Amount == 0 {
		h.respondError(w, http.StatusBadRequest, string(engine.KindValidationFailed), "player and a positive amount are required")
		return
	}

	if err := h.wallet.Deposit(req.Player, req.Amount); err != nil {
		h.respondError(w, http.StatusConflict, string(engine.KindArithmeticOverflow), err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, types.BalanceResponse{Player: req.Player, Balance: h.wallet.Balance(req.Player)})
}

// GetBalance handles GET /v1/vault/balances/{player}
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "player")
	h.respondJSON(w, http.StatusOK, types.BalanceResponse{Player: player, Balance: h.wallet.Balance(player)})
}

// prices validates the supplied observations and keeps the Valid ones' prices.
func (h *Handler) prices(sessionID string, round int, phase oracle.Phase, observations []types.PriceObservation, now time.Time) (types.Prices, error) {
	snapshots := make([]*oracle.Snapshot, 0, len(observations))
	for _, o := range observations {
		snapshots = append(snapshots, h.validator.Snapshot(sessionID, round, phase, oracle.Observation{
			Asset:       oracle.Asset(o.Asset),
			Price:       o.Price,
			Exponent:    o.Exponent,
			Confidence:  o.Confidence,
			PublishTime: o.PublishTime,
			Publishers:  o.Publishers,
			FeedStatus:  o.FeedStatus,
		}, now))
	}
	return oracle.Prices(snapshots...)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := r.Header.Get(CallerHeader)
	if caller == "" {
		h.respondError(w, http.StatusForbidden, string(engine.KindUnauthorized), CallerHeader+" header is required")
		return "", false
	}
	return caller, true
}

func (h *Handler) round(w http.ResponseWriter, r *http.Request) (int, bool) {
	round, err := strconv.Atoi(chi.URLParam(r, "round"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, string(engine.KindValidationFailed), "round must be a number")
		return 0, false
	}
	return round, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

// fail maps an error to its response. Engine kinds keep their name as the
// error code.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	if kind := engine.KindOf(err); kind != "" {
		h.respondError(w, StatusFor(kind), string(kind), err.Error())
		return
	}

	var oracleErr *oracle.OracleError
	if errors.As(err, &oracleErr) {
		h.respondError(w, http.StatusUnprocessableEntity, "invalid_price", err.Error())
		return
	}

	h.logger.Error("Request failed", zap.Error(err))
	h.respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

// StatusFor returns the HTTP status of an engine error kind.
func StatusFor(kind engine.Kind) int {
	switch kind {
	case engine.KindInvalidState, engine.KindDuplicateAction, engine.KindCapacityExceeded:
		return http.StatusConflict
	case engine.KindUnauthorized:
		return http.StatusForbidden
	case engine.KindWindowClosed:
		return http.StatusUnprocessableEntity
	case engine.KindNotFound:
		return http.StatusNotFound
	case engine.KindValidationFailed:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondJSON sends a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func (h *Handler) respondError(w http.ResponseWriter, status int, errorMsg, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(types.ErrorResponse{
		Error:   errorMsg,
		Message: message,
	})
}
