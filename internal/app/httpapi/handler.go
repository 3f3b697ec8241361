// Package httpapi exposes the vault operations over REST.
package httpapi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/vault"
	"github.com/OpenCustody-Network/vault_layer/internal/app/metrics"
	vaultsvc "github.com/OpenCustody-Network/vault_layer/internal/app/services/vault"
	"github.com/OpenCustody-Network/vault_layer/pkg/logger"
)

// Handler bundles the HTTP endpoints for the vault service.
type Handler struct {
	vault *vaultsvc.Service
	log   *logger.Logger
}

// RouterConfig collects the middleware knobs for NewRouter.
type RouterConfig struct {
	Auth           *AuthMiddleware
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter returns the full HTTP surface: vault endpoints, health, and
// Prometheus metrics, wrapped in rate limiting, authentication, and request
// instrumentation.
func NewRouter(svc *vaultsvc.Service, cfg RouterConfig, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &Handler{vault: svc, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v := r.PathPrefix("/vault").Subrouter()
	v.HandleFunc("", h.summary).Methods(http.MethodGet)
	v.HandleFunc("/context", h.signingContext).Methods(http.MethodGet)
	v.HandleFunc("/nonce", h.nonce).Methods(http.MethodGet)
	v.HandleFunc("/events", h.events).Methods(http.MethodGet)
	v.HandleFunc("/deposits/native", h.depositNative).Methods(http.MethodPost)
	v.HandleFunc("/deposits/asset", h.depositAsset).Methods(http.MethodPost)
	v.HandleFunc("/withdrawals", h.withdraw).Methods(http.MethodPost)
	v.HandleFunc("/treasury/sweep", h.treasurySweep).Methods(http.MethodPost)
	v.HandleFunc("/pause", h.pause).Methods(http.MethodPost)
	v.HandleFunc("/unpause", h.unpause).Methods(http.MethodPost)
	v.HandleFunc("/capabilities/grant", h.grant).Methods(http.MethodPost)
	v.HandleFunc("/capabilities/revoke", h.revoke).Methods(http.MethodPost)

	var handler http.Handler = r
	if cfg.Auth != nil {
		handler = cfg.Auth.Handler(handler)
	}
	if cfg.RateLimitRPS > 0 {
		handler = RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)(handler)
	}
	return metrics.InstrumentHandler(handler)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	paused, err := h.vault.Paused(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	nonce, err := h.vault.CurrentNonce(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	native, token, err := h.vault.CustodyBalances(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"paused": paused,
		"nonce":  nonce,
		"fees":   h.vault.FeeConfig(),
		"custody": map[string]string{
			"native": native.String(),
			"token":  token.String(),
		},
	})
}

func (h *Handler) signingContext(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.vault.SigningContext())
}

func (h *Handler) nonce(w http.ResponseWriter, r *http.Request) {
	nonce, err := h.vault.CurrentNonce(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"nonce": nonce})
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = parsed
	}

	events, err := h.vault.Events(r.Context(), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

type depositPayload struct {
	Account string `json:"account,omitempty"`
	Amount  string `json:"amount"`
}

func (h *Handler) depositNative(w http.ResponseWriter, r *http.Request) {
	h.deposit(w, r, h.vault.DepositNative)
}

func (h *Handler) depositAsset(w http.ResponseWriter, r *http.Request) {
	h.deposit(w, r, h.vault.DepositAsset)
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, caller vault.Address, amount *big.Int) (vault.Event, error)) {
	var payload depositPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := h.caller(r, payload.Account)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	amount, err := parseAmount(payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	evt, err := op(r.Context(), caller, amount)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, evt)
}

type withdrawPayload struct {
	Account   string `json:"account,omitempty"`
	Amount    string `json:"amount"`
	Deadline  int64  `json:"deadline"`
	Signature string `json:"signature"`
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	var payload withdrawPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := h.caller(r, payload.Account)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	amount, err := parseAmount(payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	signature, err := hex.DecodeString(strings.TrimPrefix(payload.Signature, "0x"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid signature encoding: %w", err))
		return
	}

	evt, err := h.vault.Withdraw(r.Context(), caller, amount, time.Unix(payload.Deadline, 0), signature)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, evt)
}

func (h *Handler) treasurySweep(w http.ResponseWriter, r *http.Request) {
	var payload depositPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := h.caller(r, payload.Account)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	amount, err := parseAmount(payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	evt, err := h.vault.TreasurySweep(r.Context(), caller, amount)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, evt)
}

type adminPayload struct {
	Account string `json:"account,omitempty"`
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	h.togglePause(w, r, h.vault.Pause)
}

func (h *Handler) unpause(w http.ResponseWriter, r *http.Request) {
	h.togglePause(w, r, h.vault.Unpause)
}

func (h *Handler) togglePause(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, caller vault.Address) error) {
	var payload adminPayload
	if err := decodeJSON(r.Body, &payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := h.caller(r, payload.Account)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err := op(r.Context(), caller); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type capabilityPayload struct {
	Caller     string `json:"caller,omitempty"`
	Account    string `json:"account"`
	Capability string `json:"capability"`
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	h.mutateCapability(w, r, h.vault.Grant)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	h.mutateCapability(w, r, h.vault.Revoke)
}

func (h *Handler) mutateCapability(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, caller, account vault.Address, c vault.Capability) error) {
	var payload capabilityPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := h.caller(r, payload.Caller)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	account, err := vault.ParseAddress(payload.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := op(r.Context(), caller, account, vault.Capability(payload.Capability)); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// caller resolves the acting account: the authenticated identity when
// present, otherwise the payload field (local development with auth
// disabled).
func (h *Handler) caller(r *http.Request, fallback string) (vault.Address, error) {
	if caller, ok := CallerFromContext(r.Context()); ok {
		return caller, nil
	}
	if fallback == "" {
		return vault.ZeroAddress, fmt.Errorf("caller identity is required")
	}
	return vault.ParseAddress(fallback)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, vault.ErrInvalidAmount), errors.Is(err, vault.ErrDeadlineExpired):
		return http.StatusBadRequest
	case errors.Is(err, vault.ErrInvalidSignature), errors.Is(err, vault.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, vault.ErrPaused), errors.Is(err, vault.ErrReentrantCall):
		return http.StatusConflict
	case errors.Is(err, vault.ErrTransferFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parseAmount(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func decodeJSON(body io.Reader, dst interface{}) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
