package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"zyra/internal/config"
	"zyra/internal/economy"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes the economy to staff tooling over HTTP. Everything under
// /v1 requires the shared staff bearer token; member-facing traffic goes
// through the gateway, never through here.
type Server struct {
	cfg config.APIConfig
	log *slog.Logger
	eco *economy.Service
	mux *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, eco *economy.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg: cfg,
		log: logger,
		eco: eco,
		mux: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.staffMiddleware)

		r.Get("/accounts/{id}/balance", s.handleBalance)
		r.Post("/accounts/{id}/delta", s.handleDelta)
		r.Post("/admission/check", s.handleAdmissionCheck)

		r.Post("/referrals/codes", s.handleCreateCode)
		r.Get("/referrals/{id}/count", s.handleReferralCount)
		r.Get("/stock", s.handleStock)
		r.Post("/purchases", s.handlePurchase)

		r.Post("/giveaways", s.handleCreateGiveaway)
		r.Get("/giveaways/{id}", s.handleGiveaway)
		r.Post("/giveaways/{id}/entries", s.handleEnterGiveaway)
		r.Post("/lottery/draw", s.handleLotteryDraw)

		r.Get("/tiers/resolve", s.handleResolveTier)
		r.Post("/cycles/run", s.handleRunCycle)
	})
}

func (s *Server) staffMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.StaffToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	balance, err := s.eco.Balance(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	tier := economy.ResolveTier(balance)
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": id,
		"balance":    balance,
		"tier":       tier.Name,
		"stipend":    tier.Stipend,
	})
}

func (s *Server) handleDelta(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in struct {
		Delta  int64  `json:"delta"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Delta == 0 {
		writeError(w, http.StatusBadRequest, "delta must be non-zero")
		return
	}
	if strings.TrimSpace(in.Reason) == "" {
		in.Reason = "staff_adjustment"
	}
	ev, err := s.eco.ApplyDelta(r.Context(), id, in.Delta, in.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleAdmissionCheck(w http.ResponseWriter, r *http.Request) {
	var in struct {
		AccountID int64  `json:"account_id"`
		ChannelID int64  `json:"channel_id"`
		Content   string `json:"content"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	adm, err := s.eco.CheckAdmission(r.Context(), in.AccountID, in.ChannelID, in.Content)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, adm)
}

func (s *Server) handleCreateCode(w http.ResponseWriter, r *http.Request) {
	var in struct {
		OwnerID     int64  `json:"owner_id"`
		ExternalRef string `json:"external_ref"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.OwnerID == 0 || strings.TrimSpace(in.ExternalRef) == "" {
		writeError(w, http.StatusBadRequest, "owner_id and external_ref are required")
		return
	}
	code, err := s.eco.CreateReferralCode(r.Context(), in.OwnerID, in.ExternalRef)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, code)
}

func (s *Server) handleReferralCount(w http.ResponseWriter, r *http.Request) {
	id, err := accountParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := s.eco.Stock(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	count, err := s.eco.ValidReferralCount(r.Context(), id, st.CycleStart)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"referrer_id":     id,
		"valid_referrals": count,
		"cycle_start":     st.CycleStart.Unix(),
	})
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	st, err := s.eco.Stock(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var in struct {
		AccountID int64 `json:"account_id"`
		Tier      int   `json:"tier"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.eco.Purchase(r.Context(), in.AccountID, in.Tier)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreateGiveaway(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ChannelID   int64  `json:"channel_id"`
		Prize       string `json:"prize"`
		WinnerCount int    `json:"winner_count"`
		Duration    string `json:"duration"`
		CreatedBy   int64  `json:"created_by"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := economy.ParseDuration(in.Duration)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := s.eco.CreateGiveaway(r.Context(), in.ChannelID, in.Prize, in.WinnerCount, time.Now().Add(d), in.CreatedBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleGiveaway(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid giveaway id")
		return
	}
	g, err := s.eco.Giveaway(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleEnterGiveaway(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid giveaway id")
		return
	}
	var in struct {
		AccountID int64 `json:"account_id"`
		Stake     int64 `json:"stake"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Stake <= 0 {
		writeError(w, http.StatusBadRequest, "stake must be positive")
		return
	}
	balance, err := s.eco.EnterGiveaway(r.Context(), id, in.AccountID, in.Stake)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"new_balance": balance})
}

func (s *Server) handleLotteryDraw(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Pool []economy.Stake `json:"pool"`
		K    int             `json:"winner_count"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.K < 1 {
		writeError(w, http.StatusBadRequest, "winner_count must be at least 1")
		return
	}
	winners := s.eco.RunLottery(in.Pool, in.K)
	writeJSON(w, http.StatusOK, map[string]any{"winners": winners})
}

func (s *Server) handleResolveTier(w http.ResponseWriter, r *http.Request) {
	balance, err := strconv.ParseInt(r.URL.Query().Get("balance"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "balance query parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, economy.ResolveTier(balance))
}

func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	report, err := s.eco.RunDailyCycle(r.Context(), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, economy.ErrInsufficientFunds),
		errors.Is(err, economy.ErrUnknownTier):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, economy.ErrDuplicateEntry),
		errors.Is(err, economy.ErrGiveawayClosed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, economy.ErrOutOfStock),
		errors.Is(err, economy.ErrNotEligible):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, economy.ErrGiveawayNotFound),
		errors.Is(err, economy.ErrCodeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func accountParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid account id")
	}
	return id, nil
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
