package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/XANDER-CAGE/dating/internal/app"
	svcErr "github.com/XANDER-CAGE/dating/internal/errors"
	"github.com/XANDER-CAGE/dating/internal/geo"
	"github.com/XANDER-CAGE/dating/internal/presence"
	"github.com/XANDER-CAGE/dating/internal/realtime"
	"github.com/XANDER-CAGE/dating/internal/repository"
	"github.com/XANDER-CAGE/dating/internal/service/discovery"
	"github.com/XANDER-CAGE/dating/internal/service/matchmaking"

	"github.com/gorilla/mux"
)

// swipe writes allowed per user per minute before a 429.
const swipeRateLimit = 60

// Handler exposes the matchmaking core over HTTP. Authentication is an
// external collaborator: the caller identity arrives as the X-User-ID
// header, resolved upstream.
type Handler struct {
	appCtx      *app.AppContext
	discovery   *discovery.Service
	matchmaking *matchmaking.Service
	hub         *realtime.Hub
	registry    *presence.Registry
}

// NewHandler wires the HTTP surface to the services.
func NewHandler(
	appCtx *app.AppContext,
	disc *discovery.Service,
	mm *matchmaking.Service,
	hub *realtime.Hub,
	registry *presence.Registry,
) *Handler {
	return &Handler{
		appCtx:      appCtx,
		discovery:   disc,
		matchmaking: mm,
		hub:         hub,
		registry:    registry,
	}
}

// Register attaches all routes to the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/v1/swipes", h.recordSwipe).Methods(http.MethodPost)
	r.HandleFunc("/v1/swipes/last", h.undoLastSwipe).Methods(http.MethodDelete)
	r.HandleFunc("/v1/swipes", h.swipeHistory).Methods(http.MethodGet)
	r.HandleFunc("/v1/candidates", h.findCandidates).Methods(http.MethodGet)
	r.HandleFunc("/v1/matches", h.listMatches).Methods(http.MethodGet)
	r.HandleFunc("/v1/matches/{id:[0-9]+}/unmatch", h.unmatch).Methods(http.MethodPost)
	r.HandleFunc("/v1/matches/{id:[0-9]+}/messages", h.sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/v1/matches/{id:[0-9]+}/read", h.markRead).Methods(http.MethodPost)
	r.HandleFunc("/v1/location", h.updateLocation).Methods(http.MethodPut)
	r.HandleFunc("/ws", h.serveWS).Methods(http.MethodGet)
}

func (h *Handler) recordSwipe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	limited, err := h.rateLimited(r, userID)
	if err != nil {
		h.appCtx.Logger.Warn("rate limit check failed", "err", err)
	} else if limited {
		writeError(w, http.StatusTooManyRequests, "swipe rate limit exceeded")
		return
	}

	var req struct {
		SubjectID uint64 `json:"subject_id"`
		Decision  string `json:"decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.matchmaking.RecordSwipe(r.Context(), userID, req.SubjectID, req.Decision)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) undoLastSwipe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	res, err := h.matchmaking.UndoLastSwipe(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) swipeHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	swipes, err := h.matchmaking.SwipeHistory(r.Context(), userID, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"swipes": swipes})
}

func (h *Handler) findCandidates(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	filters := discovery.Filters{
		RadiusKm: queryFloat(r, "radius_km", 0),
		AgeMin:   queryInt(r, "age_min", 0),
		AgeMax:   queryInt(r, "age_max", 0),
		Limit:    queryInt(r, "limit", 0),
		Offset:   queryInt(r, "offset", 0),
	}

	candidates, err := h.discovery.FindCandidates(r.Context(), userID, filters)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"candidates": candidates})
}

func (h *Handler) listMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var token *string
	if t := r.URL.Query().Get("page_token"); t != "" {
		token = &t
	}

	matches, next, err := h.matchmaking.ListMatches(r.Context(), userID, token, queryInt(r, "limit", 10))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := map[string]interface{}{"matches": matches}
	if next != nil {
		resp["next_page_token"] = *next
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) unmatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	matchID, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)

	if err := h.matchmaking.Unmatch(r.Context(), userID, matchID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	matchID, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		writeError(w, http.StatusBadRequest, "message content required")
		return
	}

	if err := h.matchmaking.SendMessage(r.Context(), userID, matchID, req.Content); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	matchID, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)

	if err := h.matchmaking.MarkRead(r.Context(), userID, matchID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateLocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !geo.ValidCoordinates(req.Latitude, req.Longitude) {
		writeError(w, http.StatusBadRequest, "coordinates out of range")
		return
	}

	users := repository.NewUserRepository(h.appCtx.DB)
	if err := users.UpdateLocation(r.Context(), userID, req.Latitude, req.Longitude); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// userID resolves the authenticated caller from the X-User-ID header.
func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
		return 0, false
	}
	return id, true
}

func (h *Handler) rateLimited(r *http.Request, userID uint64) (bool, error) {
	key := fmt.Sprintf("ratelimit:swipe:%d", userID)
	count, err := h.appCtx.RedisCache.IncrWithTTL(r.Context(), key, time.Minute)
	if err != nil {
		return false, err
	}
	return count > swipeRateLimit, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeDomainError(w http.ResponseWriter, err error) {
	status := svcErr.Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, status, msg)
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func queryFloat(r *http.Request, key string, def float64) float64 {
	if v := r.URL.Query().Get(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
