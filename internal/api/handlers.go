package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/streamstall/liveassist/internal/store"
	"github.com/streamstall/liveassist/internal/types"
	"github.com/streamstall/liveassist/internal/validation"
)

// Handler implements the API handlers
type Handler struct {
	store      store.Store
	version    string
	minRecHits int
}

// NewHandler creates a new Handler with store.Store interface
func NewHandler(s store.Store, version string, minRecHits int) *Handler {
	return &Handler{
		store:      s,
		version:    version,
		minRecHits: minRecHits,
	}
}

// Health returns the health status, including which storage backend is active.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "healthy",
		"version": h.version,
		"backend": h.store.Backend(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// createSessionRequest is the boundary form of POST /sessions. Products stay
// raw until the legacy origin aliases are folded in.
type createSessionRequest struct {
	ID        string            `json:"id"`
	HostName  string            `json:"host_name"`
	LiveTheme string            `json:"live_theme"`
	Products  []json.RawMessage `json:"products"`
}

// originAliases are the legacy top-level keys older clients use for a
// product's place of origin. First one present wins.
var originAliases = []string{"origin", "产地", "place_of_origin", "origin_place", "product_origin"}

// decodeProduct parses one raw product, folding any legacy origin alias into
// NewProduct.Origin so the store can land it in the attribute map.
func decodeProduct(raw json.RawMessage) (types.NewProduct, error) {
	var p types.NewProduct
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, err
	}

	var loose map[string]any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return p, err
	}
	for _, alias := range originAliases {
		if v, ok := loose[alias].(string); ok && v != "" {
			p.Origin = v
			break
		}
	}
	return p, nil
}

// CreateSession handles POST /api/v1/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("id", req.ID))
	c.Add(validation.ValidateUUID("id", req.ID))
	c.Add(validation.ValidateRequired("host_name", req.HostName))

	products := make([]types.NewProduct, 0, len(req.Products))
	for i, raw := range req.Products {
		p, err := decodeProduct(raw)
		if err != nil {
			c.Add(&validation.ValidationError{
				Field:   fmt.Sprintf("products[%d]", i),
				Message: "invalid product object",
			})
			continue
		}
		c.Add(validation.ValidateRequired(fmt.Sprintf("products[%d].name", i), p.Name))
		c.Add(validation.ValidateNonNegative(fmt.Sprintf("products[%d].price", i), p.Price))
		c.Add(validation.ValidateProductType(fmt.Sprintf("products[%d].product_type", i), p.ProductType))
		products = append(products, p)
	}

	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	if err := h.store.CreateSession(r.Context(), req.ID, req.HostName, req.LiveTheme, products); err != nil {
		slog.Error("session creation failed", "session_id", req.ID, "error", err)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": req.ID,
		"products":   len(products),
	})
}

// GetSession handles GET /api/v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.store.GetSession(r.Context(), id)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type conversationRequest struct {
	UserMessage string `json:"user_message"`
	AIResponse  string `json:"ai_response"`
	AudioURL    string `json:"audio_url"`
}

// SaveConversation handles POST /api/v1/sessions/{id}/conversations
func (h *Handler) SaveConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if err := h.store.SaveConversation(r.Context(), id, req.UserMessage, req.AIResponse, req.AudioURL); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "saved"})
}

type productInfoRequest struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Key         string `json:"info_key"`
	Value       any    `json:"info_value"`
}

// SaveProductInfo handles POST /api/v1/sessions/{id}/product-info
func (h *Handler) SaveProductInfo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req productInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if err := validation.ValidateRequired("info_key", req.Key); err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*err})
		return
	}

	ref := types.ProductRef{ID: req.ProductID, Name: req.ProductName}
	if err := h.store.SaveProductInfo(r.Context(), id, ref, req.Key, req.Value); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "saved"})
}

// GetProductInfo handles GET /api/v1/sessions/{id}/product-info
func (h *Handler) GetProductInfo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ref := types.ProductRef{Name: r.URL.Query().Get("product_name")}
	if raw := r.URL.Query().Get("product_id"); raw != "" {
		pid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			WriteProblem(w, r, http.StatusBadRequest, "product_id must be an integer")
			return
		}
		ref.ID = pid
	}

	info, err := h.store.GetProductInfo(r.Context(), id, ref)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attributes": info})
}

type bulletRequest struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Priority int    `json:"priority"`
}

// AddBulletScreen handles POST /api/v1/sessions/{id}/bullets
func (h *Handler) AddBulletScreen(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req bulletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	bulletID, err := h.store.AddBulletScreen(r.Context(), id, req.Username, req.Message, req.Category, req.Priority)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": bulletID})
}

// PendingBulletScreens handles GET /api/v1/sessions/{id}/bullets/pending
func (h *Handler) PendingBulletScreens(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	bullets, err := h.store.PendingBulletScreens(r.Context(), id, limit)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bullets": bullets})
}

type markProcessedRequest struct {
	IDs []int64 `json:"ids"`
}

// MarkBulletScreensProcessed handles POST /api/v1/sessions/{id}/bullets/processed
func (h *Handler) MarkBulletScreensProcessed(w http.ResponseWriter, r *http.Request) {
	var req markProcessedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if err := h.store.MarkBulletScreensProcessed(r.Context(), req.IDs); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"processed": len(req.IDs)})
}

type resolveRequest struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Origin   string `json:"origin"`
}

type resolveResponse struct {
	Answered bool   `json:"answered"`
	Source   string `json:"source,omitempty"`
	Answer   string `json:"answer,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
	Blocked  bool   `json:"blocked,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ResolveChat handles POST /api/v1/sessions/{id}/chat/resolve. The message
// runs the moderation-then-lookup pipeline: sensitive words, blacklist,
// curated whitelist, QA cache. The first stage that produces an outcome wins.
func (h *Handler) ResolveChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if err := validation.ValidateRequired("message", req.Message); err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*err})
		return
	}

	if hit, _ := h.store.CheckSensitiveWords(req.Message); hit {
		writeJSON(w, http.StatusOK, resolveResponse{Blocked: true, Reason: "sensitive_words"})
		return
	}

	banned, err := h.store.IsBlacklisted(r.Context(), id, req.Username, req.Message)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if banned {
		writeJSON(w, http.StatusOK, resolveResponse{Blocked: true, Reason: "blacklisted"})
		return
	}

	answer, ok, err := h.store.ResolveFAQ(r.Context(), id, req.Message)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if ok {
		writeJSON(w, http.StatusOK, resolveResponse{Answered: true, Source: "whitelist", Answer: answer})
		return
	}

	cached, err := h.store.CachedAnswer(r.Context(), id, req.Message, req.Origin)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if cached != nil {
		writeJSON(w, http.StatusOK, resolveResponse{
			Answered: true,
			Source:   "cache",
			Answer:   cached.Answer,
			AudioURL: cached.AudioURL,
		})
		return
	}

	writeJSON(w, http.StatusOK, resolveResponse{Answered: false})
}

type cachePutRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	AudioURL string `json:"audio_url"`
	Origin   string `json:"origin"`
}

// CacheAnswer handles POST /api/v1/sessions/{id}/cache
func (h *Handler) CacheAnswer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req cachePutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("question", req.Question))
	c.Add(validation.ValidateRequired("answer", req.Answer))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	if err := h.store.CacheAnswer(r.Context(), id, req.Question, req.Answer, req.AudioURL, req.Origin); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "cached"})
}

// FAQTemplates handles GET /api/v1/faq/templates?product_type=fruit
func (h *Handler) FAQTemplates(w http.ResponseWriter, r *http.Request) {
	productType := types.ProductType(r.URL.Query().Get("product_type"))
	if err := validation.ValidateProductType("product_type", productType); err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*err})
		return
	}
	if productType == "" {
		WriteProblem(w, r, http.StatusBadRequest, "product_type is required")
		return
	}

	templates, err := h.store.FAQTemplates(r.Context(), productType)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

type applyTemplatesRequest struct {
	ProductType types.ProductType `json:"product_type"`
	Values      map[string]string `json:"values"`
}

// ApplyFAQTemplates handles POST /api/v1/sessions/{id}/faq/apply
func (h *Handler) ApplyFAQTemplates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req applyTemplatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if err := validation.ValidateProductType("product_type", req.ProductType); err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*err})
		return
	}

	applied, err := h.store.ApplyFAQTemplates(r.Context(), id, req.ProductType, req.Values)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": applied})
}

// SessionFAQStatistics handles GET /api/v1/sessions/{id}/faq/statistics
func (h *Handler) SessionFAQStatistics(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stats, err := h.store.FAQStatistics(r.Context(), id)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GlobalFAQStatistics handles GET /api/v1/faq/statistics
func (h *Handler) GlobalFAQStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.FAQStatistics(r.Context(), "")
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// FAQRecommendations handles GET /api/v1/sessions/{id}/faq/recommendations
func (h *Handler) FAQRecommendations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	minHits := h.minRecHits
	if raw := r.URL.Query().Get("min_hits"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			minHits = n
		}
	}

	recs, err := h.store.FAQRecommendations(r.Context(), id, minHits)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
