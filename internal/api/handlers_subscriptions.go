package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/NinoCoelho/WhatsAppBridge/internal/metrics"
	"github.com/NinoCoelho/WhatsAppBridge/internal/registry"
)

type SubscriptionHandler struct {
	reg *registry.Registry
	log zerolog.Logger
}

func NewSubscriptionHandler(reg *registry.Registry, log zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{reg: reg, log: log}
}

type createSubscriptionRequest struct {
	URL    string          `json:"url"`
	Events json.RawMessage `json:"events"`
	Secret string          `json:"secret"`
}

type deleteSubscriptionRequest struct {
	URL string `json:"url"`
}

const maxBodySize = 64 * 1024

func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// A malformed events field is reported only after the URL has been checked.
	var events []string
	var badEvents bool
	if len(req.Events) > 0 && string(req.Events) != "null" {
		if json.Unmarshal(req.Events, &events) != nil {
			events, badEvents = nil, true
		}
	}

	err := h.reg.Register(req.URL, events, req.Secret)
	switch {
	case errors.Is(err, registry.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, "Invalid URL format")
		return
	case errors.Is(err, registry.ErrInvalidInput):
		if req.URL != "" && req.Secret != "" && (badEvents || events != nil) {
			writeError(w, http.StatusBadRequest, "Events must be a non-empty array")
			return
		}
		writeError(w, http.StatusBadRequest, "Missing required fields: url, events, secret")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}

	metrics.Subscriptions.Set(float64(h.reg.Len()))
	h.log.Info().Str("url", req.URL).Strs("events", events).Msg("subscription registered")
	writeMessage(w, http.StatusCreated, "Subscription created successfully")
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reg.List())
}

func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req deleteSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	if err := h.reg.Remove(req.URL); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Subscription not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to remove subscription")
		return
	}

	metrics.Subscriptions.Set(float64(h.reg.Len()))
	h.log.Info().Str("url", req.URL).Msg("subscription removed")
	writeMessage(w, http.StatusOK, "Subscription removed successfully")
}
