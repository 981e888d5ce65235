package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/NinoCoelho/WhatsAppBridge/internal/lifecycle"
	"github.com/NinoCoelho/WhatsAppBridge/internal/messaging"
	"github.com/NinoCoelho/WhatsAppBridge/internal/models"
	"github.com/NinoCoelho/WhatsAppBridge/internal/qr"
)

// Connection is the slice of the lifecycle manager the HTTP layer drives.
type Connection interface {
	Initialize(ctx context.Context) (string, error)
	Status() models.ConnectionStatus
	State(ctx context.Context) string
	CurrentQR() string
	ResetRetries()
}

type AuthHandler struct {
	conn   Connection
	client messaging.Client
	key    string
	qrSize int
	log    zerolog.Logger
}

func NewAuthHandler(conn Connection, client messaging.Client, key string, qrSize int, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{conn: conn, client: client, key: key, qrSize: qrSize, log: log}
}

type qrResponse struct {
	Status string `json:"status"`
	QR     string `json:"qr,omitempty"`
}

type authStatusResponse struct {
	models.ConnectionStatus
	State     string `json:"state"`
	Timestamp int64  `json:"timestamp"`
}

func (h *AuthHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	h.log.Info().Msg("initialization request received")

	if h.conn.Status().Authenticated {
		writeError(w, http.StatusBadRequest, "WhatsApp client is already authenticated")
		return
	}

	code, err := h.conn.Initialize(r.Context())
	if err != nil {
		if errors.Is(err, lifecycle.ErrInitInProgress) {
			writeError(w, http.StatusConflict, "Initialization already in progress")
			return
		}
		h.log.Error().Err(err).Msg("initialization error")
		writeErrorDetails(w, http.StatusInternalServerError, "Failed to initialize WhatsApp client", err)
		return
	}

	if code == "" {
		if h.conn.Status().Authenticated {
			writeJSON(w, http.StatusOK, qrResponse{Status: "AUTHENTICATED"})
			return
		}
		h.log.Error().Msg("no QR code received and client not authenticated")
		writeError(w, http.StatusInternalServerError, "Failed to get QR code or authenticate")
		return
	}

	h.writeQR(w, code)
}

func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, authStatusResponse{
		ConnectionStatus: h.conn.Status(),
		State:            h.conn.State(r.Context()),
		Timestamp:        time.Now().UnixMilli(),
	})
}

func (h *AuthHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	if h.conn.Status().Authenticated {
		writeError(w, http.StatusBadRequest, "WhatsApp client is already authenticated")
		return
	}

	code := h.conn.CurrentQR()
	if code == "" {
		writeError(w, http.StatusNotFound, "No QR code available")
		return
	}
	h.writeQR(w, code)
}

func (h *AuthHandler) Key(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"key": h.key})
}

func (h *AuthHandler) Account(w http.ResponseWriter, r *http.Request) {
	acc, err := h.client.Account(r.Context())
	if err != nil {
		if errors.Is(err, messaging.ErrNotReady) {
			writeError(w, http.StatusBadRequest, "Client not fully initialized")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *AuthHandler) ResetRetries(w http.ResponseWriter, r *http.Request) {
	h.conn.ResetRetries()
	writeMessage(w, http.StatusOK, "Retry counter reset")
}

func (h *AuthHandler) writeQR(w http.ResponseWriter, code string) {
	url, err := qr.DataURL(code, h.qrSize)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to render QR code")
		writeError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}
	writeJSON(w, http.StatusOK, qrResponse{Status: "QR_READY", QR: url})
}
