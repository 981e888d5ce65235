package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/NinoCoelho/WhatsAppBridge/internal/messaging"
)

var validate = validator.New()

type MessageHandler struct {
	client messaging.Client
	log    zerolog.Logger
}

func NewMessageHandler(client messaging.Client, log zerolog.Logger) *MessageHandler {
	return &MessageHandler{client: client, log: log}
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId" validate:"required"`
	Message string `json:"message" validate:"required,max=65536"`
}

type sendMessageResponse struct {
	MessageID string `json:"messageId"`
	Timestamp int64  `json:"timestamp"`
	Status    string `json:"status"`
	From      string `json:"from"`
	To        string `json:"to"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxBodySize)
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}

	sent, err := h.client.SendText(r.Context(), req.ChatID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, messaging.ErrNotReady):
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		case errors.Is(err, messaging.ErrInvalidChatID):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Str("chat_id", req.ChatID).Msg("failed to send message")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		MessageID: sent.ID,
		Timestamp: sent.Timestamp,
		Status:    "sent",
		From:      sent.From,
		To:        sent.To,
	})
}
