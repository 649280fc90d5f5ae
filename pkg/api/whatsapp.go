package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/zapdesk/zapdesk/pkg/logger"
)

func (s *Server) handleRegenerateQR(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Regenerate(r.Context()); err != nil {
		logger.ErrorCF("api", "Session regenerate failed", map[string]interface{}{
			"error": err.Error(),
		})
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "requesting new QR code"})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.manager.Disconnect(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"message": "whatsapp disconnected"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"isConnected": s.manager.IsConnected(r.Context()),
	})
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 50)

	result, err := s.directory.List(r.Context(), page, limit)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	contactID := r.PathValue("contactId")
	limit := queryInt(r, "limit", 50)

	messages, err := s.manager.ChatMessages(r.Context(), contactID, limit)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		To      string `json:"to"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.To == "" || body.Content == "" {
		writeError(w, http.StatusBadRequest, "to and content are required")
		return
	}

	msg, err := s.manager.SendMessage(r.Context(), body.To, body.Content)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	messageID := r.PathValue("messageId")
	var body struct {
		To         string `json:"to"`
		NewContent string `json:"newContent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.To == "" || body.NewContent == "" {
		writeError(w, http.StatusBadRequest, "to and newContent are required")
		return
	}

	if err := s.manager.EditMessage(r.Context(), messageID, body.NewContent, body.To); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := r.PathValue("messageId")
	to := r.URL.Query().Get("to")
	if to == "" {
		writeError(w, http.StatusBadRequest, "to query parameter is required")
		return
	}

	if err := s.manager.DeleteMessage(r.Context(), messageID, to); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
