package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/pysugar/digital-twin/internal/agent"
	"github.com/pysugar/digital-twin/internal/auth/session"
)

type chatRequest struct {
	Message string          `json:"message"`
	History []agent.Message `json:"history"`
}

type chatResponse struct {
	Response    string                 `json:"response"`
	Status      agent.Status           `json:"status"`
	ContextUsed []string               `json:"context_used"`
	ToolCalls   []agent.ToolCallRecord `json:"tool_calls"`
}

// ChatHandler runs one orchestration turn. Anonymous requests are allowed
// and get the no-tools conversation.
func ChatHandler(loop *agent.Loop, sessions *session.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Message == "" {
			http.Error(w, "Message is required", http.StatusBadRequest)
			return
		}

		userID := sessions.UserID(r)

		result, err := loop.Run(r.Context(), userID, req.History, req.Message)
		if err != nil {
			log.Printf("❌ Chat request failed: %v", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		resp := chatResponse{
			Response:    result.Text,
			Status:      result.Status,
			ContextUsed: []string{},
			ToolCalls:   result.ToolCalls,
		}
		for _, tc := range result.ToolCalls {
			resp.ContextUsed = append(resp.ContextUsed, tc.Name)
		}
		if resp.ToolCalls == nil {
			resp.ToolCalls = []agent.ToolCallRecord{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
