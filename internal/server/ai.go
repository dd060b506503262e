package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"shiksharaha/internal/assistant"
	"shiksharaha/internal/domain"
)

// The assistant endpoints keep the original web app's wire contract:
// flat {error} / {error, details} payloads rather than the API's error
// envelope, so existing clients keep working unchanged.

type chatRequest struct {
	Messages *[]assistant.Message `json:"messages"`
}

type reportRequest struct {
	Project *domain.Project `json:"project"`
}

func registerAssistant(r chi.Router, svc *assistant.Service, log *zap.Logger) {
	r.Post("/api/chat", func(w http.ResponseWriter, req *http.Request) {
		var body chatRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeAIError(w, http.StatusBadRequest, "invalid JSON body", "")
			return
		}
		// An empty array is a valid conversation; only a missing key is not.
		if body.Messages == nil {
			writeAIError(w, http.StatusBadRequest, "messages is required", "")
			return
		}
		msg, err := svc.Chat(req.Context(), *body.Messages)
		if err != nil {
			log.Error("chat completion failed", zap.Error(err))
			writeAIError(w, http.StatusInternalServerError, "failed to get assistant response", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, msg)
	})

	r.Post("/api/generate-report", func(w http.ResponseWriter, req *http.Request) {
		var body reportRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeAIError(w, http.StatusBadRequest, "invalid JSON body", "")
			return
		}
		if body.Project == nil {
			writeAIError(w, http.StatusBadRequest, "project is required", "")
			return
		}
		report, err := svc.GenerateReport(req.Context(), *body.Project)
		if err != nil {
			log.Error("report generation failed", zap.Error(err), zap.String("project", body.Project.ID))
			writeAIError(w, http.StatusInternalServerError, "failed to generate report", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"report": report})
	})
}

func writeAIError(w http.ResponseWriter, status int, msg, details string) {
	payload := map[string]string{"error": msg}
	if details != "" {
		payload["details"] = details
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
