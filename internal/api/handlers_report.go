package api

import (
	"encoding/json"
	"net/http"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/api/respond"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/api/validate"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/services"
)

// ReportHandler serves the purge report read-model.
type ReportHandler struct {
	svc *services.ReportService
}

func NewReportHandler(svc *services.ReportService) *ReportHandler { return &ReportHandler{svc: svc} }

// GetReport GET /api/report?robotId=
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.BuildReport(r.Context(), r.URL.Query().Get("robotId"))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, report)
}

// EmailReport POST /api/report/email
func (h *ReportHandler) EmailReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RobotID string `json:"robotId"`
		Email   string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.ReportEmail(req.Email); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	report, err := h.svc.EmailReport(r.Context(), req.RobotID, req.Email)
	if err != nil {
		respond.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "sent",
		"email":   req.Email,
		"queued":  len(report.Queued),
		"removed": len(report.Removed),
	})
}
