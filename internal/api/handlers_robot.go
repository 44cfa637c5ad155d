package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/api/respond"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/api/validate"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/services"
)

// RobotHandler is a thin HTTP transport over RobotService.
type RobotHandler struct {
	svc *services.RobotService
}

func NewRobotHandler(svc *services.RobotService) *RobotHandler { return &RobotHandler{svc: svc} }

type createRobotRequest struct {
	Name              string  `json:"name"`
	Description       *string `json:"description"`
	PlatformEmail     string  `json:"platformEmail"`
	PlatformAPIKey    string  `json:"platformApiKey"`
	PlatformType      string  `json:"platformType"`
	CloudSessionToken string  `json:"cloudSessionToken"`
	Active            *bool   `json:"active"`
	ScheduleDays      int     `json:"scheduleDays"`
	LastActiveDays    int     `json:"lastActiveDays"`
	CheckDoubleName   bool    `json:"checkDoubleName"`
	CheckDoubleEmail  bool    `json:"checkDoubleEmail"`
	CheckActiveStatus bool    `json:"checkActiveStatus"`
}

// CreateRobot POST /api/robots
func (h *RobotHandler) CreateRobot(w http.ResponseWriter, r *http.Request) {
	var req createRobotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.CreateRobot(req.Name, req.PlatformEmail, req.PlatformType, req.Description, req.ScheduleDays, req.LastActiveDays); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	platform, _ := model.ParsePlatformType(req.PlatformType)
	robot := &model.Robot{
		Name: req.Name,
		Credential: model.Credential{
			PlatformEmail:     req.PlatformEmail,
			PlatformAPIKey:    req.PlatformAPIKey,
			PlatformType:      platform,
			CloudSessionToken: req.CloudSessionToken,
		},
		Policy: model.Policy{
			Active:            req.Active == nil || *req.Active,
			ScheduleDays:      req.ScheduleDays,
			LastActiveDays:    req.LastActiveDays,
			CheckDoubleName:   req.CheckDoubleName,
			CheckDoubleEmail:  req.CheckDoubleEmail,
			CheckActiveStatus: req.CheckActiveStatus,
		},
	}
	if req.Description != nil {
		robot.Description = *req.Description
	}
	out, err := h.svc.CreateRobot(r.Context(), robot)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out.Redacted())
}

// ListRobots GET /api/robots
func (h *RobotHandler) ListRobots(w http.ResponseWriter, r *http.Request) {
	robots, err := h.svc.ListRobots(r.Context())
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	out := make([]model.Robot, 0, len(robots))
	for _, rb := range robots {
		out = append(out, rb.Redacted())
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"robots": out, "count": len(out)})
}

// GetRobot GET /api/robots/{robotId}
func (h *RobotHandler) GetRobot(w http.ResponseWriter, r *http.Request) {
	robot, err := h.svc.GetRobot(r.Context(), mux.Vars(r)["robotId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, robot.Redacted())
}

// PatchRobot PATCH /api/robots/{robotId}
func (h *RobotHandler) PatchRobot(w http.ResponseWriter, r *http.Request) {
	var patch model.RobotPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.PatchRobot(patch); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	out, err := h.svc.PatchRobot(r.Context(), mux.Vars(r)["robotId"], patch)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out.Redacted())
}

// DeleteRobot DELETE /api/robots/{robotId}
func (h *RobotHandler) DeleteRobot(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteRobot(r.Context(), mux.Vars(r)["robotId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRobotConfig GET /api/robots/{robotId}/config
func (h *RobotHandler) GetRobotConfig(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.RobotConfig(r.Context(), mux.Vars(r)["robotId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// RunRobot POST /api/robots/{robotId}/run
func (h *RobotHandler) RunRobot(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.RunRobotNow(r.Context(), mux.Vars(r)["robotId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}
