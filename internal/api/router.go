package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/api/recovery"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/services"
)

// Deps are the services the router exposes.
type Deps struct {
	Robots    *services.RobotService
	Reports   *services.ReportService
	IsHealthy func() bool
	Log       zerolog.Logger
}

// NewRouter wires every HTTP route.
func NewRouter(d Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware(d.Log))

	healthHandler := NewHealthHandler(d.IsHealthy)
	robotHandler := NewRobotHandler(d.Robots)
	reportHandler := NewReportHandler(d.Reports)

	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	// Robot endpoints
	router.HandleFunc("/api/robots", robotHandler.CreateRobot).Methods("POST")
	router.HandleFunc("/api/robots", robotHandler.ListRobots).Methods("GET")
	router.HandleFunc("/api/robots/{robotId}", robotHandler.GetRobot).Methods("GET")
	router.HandleFunc("/api/robots/{robotId}", robotHandler.PatchRobot).Methods("PATCH")
	router.HandleFunc("/api/robots/{robotId}", robotHandler.DeleteRobot).Methods("DELETE")
	router.HandleFunc("/api/robots/{robotId}/config", robotHandler.GetRobotConfig).Methods("GET")
	router.HandleFunc("/api/robots/{robotId}/run", robotHandler.RunRobot).Methods("POST")

	// Report endpoints
	router.HandleFunc("/api/report", reportHandler.GetReport).Methods("GET")
	router.HandleFunc("/api/report/email", reportHandler.EmailReport).Methods("POST")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}
