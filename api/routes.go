package api

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

func RegisterRoutes() http.Handler {
	router := mux.NewRouter()

	// Ping ingestion and rider state
	router.HandleFunc("/riders/{rider_id}/pings", SubmitPing).Methods("POST")
	router.HandleFunc("/riders/{rider_id}/pings/last", GetLastPing).Methods("GET")
	router.HandleFunc("/riders/{rider_id}/audit", GetAuditTrail).Methods("GET")

	// Utilities
	router.HandleFunc("/distance", DistanceHandler).Methods("POST")
	router.HandleFunc("/zones", GetZones).Methods("GET")
	router.HandleFunc("/health", HealthCheck).Methods("GET")

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Device-Token"}),
	)

	return cors(router)
}
