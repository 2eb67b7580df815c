package health

import (
	"context"
	"net/http"
	"time"

	"irdinv/internal/apperr"
	"irdinv/internal/logs"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

const pingTimeout = 2 * time.Second

// RegisterRoutes: только /healthz (процесс жив).
func RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		apperr.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
}

// RegisterRoutesWithDB adds /readyz, which pings the database.
func RegisterRoutesWithDB(r *mux.Router, db *gorm.DB) {
	RegisterRoutes(r)
	r.HandleFunc("/readyz", func(w http.ResponseWriter, req *http.Request) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(req.Context(), pingTimeout)
			err = sqlDB.PingContext(ctx)
			cancel()
		}
		if err != nil {
			logs.FromContext(req.Context()).WithError(err).Warn("readiness: database ping failed")
			apperr.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "db": "down"})
			return
		}
		apperr.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready", "db": "up"})
	}).Methods(http.MethodGet)
}
