package controllers

import (
	"context"
	"net/http"

	"github.com/chitcircle/chitcircle-backend/api/responses"
	"github.com/chitcircle/chitcircle-backend/pkg/config"
	"github.com/chitcircle/chitcircle-backend/pkg/db"
	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
	"github.com/chitcircle/chitcircle-backend/pkg/logger"
	"github.com/chitcircle/chitcircle-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ChitCircle-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every backing dependency answers.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ChitCircle-Env", cfg.App.Env)

		checks := map[string]func(context.Context) error{}
		if dbP != nil {
			checks["db"] = dbP.Ping
		}
		if redisP != nil {
			checks["redis"] = redisP.Ping
		}

		status := map[string]string{}
		failed := false
		for name, ping := range checks {
			if err := ping(r.Context()); err != nil {
				status[name] = "down"
				failed = true
				if logg != nil {
					ctx := logg.WithField(r.Context(), "dependency", name)
					logg.Error(ctx, "readiness check failed", err)
				}
				continue
			}
			status[name] = "up"
		}

		if failed {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(status))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "dependencies": status})
	}
}
