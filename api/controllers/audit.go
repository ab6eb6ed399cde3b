package controllers

import (
	"net/http"
	"strings"

	"github.com/chitcircle/chitcircle-backend/api/responses"
	"github.com/chitcircle/chitcircle-backend/api/validators"
	"github.com/chitcircle/chitcircle-backend/internal/audit"
	"github.com/chitcircle/chitcircle-backend/pkg/logger"
)

// ListAuditLogs returns a group's audit trail, newest first.
func ListAuditLogs(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListByGroup(r.Context(), audit.ListParams{
			GroupID: groupID,
			Limit:   limit,
			Cursor:  strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
