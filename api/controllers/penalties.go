package controllers

import (
	"net/http"

	"github.com/chitcircle/chitcircle-backend/api/responses"
	"github.com/chitcircle/chitcircle-backend/api/validators"
	"github.com/chitcircle/chitcircle-backend/internal/penalties"
	"github.com/chitcircle/chitcircle-backend/pkg/logger"
)

type waivePenaltyRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// WaivePenalty forgives an unpaid penalty with an audit reason.
func WaivePenalty(svc penalties.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		penaltyID, err := pathUUID(r, "penaltyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req waivePenaltyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		penalty, err := svc.Waive(r.Context(), penalties.WaiveInput{
			PenaltyID: penaltyID,
			AdminID:   actor,
			Reason:    req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, penalty)
	}
}
