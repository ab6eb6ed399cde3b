package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/chitcircle/chitcircle-backend/api/responses"
	"github.com/chitcircle/chitcircle-backend/api/validators"
	"github.com/chitcircle/chitcircle-backend/internal/payments"
	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
	"github.com/chitcircle/chitcircle-backend/pkg/logger"
)

type recordPaymentRequest struct {
	MemberID string  `json:"memberId" validate:"required,uuid"`
	CycleID  string  `json:"cycleId" validate:"required,uuid"`
	Amount   string  `json:"amount" validate:"required"`
	ProofRef *string `json:"proofRef" validate:"omitempty,max=255"`
}

// RecordPayment books a member's contribution for a cycle.
func RecordPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req recordPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		memberID, err := uuid.Parse(req.MemberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid memberId"))
			return
		}
		cycleID, err := uuid.Parse(req.CycleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cycleId"))
			return
		}

		payment, err := svc.Record(r.Context(), payments.RecordInput{
			MemberID: memberID,
			CycleID:  cycleID,
			Amount:   req.Amount,
			ProofRef: req.ProofRef,
			ActorID:  actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payment)
	}
}

type reviewPaymentRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// ConfirmPayment settles an under-review payment.
func ConfirmPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return reviewPayment(svc.Confirm, logg)
}

// RejectPayment bounces an under-review payment and reverses its rollups.
func RejectPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return reviewPayment(svc.Reject, logg)
}

func reviewPayment(decide func(ctx context.Context, input payments.ReviewInput) (*models.Payment, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := pathUUID(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req reviewPaymentRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		payment, err := decide(r.Context(), payments.ReviewInput{
			PaymentID: paymentID,
			AdminID:   actor,
			Reason:    req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// MarkPaymentLate is the organizer's manual override for a straggler.
func MarkPaymentLate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := pathUUID(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payment, err := svc.MarkLate(r.Context(), paymentID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}
