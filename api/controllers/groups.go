package controllers

import (
	"net/http"
	"time"

	"github.com/chitcircle/chitcircle-backend/api/responses"
	"github.com/chitcircle/chitcircle-backend/api/validators"
	"github.com/chitcircle/chitcircle-backend/internal/groups"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
	"github.com/chitcircle/chitcircle-backend/pkg/logger"
)

type createGroupRequest struct {
	Name               string `json:"name" validate:"required,min=2,max=120"`
	ContributionAmount string `json:"contributionAmount" validate:"required"`
	MemberCount        int    `json:"memberCount" validate:"required,min=2,max=100"`
	StartDate          string `json:"startDate" validate:"required"`
	PaymentWindowFrom  int    `json:"paymentWindowFrom" validate:"omitempty,min=1,max=28"`
	PaymentWindowTo    int    `json:"paymentWindowTo" validate:"omitempty,min=1,max=28"`
	TurnOrderType      string `json:"turnOrderType" validate:"omitempty"`
	QuorumPercent      int    `json:"quorumPercent" validate:"omitempty,min=1,max=100"`
	LateFee            int64  `json:"lateFee" validate:"omitempty,min=0"`
	GracePeriodDays    int    `json:"gracePeriodDays" validate:"omitempty,min=0,max=28"`
	DefaultThreshold   int    `json:"defaultThreshold" validate:"omitempty,min=0"`
}

// CreateGroup registers a draft savings group owned by the caller.
func CreateGroup(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		organizer, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createGroupRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		startDate, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "startDate must be YYYY-MM-DD"))
			return
		}

		turnOrder := enums.TurnOrderType(req.TurnOrderType)
		if req.TurnOrderType != "" && !turnOrder.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown turn order type"))
			return
		}

		group, err := svc.Create(r.Context(), groups.CreateInput{
			Name:               validators.SanitizeString(req.Name, 120),
			OrganizerID:        organizer,
			ContributionAmount: req.ContributionAmount,
			MemberCount:        req.MemberCount,
			StartDate:          startDate,
			PaymentWindowFrom:  req.PaymentWindowFrom,
			PaymentWindowTo:    req.PaymentWindowTo,
			TurnOrderType:      turnOrder,
			QuorumPercent:      req.QuorumPercent,
			LateFee:            req.LateFee,
			GracePeriodDays:    req.GracePeriodDays,
			DefaultThreshold:   req.DefaultThreshold,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, group)
	}
}

// ActivateGroup locks the roster, assigns turns and opens the first cycle.
func ActivateGroup(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := svc.Activate(r.Context(), groupID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, group)
	}
}

// GetGroup returns a single group by id.
func GetGroup(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		group, err := svc.Get(r.Context(), groupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, group)
	}
}

// ListGroups returns the groups organized by the caller.
func ListGroups(svc groups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		organizer, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListByOrganizer(r.Context(), organizer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
