package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/chitcircle/chitcircle-backend/api/responses"
	"github.com/chitcircle/chitcircle-backend/api/validators"
	"github.com/chitcircle/chitcircle-backend/internal/members"
	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
	"github.com/chitcircle/chitcircle-backend/pkg/logger"
)

type inviteMemberRequest struct {
	UserID     string `json:"userId" validate:"required,uuid"`
	TurnNumber int    `json:"turnNumber" validate:"omitempty,min=1"`
}

// InviteMember adds a user to a draft group's roster.
func InviteMember(svc members.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req inviteMemberRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid userId"))
			return
		}

		member, err := svc.Invite(r.Context(), members.InviteInput{
			GroupID:    groupID,
			UserID:     userID,
			TurnNumber: req.TurnNumber,
			ActorID:    actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, member)
	}
}

// AcceptInvite flips the caller's pending membership to active.
func AcceptInvite(svc members.Service, logg *logger.Logger) http.HandlerFunc {
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
		member, err := svc.Accept(r.Context(), groupID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, member)
	}
}

type reassignTurnsRequest struct {
	Turns map[string]int `json:"turns" validate:"required,min=1"`
}

// ReassignTurns remaps beneficiary turn numbers for a draft group.
func ReassignTurns(svc members.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req reassignTurnsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		remap := make(map[uuid.UUID]int, len(req.Turns))
		for rawID, turn := range req.Turns {
			memberID, err := uuid.Parse(rawID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid member id in turns"))
				return
			}
			remap[memberID] = turn
		}

		if err := svc.ReassignTurnOrder(r.Context(), members.ReassignInput{
			GroupID: groupID,
			Remap:   remap,
			ActorID: actor,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "reassigned"})
	}
}

// ListMembers returns the roster for a group.
func ListMembers(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		roster, err := svc.ListByGroup(r.Context(), groupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, roster)
	}
}
