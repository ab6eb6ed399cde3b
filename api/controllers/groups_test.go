package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chitcircle/chitcircle-backend/api/middleware"
	"github.com/chitcircle/chitcircle-backend/internal/groups"
	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
)

type testGroupsService struct {
	createFn   func(ctx context.Context, input groups.CreateInput) (*models.Group, error)
	activateFn func(ctx context.Context, groupID, actorID uuid.UUID) (*models.Group, error)
	getFn      func(ctx context.Context, id uuid.UUID) (*models.Group, error)
	listFn     func(ctx context.Context, organizerID uuid.UUID) ([]models.Group, error)
}

func (s *testGroupsService) Create(ctx context.Context, input groups.CreateInput) (*models.Group, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return &models.Group{}, nil
}

func (s *testGroupsService) Activate(ctx context.Context, groupID, actorID uuid.UUID) (*models.Group, error) {
	if s.activateFn != nil {
		return s.activateFn(ctx, groupID, actorID)
	}
	return &models.Group{}, nil
}

func (s *testGroupsService) Get(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return &models.Group{}, nil
}

func (s *testGroupsService) ListByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]models.Group, error) {
	if s.listFn != nil {
		return s.listFn(ctx, organizerID)
	}
	return nil, nil
}

func authedRequest(method, target, body string, userID uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func withRouteParam(req *http.Request, name, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(name, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestCreateGroupPassesParsedInput(t *testing.T) {
	organizer := uuid.New()
	var captured groups.CreateInput
	svc := &testGroupsService{
		createFn: func(ctx context.Context, input groups.CreateInput) (*models.Group, error) {
			captured = input
			return &models.Group{Name: input.Name}, nil
		},
	}

	body := `{"name":"Street Savers","contributionAmount":"5000","memberCount":10,"startDate":"2026-09-01","turnOrderType":"fixed","quorumPercent":80}`
	req := authedRequest(http.MethodPost, "/api/v1/groups", body, organizer)
	resp := httptest.NewRecorder()
	CreateGroup(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.OrganizerID != organizer {
		t.Fatalf("expected organizer %s got %s", organizer, captured.OrganizerID)
	}
	if captured.MemberCount != 10 || captured.ContributionAmount != "5000" {
		t.Fatalf("unexpected input %+v", captured)
	}
	if captured.TurnOrderType != enums.TurnOrderTypeFixed {
		t.Fatalf("expected fixed turn order got %s", captured.TurnOrderType)
	}
	if captured.StartDate.Format("2006-01-02") != "2026-09-01" {
		t.Fatalf("unexpected start date %s", captured.StartDate)
	}
}

func TestCreateGroupRejectsMissingName(t *testing.T) {
	svc := &testGroupsService{
		createFn: func(ctx context.Context, input groups.CreateInput) (*models.Group, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}

	body := `{"contributionAmount":"5000","memberCount":10,"startDate":"2026-09-01"}`
	req := authedRequest(http.MethodPost, "/api/v1/groups", body, uuid.New())
	resp := httptest.NewRecorder()
	CreateGroup(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCreateGroupRequiresAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/groups", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	CreateGroup(&testGroupsService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestActivateGroupUsesPathID(t *testing.T) {
	groupID := uuid.New()
	actor := uuid.New()
	svc := &testGroupsService{
		activateFn: func(ctx context.Context, gid, aid uuid.UUID) (*models.Group, error) {
			if gid != groupID {
				t.Fatalf("expected group %s got %s", groupID, gid)
			}
			if aid != actor {
				t.Fatalf("expected actor %s got %s", actor, aid)
			}
			return &models.Group{Status: enums.GroupStatusActive}, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/groups/"+groupID.String()+"/activate", "", actor)
	req = withRouteParam(req, "groupId", groupID.String())
	resp := httptest.NewRecorder()
	ActivateGroup(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data models.Group `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status != enums.GroupStatusActive {
		t.Fatalf("unexpected status %s", envelope.Data.Status)
	}
}
