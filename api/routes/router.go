package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chitcircle/chitcircle-backend/api/controllers"
	"github.com/chitcircle/chitcircle-backend/api/middleware"
	"github.com/chitcircle/chitcircle-backend/internal/audit"
	"github.com/chitcircle/chitcircle-backend/internal/groups"
	"github.com/chitcircle/chitcircle-backend/internal/members"
	"github.com/chitcircle/chitcircle-backend/internal/notifications"
	"github.com/chitcircle/chitcircle-backend/internal/payments"
	"github.com/chitcircle/chitcircle-backend/internal/payouts"
	"github.com/chitcircle/chitcircle-backend/internal/penalties"
	"github.com/chitcircle/chitcircle-backend/pkg/config"
	"github.com/chitcircle/chitcircle-backend/pkg/db"
	"github.com/chitcircle/chitcircle-backend/pkg/logger"
	"github.com/chitcircle/chitcircle-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	groupService groups.Service,
	memberService members.Service,
	paymentService payments.Service,
	penaltyService penalties.Service,
	payoutService payouts.Service,
	notificationService notifications.Service,
	auditService audit.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.Idempotency(redisClient, logg),
		)

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", controllers.CreateGroup(groupService, logg))
			r.Get("/", controllers.ListGroups(groupService, logg))
			r.Route("/{groupId}", func(r chi.Router) {
				r.Get("/", controllers.GetGroup(groupService, logg))
				r.Post("/activate", controllers.ActivateGroup(groupService, logg))
				r.Post("/members", controllers.InviteMember(memberService, logg))
				r.Get("/members", controllers.ListMembers(memberService, logg))
				r.Post("/members/accept", controllers.AcceptInvite(memberService, logg))
				r.Post("/turns/reassign", controllers.ReassignTurns(memberService, logg))
				r.Get("/payouts", controllers.ListPayouts(payoutService, logg))
				r.Get("/audit-logs", controllers.ListAuditLogs(auditService, logg))
			})
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.RecordPayment(paymentService, logg))
			r.Post("/{paymentId}/confirm", controllers.ConfirmPayment(paymentService, logg))
			r.Post("/{paymentId}/reject", controllers.RejectPayment(paymentService, logg))
			r.Post("/{paymentId}/mark-late", controllers.MarkPaymentLate(paymentService, logg))
		})

		r.Route("/penalties", func(r chi.Router) {
			r.Post("/{penaltyId}/waive", controllers.WaivePenalty(penaltyService, logg))
		})

		r.Route("/payouts", func(r chi.Router) {
			r.Post("/", controllers.InitiatePayout(payoutService, logg))
			r.Post("/{payoutId}/approve", controllers.ApprovePayout(payoutService, logg))
			r.Post("/{payoutId}/complete", controllers.CompletePayout(payoutService, logg))
			r.Post("/{payoutId}/fail", controllers.FailPayout(payoutService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationService, logg))
		})
	})

	return r
}
