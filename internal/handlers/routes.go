package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/peakscape/tours-api/internal/apperr"
	"github.com/peakscape/tours-api/internal/domain"
	"github.com/peakscape/tours-api/internal/query"
	"github.com/peakscape/tours-api/internal/repository"
	"github.com/peakscape/tours-api/internal/service"
	"github.com/peakscape/tours-api/pkg/config"
	mw "github.com/peakscape/tours-api/pkg/middleware"
)

type RouterDeps struct {
	Config   *config.Config
	Guard    *Guard
	Limiter  repository.RateLimiter
	Auth     *AuthHandlers
	Users    *UserHandlers
	Tours    *TourHandlers
	Bookings *BookingHandlers

	UserRepo    repository.UserRepository
	TourRepo    repository.TourRepository
	ReviewSvc   service.ReviewService
	BookingRepo repository.BookingRepository
}

func NewRouter(d RouterDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(mw.Health)

	maxPage := d.Config.API.MaxPageSize

	tourRes := NewResource[domain.Tour, domain.CreateTourRequest, domain.TourPatch](d.TourRepo, maxPage)
	tourRes.Scope = func(*http.Request) []query.Predicate {
		return []query.Predicate{{Field: "secret", Op: query.OpEq, Value: false}}
	}

	reviewRes := NewResource[domain.Review, domain.CreateReviewRequest, domain.ReviewPatch](d.ReviewSvc, maxPage)
	reviewRes.Scope = func(r *http.Request) []query.Predicate {
		if tourID, ok := routeTourID(r); ok {
			return []query.Predicate{{Field: "tour", Op: query.OpEq, Value: tourID}}
		}
		return nil
	}
	reviewRes.BeforeCreate = func(r *http.Request, req *domain.CreateReviewRequest) error {
		if tourID, ok := routeTourID(r); ok {
			req.TourID = tourID
		}
		// The author is always the session user, whatever the body claims.
		req.UserID = CurrentUser(r).ID
		return nil
	}

	bookingRes := NewResource[domain.Booking, domain.CreateBookingRequest, domain.BookingPatch](d.BookingRepo, maxPage)
	userRes := NewResource[domain.User, domain.SignupRequest, domain.UserPatch](userStore{d.UserRepo}, maxPage)

	g := d.Guard
	staff := g.RequireRole(domain.RoleAdmin, domain.RoleLeadGuide)
	guides := g.RequireRole(domain.RoleAdmin, domain.RoleLeadGuide, domain.RoleGuide)
	admin := g.RequireRole(domain.RoleAdmin)

	// Per-IP budget on the endpoints that can be abused for credential
	// stuffing or mailbox flooding.
	authLimit := func(next http.Handler) http.Handler { return next }
	if d.Limiter != nil {
		authLimit = RateLimit(d.Limiter, 10, 15*time.Minute)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/users", func(u chi.Router) {
			u.With(authLimit).Post("/signup", d.Auth.Signup)
			u.With(authLimit).Post("/login", d.Auth.Login)
			u.Get("/logout", d.Auth.Logout)
			u.With(authLimit).Post("/forgotPassword", d.Auth.ForgotPassword)
			u.Patch("/resetPassword/{token}", d.Auth.ResetPassword)

			u.Group(func(me chi.Router) {
				me.Use(g.RequireAuth)
				me.Patch("/updateMyPassword", d.Auth.UpdatePassword)
				me.Get("/me", d.Users.GetMe)
				me.Patch("/updateMe", d.Users.UpdateMe)
				me.Delete("/deleteMe", d.Users.DeleteMe)
			})

			u.Group(func(adm chi.Router) {
				adm.Use(g.RequireAuth, admin)
				adm.Get("/", userRes.List)
				adm.Post("/", d.Users.CreateUser)
				adm.Get("/{id}", userRes.Get)
				adm.Patch("/{id}", userRes.Update)
				adm.Delete("/{id}", userRes.Delete)
			})
		})

		api.Route("/tours", func(t chi.Router) {
			t.With(g.OptionalAuth, AliasTopTours).Get("/top-5-cheap", tourRes.List)
			t.Get("/tour-stats", d.Tours.Stats)
			t.With(g.RequireAuth, guides).Get("/monthly-plan/{year}", d.Tours.MonthlyPlan)
			t.Get("/tours-within/{distance}/center/{latlng}/unit/{unit}", d.Tours.ToursWithin)
			t.Get("/distances/{latlng}/unit/{unit}", d.Tours.Distances)

			t.With(g.OptionalAuth).Get("/", tourRes.List)
			t.With(g.RequireAuth, staff).Post("/", tourRes.Create)
			t.With(g.OptionalAuth, ExpandReviews).Get("/{id}", tourRes.Get)
			t.With(g.RequireAuth, staff).Patch("/{id}", tourRes.Update)
			t.With(g.RequireAuth, staff).Delete("/{id}", tourRes.Delete)

			t.Route("/{tourID}/reviews", func(rv chi.Router) {
				rv.Use(g.RequireAuth)
				rv.Get("/", reviewRes.List)
				rv.With(g.RequireRole(domain.RoleUser)).Post("/", reviewRes.Create)
			})
		})

		api.Route("/reviews", func(rv chi.Router) {
			rv.Use(g.RequireAuth)
			rv.Get("/", reviewRes.List)
			rv.With(g.RequireRole(domain.RoleUser)).Post("/", reviewRes.Create)
			rv.Get("/{id}", reviewRes.Get)
			rv.With(g.RequireRole(domain.RoleUser, domain.RoleAdmin)).Patch("/{id}", reviewRes.Update)
			rv.With(g.RequireRole(domain.RoleUser, domain.RoleAdmin)).Delete("/{id}", reviewRes.Delete)
		})

		api.Route("/bookings", func(b chi.Router) {
			b.Use(g.RequireAuth)
			b.Get("/checkout-session/{tourID}", d.Bookings.CheckoutSession)

			b.Group(func(adm chi.Router) {
				adm.Use(staff)
				adm.Get("/", bookingRes.List)
				adm.Post("/", bookingRes.Create)
				adm.Get("/{id}", bookingRes.Get)
				adm.Patch("/{id}", bookingRes.Update)
				adm.Delete("/{id}", bookingRes.Delete)
			})
		})

		// Stripe authenticates with the payload signature, so the webhook
		// stays outside the session-guarded routes.
		api.Post("/webhooks/stripe", d.Bookings.StripeWebhook)
	})

	return r
}

func routeTourID(r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "tourID")
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// userStore adapts the user repository to the generic resource surface.
// Direct creation is not part of the API; accounts come from signup.
type userStore struct {
	repository.UserRepository
}

func (userStore) Create(ctx context.Context, req *domain.SignupRequest) (*domain.User, error) {
	return nil, apperr.NewValidation("this route is not defined; please use /signup instead")
}
