// Package api is the HTTP surface of the booking service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"reasy/internal/account"
	"reasy/internal/audit"
	"reasy/internal/booking"
	"reasy/internal/db"
	"reasy/internal/model"
)

// Catalog lists businesses for browsing.
type Catalog interface {
	ListBusinesses(ctx context.Context, filter db.BusinessFilter) ([]model.Business, error)
	GetBusiness(ctx context.Context, id int64) (*model.Business, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Catalog  Catalog
	Bookings *booking.Service
	Accounts *account.Service
	Tokens   *account.TokenIssuer
	Audit    *audit.Service

	LoginRatePerSec float64
	LoginBurst      int
}

type Server struct {
	catalog  Catalog
	bookings *booking.Service
	accounts *account.Service
	tokens   *account.TokenIssuer
	audit    *audit.Service
	limiter  *ipRateLimiter
	logger   *zerolog.Logger
}

func NewServer(deps Deps, logger *zerolog.Logger) *Server {
	if deps.LoginRatePerSec <= 0 {
		deps.LoginRatePerSec = 1
	}
	if deps.LoginBurst <= 0 {
		deps.LoginBurst = 5
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{
		catalog:  deps.Catalog,
		bookings: deps.Bookings,
		accounts: deps.Accounts,
		tokens:   deps.Tokens,
		audit:    deps.Audit,
		limiter:  newIPRateLimiter(deps.LoginRatePerSec, deps.LoginBurst),
		logger:   logger,
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Route("/api", func(r chi.Router) {
		r.With(s.limiter.middleware).Post("/auth/signup", s.handleSignUp)
		r.With(s.limiter.middleware).Post("/auth/login", s.handleLogin)

		r.Get("/categories", s.handleCategories)
		r.Get("/businesses", s.handleBusinesses)
		r.Get("/businesses/{id}", s.handleBusiness)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.RoleClient))
				r.Get("/businesses/{id}/slots", s.handleSlots)
				r.Post("/reservations", s.handleBook)
				r.Get("/me/reservations", s.handleClientReservations)
			})

			r.Route("/business", func(r chi.Router) {
				r.Use(requireRole(model.RoleBusiness))
				r.Get("/", s.handleOwnBusiness)
				r.Get("/stats", s.handleStats)
				r.Get("/reservations", s.handleBusinessReservations)
				r.Get("/reservations/export", s.handleExport)
				r.Post("/reservations/{id}/accept", s.handleDecision(model.ReservationAccepted))
				r.Post("/reservations/{id}/decline", s.handleDecision(model.ReservationDeclined))
				r.Get("/reservations/{id}/history", s.handleHistory)
			})
		})
	})
	return r
}

// NewHTTPServer wraps the router in an http.Server with the given timeouts.
func (s *Server) NewHTTPServer(addr string, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}
}
