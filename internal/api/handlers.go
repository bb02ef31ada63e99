package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"reasy/internal/account"
	"reasy/internal/availability"
	"reasy/internal/db"
	"reasy/internal/export"
	"reasy/internal/model"
)

type signUpRequest struct {
	Username        string     `json:"username"`
	Password        string     `json:"password"`
	ConfirmPassword string     `json:"confirm_password"`
	Role            model.Role `json:"role"`
}

type loginRequest struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

type authResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

type bookRequest struct {
	SlotID int64 `json:"slot_id"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	flow := account.NewSignUpFlow()
	state, err := flow.Run(func() (*model.User, error) {
		return s.accounts.SignUp(r.Context(), req.Username, req.Password, req.ConfirmPassword, req.Role)
	})
	if err != nil {
		s.fail(w, r, err, "sign up failed")
		return
	}
	s.respondAuth(w, r, state, http.StatusCreated)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleClient
	}

	flow := account.NewLoginFlow()
	state, err := flow.Run(func() (*model.User, error) {
		return s.accounts.Login(r.Context(), req.Username, req.Password, req.Role)
	})
	if err != nil {
		s.fail(w, r, err, "login failed")
		return
	}
	s.respondAuth(w, r, state, http.StatusOK)
}

func (s *Server) respondAuth(w http.ResponseWriter, r *http.Request, state account.State, okStatus int) {
	switch st := state.(type) {
	case account.Success:
		token, err := s.tokens.Issue(st.User)
		if err != nil {
			s.fail(w, r, err, "failed to issue token")
			return
		}
		writeJSON(w, r, okStatus, authResponse{User: st.User, Token: token})
	case account.Error:
		status := statusFor(st.Err)
		if status == http.StatusInternalServerError {
			s.logger.Error().Err(st.Err).Str("request_id", RequestID(r.Context())).Msg("auth attempt failed")
		}
		writeError(w, r, status, st.Message)
	default:
		s.fail(w, r, fmt.Errorf("unexpected auth state %s", state.Name()), "authentication failed")
	}
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.catalog.ListCategories(r.Context())
	if err != nil {
		s.fail(w, r, err, "failed to list categories")
		return
	}
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, r, http.StatusOK, map[string][]string{"categories": cats})
}

func (s *Server) handleBusinesses(w http.ResponseWriter, r *http.Request) {
	filter := db.BusinessFilter{
		Category: r.URL.Query().Get("category"),
		Query:    r.URL.Query().Get("q"),
	}
	list, err := s.catalog.ListBusinesses(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err, "failed to list businesses")
		return
	}
	if list == nil {
		list = []model.Business{}
	}
	writeJSON(w, r, http.StatusOK, map[string][]model.Business{"businesses": list})
}

func (s *Server) handleBusiness(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := s.catalog.GetBusiness(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "failed to load business")
		return
	}
	writeJSON(w, r, http.StatusOK, b)
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	day, err := s.bookings.SlotsForDate(r.Context(), id, r.URL.Query().Get("date"))
	if err != nil {
		s.fail(w, r, err, "failed to load slots")
		return
	}
	writeJSON(w, r, http.StatusOK, day)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	actor, _ := IdentityFrom(r.Context())

	res, err := s.bookings.Book(r.Context(), actor.UserID, req.SlotID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "time slot not found")
			return
		}
		s.fail(w, r, err, "failed to book slot")
		return
	}
	writeJSON(w, r, http.StatusCreated, res)
}

func (s *Server) handleClientReservations(w http.ResponseWriter, r *http.Request) {
	tab, err := availability.ParseClientTab(r.URL.Query().Get("tab"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor, _ := IdentityFrom(r.Context())

	groups, err := s.bookings.ClientReservations(r.Context(), actor.UserID, tab)
	if err != nil {
		s.fail(w, r, err, "failed to load reservations")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"tab": tab, "groups": groups})
}

func (s *Server) ownBusiness(w http.ResponseWriter, r *http.Request) (*model.Business, bool) {
	actor, _ := IdentityFrom(r.Context())
	b, err := s.bookings.BusinessFor(r.Context(), actor.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "no business is registered for this account")
			return nil, false
		}
		s.fail(w, r, err, "failed to load business")
		return nil, false
	}
	return b, true
}

func (s *Server) handleOwnBusiness(w http.ResponseWriter, r *http.Request) {
	b, ok := s.ownBusiness(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, b)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	b, ok := s.ownBusiness(w, r)
	if !ok {
		return
	}
	stats, err := s.bookings.BusinessDashboard(r.Context(), b.ID)
	if err != nil {
		s.fail(w, r, err, "failed to load stats")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"date": s.bookings.Today(), "stats": stats})
}

func (s *Server) handleBusinessReservations(w http.ResponseWriter, r *http.Request) {
	tab, err := availability.ParseBusinessTab(r.URL.Query().Get("tab"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	b, ok := s.ownBusiness(w, r)
	if !ok {
		return
	}

	groups, err := s.bookings.BusinessReservations(r.Context(), b.ID, tab)
	if err != nil {
		s.fail(w, r, err, "failed to load reservations")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"tab": tab, "groups": groups})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	b, ok := s.ownBusiness(w, r)
	if !ok {
		return
	}
	views, err := s.bookings.AllBusinessReservations(r.Context(), b.ID)
	if err != nil {
		s.fail(w, r, err, "failed to load reservations")
		return
	}

	filename := fmt.Sprintf("reservations_%d_%s.xlsx", b.ID, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := export.Reservations(w, b.Name, views); err != nil {
		s.logger.Error().Err(err).Int64("business_id", b.ID).Msg("export reservations")
	}
}

func (s *Server) handleDecision(status model.ReservationStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		actor, _ := IdentityFrom(r.Context())

		decide := s.bookings.Accept
		if status == model.ReservationDeclined {
			decide = s.bookings.Decline
		}
		res, err := decide(r.Context(), actor.UserID, id)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, r, http.StatusNotFound, "reservation not found")
				return
			}
			s.fail(w, r, err, "failed to update reservation")
			return
		}
		writeJSON(w, r, http.StatusOK, res)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if s.audit == nil {
		writeError(w, r, http.StatusNotFound, "reservation history is not recorded")
		return
	}
	b, ok := s.ownBusiness(w, r)
	if !ok {
		return
	}

	history, err := s.audit.History(r.Context(), b.ID, id)
	if err != nil {
		s.fail(w, r, err, "failed to load reservation history")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"reservation_id": id, "events": history})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
