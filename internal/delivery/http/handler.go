package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vogiaan1904/ticketbottle-reservation/internal/service"
	pkgErrors "github.com/vogiaan1904/ticketbottle-reservation/pkg/errors"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/logger"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/response"
)

// Admission headers. The token ID names the admission slot; the entry
// token is the signed credential minted at promotion.
const (
	headerAdmissionToken = "X-Admission-Token"
	headerEntryToken     = "X-Entry-Token"
)

type Handler struct {
	l            logger.Logger
	admission    service.AdmissionService
	reservations service.ReservationService
	balances     service.BalanceService
	payments     service.PaymentService
	sweeper      *service.Sweeper
	validator    *validator.Validate
}

func NewHandler(
	l logger.Logger,
	admission service.AdmissionService,
	reservations service.ReservationService,
	balances service.BalanceService,
	payments service.PaymentService,
	sweeper *service.Sweeper,
) *Handler {
	return &Handler{
		l:            l,
		admission:    admission,
		reservations: reservations,
		balances:     balances,
		payments:     payments,
		sweeper:      sweeper,
		validator:    validator.New(),
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := h.sweeper.Status()
	response.JSON(w, http.StatusOK, map[string]any{
		"status":              "healthy",
		"service":             "reservation-service",
		"sweeper_running":     status.Running,
		"sweeper_error_count": status.ErrorCount,
	})
}

func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.admission.Issue(r.Context(), req.UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, newTokenStatusResponse(out))
}

func (h *Handler) TokenStatus(w http.ResponseWriter, r *http.Request) {
	out, err := h.admission.Status(r.Context(), chi.URLParam(r, "tokenId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, newTokenStatusResponse(out))
}

// ReleaseToken lets a user leave the line voluntarily.
func (h *Handler) ReleaseToken(w http.ResponseWriter, r *http.Request) {
	if err := h.admission.Release(r.Context(), chi.URLParam(r, "tokenId"), "user_left"); err != nil {
		h.respondError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"status": "released"})
}

func (h *Handler) QueueInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.admission.QueueInfo(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, queueInfoResponse{
		WaitingCount: info.WaitingCount,
		ActiveCount:  info.ActiveCount,
		MaxActive:    info.MaxActive,
	})
}

// Promote is the operator endpoint; the sweeper does the same thing on
// its own schedule.
func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	promoted, err := h.admission.PromoteUpTo(r.Context(), req.Max)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := promoteResponse{Promoted: make([]tokenStatusResponse, 0, len(promoted))}
	for i := range promoted {
		resp.Promoted = append(resp.Promoted, newTokenStatusResponse(&service.TokenStatusOutput{Token: &promoted[i]}))
	}

	response.JSON(w, http.StatusOK, resp)
}

func (h *Handler) ListSeats(w http.ResponseWriter, r *http.Request) {
	seats, err := h.reservations.ListSeats(r.Context(), chi.URLParam(r, "scheduleId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, seats)
}

func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if !h.decode(w, r, &req) {
		return
	}

	resv, err := h.reservations.Reserve(r.Context(), service.ReserveInput{
		UserID:     req.UserID,
		TokenID:    r.Header.Get(headerAdmissionToken),
		EntryToken: r.Header.Get(headerEntryToken),
		SeatID:     req.SeatID,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, resv)
}

func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		response.Error(w, pkgErrors.NewHTTPError(http.StatusBadRequest, http.StatusBadRequest, "user_id is required"))
		return
	}

	resv, err := h.reservations.Get(r.Context(), userID, chi.URLParam(r, "reservationId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, resv)
}

func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	var req cancelReservationRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.reservations.Cancel(r.Context(), service.CancelReservationInput{
		UserID:        req.UserID,
		ReservationID: chi.URLParam(r, "reservationId"),
		Reason:        req.Reason,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req processPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.payments.Process(r.Context(), service.ProcessPaymentInput{
		UserID:        req.UserID,
		TokenID:       r.Header.Get(headerAdmissionToken),
		EntryToken:    r.Header.Get(headerEntryToken),
		ReservationID: req.ReservationID,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, paymentResponse{
		Payment:     out.Payment,
		Reservation: out.Reservation,
	})
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		response.Error(w, pkgErrors.NewHTTPError(http.StatusBadRequest, http.StatusBadRequest, "user_id is required"))
		return
	}

	p, err := h.payments.Get(r.Context(), userID, chi.URLParam(r, "paymentId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, paymentResponse{Payment: p})
}

func (h *Handler) ChargeBalance(w http.ResponseWriter, r *http.Request) {
	var req chargeRequest
	if !h.decode(w, r, &req) {
		return
	}

	b, err := h.balances.Charge(r.Context(), service.ChargeInput{
		UserID:      req.UserID,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, b)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	b, err := h.balances.Get(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, b)
}

func (h *Handler) BalanceHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.balances.History(r.Context(), chi.URLParam(r, "userId"), limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, entries)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		response.Error(w, pkgErrors.NewHTTPError(http.StatusBadRequest, http.StatusBadRequest, "invalid request body"))
		return false
	}

	if err := h.validator.Struct(req); err != nil {
		response.Error(w, pkgErrors.NewHTTPError(http.StatusBadRequest, http.StatusBadRequest, "validation failed: "+err.Error()))
		return false
	}

	return true
}
