package handler

import (
	"net/http"

	"smartdorm/internal/payments/service"
	httputil "smartdorm/pkg/http"
	"smartdorm/pkg/logger"
	"smartdorm/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type PaymentHandler struct {
	service service.PaymentService
	log     *logger.Logger
}

func NewPaymentHandler(service service.PaymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log,
	}
}

func (h *PaymentHandler) Submit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	token, err := httputil.BearerToken(r)
	if err != nil {
		h.writeError(w, "Submit", err)
		return
	}

	var req model.PaymentSubmission
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Submit", err)
		return
	}
	req.AccessToken = token
	req.BillID = ps.ByName("id")

	payment, err := h.service.Submit(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Submit", err)
		return
	}

	if err := httputil.WriteCreated(w, payment); err != nil {
		h.log.Error("failed to write created response", "handler", "Submit", "operation", "WriteCreated", "error", err)
	}
}

func (h *PaymentHandler) GetByBill(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	payments, err := h.service.GetByBill(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByBill", err)
		return
	}

	if err := httputil.WriteSuccess(w, payments); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByBill", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PaymentHandler) Approve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	bill, err := h.service.Approve(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Approve", err)
		return
	}

	if err := httputil.WriteSuccess(w, bill); err != nil {
		h.log.Error("failed to write success response", "handler", "Approve", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PaymentHandler) Reject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	bill, err := h.service.Reject(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Reject", err)
		return
	}

	if err := httputil.WriteSuccess(w, bill); err != nil {
		h.log.Error("failed to write success response", "handler", "Reject", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PaymentHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *PaymentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bills/id/:id/payments", h.Submit)
	router.GET("/api/v1/bills/id/:id/payments", h.GetByBill)
	router.POST("/api/v1/bills/id/:id/payments/approve", h.Approve)
	router.POST("/api/v1/bills/id/:id/payments/reject", h.Reject)
}
