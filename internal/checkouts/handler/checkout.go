package handler

import (
	"net/http"

	"smartdorm/internal/checkouts/service"
	httputil "smartdorm/pkg/http"
	"smartdorm/pkg/logger"
	"smartdorm/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type CheckoutHandler struct {
	service service.CheckoutService
	log     *logger.Logger
}

func NewCheckoutHandler(service service.CheckoutService, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		log:     log,
	}
}

func (h *CheckoutHandler) Request(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	token, err := httputil.BearerToken(r)
	if err != nil {
		h.writeError(w, "Request", err)
		return
	}

	var req model.CheckoutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Request", err)
		return
	}
	req.AccessToken = token

	checkout, err := h.service.Request(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Request", err)
		return
	}

	if err := httputil.WriteCreated(w, checkout); err != nil {
		h.log.Error("failed to write created response", "handler", "Request", "operation", "WriteCreated", "error", err)
	}
}

func (h *CheckoutHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	settlement, err := h.service.Complete(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Complete", err)
		return
	}

	if err := httputil.WriteSuccess(w, settlement); err != nil {
		h.log.Error("failed to write success response", "handler", "Complete", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CheckoutHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	checkout, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, checkout); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CheckoutHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	checkouts, total, err := h.service.GetAll(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, checkouts, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *CheckoutHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *CheckoutHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/checkouts", h.Request)
	router.GET("/api/v1/checkouts", h.GetAll)
	router.GET("/api/v1/checkouts/id/:id", h.GetByID)
	router.POST("/api/v1/checkouts/id/:id/complete", h.Complete)
}
