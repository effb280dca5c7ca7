package handler

import (
	"net/http"

	"smartdorm/internal/customers/service"
	httputil "smartdorm/pkg/http"
	"smartdorm/pkg/logger"
	"smartdorm/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type CustomerHandler struct {
	service service.CustomerService
	log     *logger.Logger
}

func NewCustomerHandler(service service.CustomerService, log *logger.Logger) *CustomerHandler {
	return &CustomerHandler{
		service: service,
		log:     log,
	}
}

func (h *CustomerHandler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	token, err := httputil.BearerToken(r)
	if err != nil {
		h.writeError(w, "Register", err)
		return
	}

	var profile model.CustomerProfile
	if err := httputil.DecodeJSON(r, &profile); err != nil {
		h.writeError(w, "Register", err)
		return
	}

	customer, err := h.service.Register(r.Context(), token, &profile)
	if err != nil {
		h.writeError(w, "Register", err)
		return
	}

	if err := httputil.WriteSuccess(w, customer); err != nil {
		h.log.Error("failed to write success response", "handler", "Register", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CustomerHandler) GetMe(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	token, err := httputil.BearerToken(r)
	if err != nil {
		h.writeError(w, "GetMe", err)
		return
	}

	customer, err := h.service.GetMe(r.Context(), token)
	if err != nil {
		h.writeError(w, "GetMe", err)
		return
	}

	if err := httputil.WriteSuccess(w, customer); err != nil {
		h.log.Error("failed to write success response", "handler", "GetMe", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CustomerHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	customer, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, customer); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CustomerHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *CustomerHandler) RegisterRoutes(router *httprouter.Router) {
	router.PUT("/api/v1/customers/register", h.Register)
	router.GET("/api/v1/customers/me", h.GetMe)
	router.GET("/api/v1/customers/id/:id", h.GetByID)
}
