package handler

import (
	"net/http"
	"time"

	"smartdorm/internal/billing/service"
	apperrors "smartdorm/pkg/errors"
	httputil "smartdorm/pkg/http"
	"smartdorm/pkg/logger"
	"smartdorm/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BillHandler struct {
	service service.BillService
	log     *logger.Logger
}

func NewBillHandler(service service.BillService, log *logger.Logger) *BillHandler {
	return &BillHandler{
		service: service,
		log:     log,
	}
}

func (h *BillHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BillRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	bill, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, bill); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BillHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	bill, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, bill); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BillHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	query := r.URL.Query()
	filter := model.BillFilter{
		Status:     query.Get("status"),
		RoomNumber: query.Get("room_number"),
		CustomerID: query.Get("customer_id"),
	}
	if s := query.Get("period"); s != "" {
		period, err := time.Parse("2006-01", s)
		if err != nil {
			h.writeError(w, "GetAll", apperrors.InvalidInput("invalid period parameter, expected YYYY-MM: "+s))
			return
		}
		filter.Period = &period
	}

	bills, total, err := h.service.GetAll(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, bills, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *BillHandler) GetMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	token, err := httputil.BearerToken(r)
	if err != nil {
		h.writeError(w, "GetMine", err)
		return
	}
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetMine", err)
		return
	}

	bills, total, err := h.service.GetMine(r.Context(), token, limit, offset)
	if err != nil {
		h.writeError(w, "GetMine", err)
		return
	}

	if err := httputil.WritePaginated(w, bills, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetMine", "operation", "WritePaginated", "error", err)
	}
}

func (h *BillHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BillHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BillHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bills", h.Create)
	router.GET("/api/v1/bills", h.GetAll)
	router.GET("/api/v1/bills/mine", h.GetMine)
	router.GET("/api/v1/bills/id/:id", h.GetByID)
	router.DELETE("/api/v1/bills/id/:id", h.Delete)
}
