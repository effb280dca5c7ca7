package handler

import (
	"net/http"

	"smartdorm/internal/overdue/service"
	"smartdorm/pkg/config"
	httputil "smartdorm/pkg/http"
	"smartdorm/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type OverdueHandler struct {
	service service.OverdueService
	cfg     *config.Config
	log     *logger.Logger
}

func NewOverdueHandler(service service.OverdueService, cfg *config.Config) *OverdueHandler {
	return &OverdueHandler{
		service: service,
		cfg:     cfg,
		log:     cfg.Log,
	}
}

// RunPass triggers a full pass immediately. Bills already accrued today are
// skipped, exactly as in a scheduled run.
func (h *OverdueHandler) RunPass(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	summary, err := h.service.RunPass(r.Context(), h.cfg.Now())
	if err != nil {
		h.writeError(w, "RunPass", err)
		return
	}

	if err := httputil.WriteSuccess(w, summary); err != nil {
		h.log.Error("failed to write success response", "handler", "RunPass", "operation", "WriteSuccess", "error", err)
	}
}

func (h *OverdueHandler) RunForBill(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	bill, err := h.service.RunForBill(r.Context(), ps.ByName("id"), h.cfg.Now())
	if err != nil {
		h.writeError(w, "RunForBill", err)
		return
	}

	if err := httputil.WriteSuccess(w, bill); err != nil {
		h.log.Error("failed to write success response", "handler", "RunForBill", "operation", "WriteSuccess", "error", err)
	}
}

func (h *OverdueHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *OverdueHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/overdue/run", h.RunPass)
	router.POST("/api/v1/bills/id/:id/overdue", h.RunForBill)
}
