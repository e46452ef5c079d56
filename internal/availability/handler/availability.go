package handler

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"medisched/internal/availability/service"
	httputil "medisched/pkg/http"
	"medisched/pkg/logger"
)

type AvailabilityHandler struct {
	service service.AvailabilityService
	log     *logger.Logger
}

func NewAvailabilityHandler(service service.AvailabilityService, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
		log:     log,
	}
}

func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	start, end, err := httputil.ExtractRange(r)
	if err != nil {
		h.writeError(w, "Slots", err)
		return
	}

	slots, err := h.service.Slots(r.Context(), ps.ByName("id"), r.URL.Query().Get("service_id"), start, end)
	if err != nil {
		h.writeError(w, "Slots", err)
		return
	}

	h.writeSuccess(w, "Slots", slots)
}

func (h *AvailabilityHandler) NextSlot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var from time.Time
	if r.URL.Query().Get("from") != "" {
		var err error
		if from, err = httputil.ExtractTime(r, "from"); err != nil {
			h.writeError(w, "NextSlot", err)
			return
		}
	}

	slot, err := h.service.NextAvailable(r.Context(), ps.ByName("id"), r.URL.Query().Get("service_id"), from)
	if err != nil {
		h.writeError(w, "NextSlot", err)
		return
	}

	h.writeSuccess(w, "NextSlot", slot)
}

func (h *AvailabilityHandler) Utilization(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	start, end, err := httputil.ExtractRange(r)
	if err != nil {
		h.writeError(w, "Utilization", err)
		return
	}

	u, err := h.service.Utilization(r.Context(), ps.ByName("id"), start, end)
	if err != nil {
		h.writeError(w, "Utilization", err)
		return
	}

	h.writeSuccess(w, "Utilization", u)
}

func (h *AvailabilityHandler) MultiStaff(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	start, end, err := httputil.ExtractRange(r)
	if err != nil {
		h.writeError(w, "MultiStaff", err)
		return
	}

	slots, err := h.service.MultiStaff(r.Context(), httputil.ExtractList(r, "staff_ids"), r.URL.Query().Get("service_id"), start, end)
	if err != nil {
		h.writeError(w, "MultiStaff", err)
		return
	}

	h.writeSuccess(w, "MultiStaff", slots)
}

func (h *AvailabilityHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/staff/:id/slots", h.Slots)
	router.GET("/api/v1/staff/:id/next-slot", h.NextSlot)
	router.GET("/api/v1/staff/:id/utilization", h.Utilization)
	router.GET("/api/v1/availability", h.MultiStaff)
}
