package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"medisched/internal/locations/service"
	httputil "medisched/pkg/http"
	"medisched/pkg/logger"
	"medisched/pkg/model"
)

type LocationHandler struct {
	service service.LocationService
	log     *logger.Logger
}

func NewLocationHandler(service service.LocationService, log *logger.Logger) *LocationHandler {
	return &LocationHandler{
		service: service,
		log:     log,
	}
}

func (h *LocationHandler) AddHours(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var hours model.LocationHours
	if err := json.NewDecoder(r.Body).Decode(&hours); err != nil {
		h.badRequest(w, "AddHours")
		return
	}
	hours.LocationID = ps.ByName("id")

	if err := h.service.AddHours(r.Context(), &hours); err != nil {
		h.writeError(w, "AddHours", err)
		return
	}
	if err := httputil.WriteCreated(w, hours); err != nil {
		h.log.Error("failed to write created response", "handler", "AddHours", "error", err)
	}
}

func (h *LocationHandler) ListHours(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	hours, err := h.service.ListHours(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "ListHours", err)
		return
	}
	if err := httputil.WriteSuccess(w, hours); err != nil {
		h.log.Error("failed to write success response", "handler", "ListHours", "error", err)
	}
}

func (h *LocationHandler) DeleteHours(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.DeleteHours(r.Context(), ps.ByName("id"), ps.ByName("entry_id")); err != nil {
		h.writeError(w, "DeleteHours", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *LocationHandler) AddClosure(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var closure model.LocationClosure
	if err := json.NewDecoder(r.Body).Decode(&closure); err != nil {
		h.badRequest(w, "AddClosure")
		return
	}
	closure.LocationID = ps.ByName("id")

	if err := h.service.AddClosure(r.Context(), &closure); err != nil {
		h.writeError(w, "AddClosure", err)
		return
	}
	if err := httputil.WriteCreated(w, closure); err != nil {
		h.log.Error("failed to write created response", "handler", "AddClosure", "error", err)
	}
}

func (h *LocationHandler) ListClosures(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	start, end, err := httputil.ExtractRange(r)
	if err != nil {
		h.writeError(w, "ListClosures", err)
		return
	}
	closures, err := h.service.ListClosures(r.Context(), ps.ByName("id"), start, end)
	if err != nil {
		h.writeError(w, "ListClosures", err)
		return
	}
	if err := httputil.WriteSuccess(w, closures); err != nil {
		h.log.Error("failed to write success response", "handler", "ListClosures", "error", err)
	}
}

func (h *LocationHandler) DeleteClosure(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.DeleteClosure(r.Context(), ps.ByName("id"), ps.ByName("entry_id")); err != nil {
		h.writeError(w, "DeleteClosure", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *LocationHandler) OpenIntervals(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	start, end, err := httputil.ExtractRange(r)
	if err != nil {
		h.writeError(w, "OpenIntervals", err)
		return
	}
	open, err := h.service.OpenIntervals(r.Context(), ps.ByName("id"), nil, start, end)
	if err != nil {
		h.writeError(w, "OpenIntervals", err)
		return
	}
	if err := httputil.WriteSuccess(w, open); err != nil {
		h.log.Error("failed to write success response", "handler", "OpenIntervals", "error", err)
	}
}

func (h *LocationHandler) badRequest(w http.ResponseWriter, handler string) {
	if err := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"}); err != nil {
		h.log.Error("failed to write JSON response", "handler", handler, "error", err)
	}
}

func (h *LocationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "error", writeErr)
	}
}

func (h *LocationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/locations/:id/hours", h.AddHours)
	router.GET("/api/v1/locations/:id/hours", h.ListHours)
	router.DELETE("/api/v1/locations/:id/hours/:entry_id", h.DeleteHours)
	router.POST("/api/v1/locations/:id/closures", h.AddClosure)
	router.GET("/api/v1/locations/:id/closures", h.ListClosures)
	router.DELETE("/api/v1/locations/:id/closures/:entry_id", h.DeleteClosure)
	router.GET("/api/v1/locations/:id/open", h.OpenIntervals)
}
