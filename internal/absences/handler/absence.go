package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"medisched/internal/absences/service"
	httputil "medisched/pkg/http"
	"medisched/pkg/logger"
	"medisched/pkg/model"
)

type decisionRequest struct {
	ActorID string `json:"actor_id"`
}

type AbsenceHandler struct {
	service service.AbsenceService
	log     *logger.Logger
}

func NewAbsenceHandler(service service.AbsenceService, log *logger.Logger) *AbsenceHandler {
	return &AbsenceHandler{
		service: service,
		log:     log,
	}
}

func (h *AbsenceHandler) Request(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var a model.Absence
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		h.badRequest(w, "Request")
		return
	}
	if err := h.service.Request(r.Context(), &a); err != nil {
		h.writeError(w, "Request", err)
		return
	}
	if err := httputil.WriteCreated(w, a); err != nil {
		h.log.Error("failed to write created response", "handler", "Request", "error", err)
	}
}

func (h *AbsenceHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	a, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}
	if err := httputil.WriteSuccess(w, a); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "error", err)
	}
}

func (h *AbsenceHandler) Approve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.decide(w, r, "Approve", func(actorID string) (*model.Absence, error) {
		return h.service.Approve(r.Context(), ps.ByName("id"), actorID)
	})
}

func (h *AbsenceHandler) Reject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.decide(w, r, "Reject", func(actorID string) (*model.Absence, error) {
		return h.service.Reject(r.Context(), ps.ByName("id"), actorID)
	})
}

func (h *AbsenceHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.decide(w, r, "Cancel", func(actorID string) (*model.Absence, error) {
		return h.service.Cancel(r.Context(), ps.ByName("id"), actorID)
	})
}

func (h *AbsenceHandler) decide(w http.ResponseWriter, r *http.Request, handler string, fn func(actorID string) (*model.Absence, error)) {
	var req decisionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.badRequest(w, handler)
			return
		}
	}
	a, err := fn(req.ActorID)
	if err != nil {
		h.writeError(w, handler, err)
		return
	}
	if err := httputil.WriteSuccess(w, a); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "error", err)
	}
}

func (h *AbsenceHandler) badRequest(w http.ResponseWriter, handler string) {
	if err := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "Invalid request body"}); err != nil {
		h.log.Error("failed to write JSON response", "handler", handler, "error", err)
	}
}

func (h *AbsenceHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "error", writeErr)
	}
}

func (h *AbsenceHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/absences", h.Request)
	router.GET("/api/v1/absences/id/:id", h.GetByID)
	router.POST("/api/v1/absences/id/:id/approve", h.Approve)
	router.POST("/api/v1/absences/id/:id/reject", h.Reject)
	router.POST("/api/v1/absences/id/:id/cancel", h.Cancel)
}
