package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"medisched/internal/directory/service"
	httputil "medisched/pkg/http"
	"medisched/pkg/logger"
	"medisched/pkg/model"
)

type DirectoryHandler struct {
	service service.DirectoryService
	log     *logger.Logger
}

func NewDirectoryHandler(service service.DirectoryService, log *logger.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		service: service,
		log:     log,
	}
}

func (h *DirectoryHandler) CreateStaff(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var st model.Staff
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		h.badRequest(w, "CreateStaff", "Invalid request body")
		return
	}
	st.ID = ""
	st.Active = true

	if err := h.service.RegisterStaff(r.Context(), &st); err != nil {
		h.writeError(w, "CreateStaff", err)
		return
	}
	h.writeCreated(w, "CreateStaff", st)
}

func (h *DirectoryHandler) GetStaff(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	st, err := h.service.Staff(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetStaff", err)
		return
	}
	h.writeSuccess(w, "GetStaff", st)
}

func (h *DirectoryHandler) CreateLocation(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var loc model.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		h.badRequest(w, "CreateLocation", "Invalid request body")
		return
	}
	loc.ID = ""

	if err := h.service.RegisterLocation(r.Context(), &loc); err != nil {
		h.writeError(w, "CreateLocation", err)
		return
	}
	h.writeCreated(w, "CreateLocation", loc)
}

func (h *DirectoryHandler) GetLocation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	loc, err := h.service.Location(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetLocation", err)
		return
	}
	h.writeSuccess(w, "GetLocation", loc)
}

func (h *DirectoryHandler) CreateService(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var svc model.ServiceDefinition
	if err := json.NewDecoder(r.Body).Decode(&svc); err != nil {
		h.badRequest(w, "CreateService", "Invalid request body")
		return
	}
	svc.ID = ""
	svc.Active = true

	if err := h.service.RegisterService(r.Context(), &svc); err != nil {
		h.writeError(w, "CreateService", err)
		return
	}
	h.writeCreated(w, "CreateService", svc)
}

func (h *DirectoryHandler) GetService(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	svc, err := h.service.Service(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetService", err)
		return
	}
	h.writeSuccess(w, "GetService", svc)
}

func (h *DirectoryHandler) badRequest(w http.ResponseWriter, handler, msg string) {
	if err := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: msg}); err != nil {
		h.log.Error("failed to write JSON response", "handler", handler, "operation", "WriteJSON", "error", err)
	}
}

func (h *DirectoryHandler) writeCreated(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteCreated(w, data); err != nil {
		h.log.Error("failed to write created response", "handler", handler, "operation", "WriteCreated", "error", err)
	}
}

func (h *DirectoryHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *DirectoryHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *DirectoryHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/staff", h.CreateStaff)
	router.GET("/api/v1/staff/:id", h.GetStaff)
	router.POST("/api/v1/locations", h.CreateLocation)
	router.GET("/api/v1/locations/:id", h.GetLocation)
	router.POST("/api/v1/services", h.CreateService)
	router.GET("/api/v1/services/:id", h.GetService)
}
