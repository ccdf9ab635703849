package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zenGate-Global/orgsync/domains/organizations/be/clients"
	"github.com/zenGate-Global/orgsync/domains/organizations/be/service"
)

const (
	problemTypeValidation = "https://orgsync.dev/problems/validation-error"
	problemTypeNotFound   = "https://orgsync.dev/problems/not-found"
	problemTypeConflict   = "https://orgsync.dev/problems/conflict"
	problemTypeInternal   = "https://orgsync.dev/problems/internal-error"
)

// Handler maps the admin HTTP surface onto the organizations service. It is a
// thin pass-through: all rules live in the service layer.
type Handler struct {
	svc     *service.Service
	clients *clients.Service
	logger  *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, clientSvc *clients.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("organizations service is required")
	}
	if clientSvc == nil {
		panic("clients service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, clients: clientSvc, logger: logger}
}

// Routes mounts the admin endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/admin/organizations", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{organizationId}", h.get)
		r.Put("/{organizationId}", h.update)
		r.Delete("/{organizationId}", h.delete)
		r.Get("/{organizationId}/clients", h.listClients)
	})
}

type organizationDTO struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Aliases     []string `json:"aliases,omitempty"`
	Region      string   `json:"region"`
	Enabled     *bool    `json:"enabled,omitempty"`
}

type clientDTO struct {
	ID             string   `json:"id"`
	ClientID       string   `json:"clientId"`
	Name           string   `json:"name"`
	OrganizationID string   `json:"organizationId"`
	RedirectURIs   []string `json:"redirectUris"`
}

type violationDTO struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type problemDetails struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Violations []violationDTO `json:"violations,omitempty"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var (
		organizations []service.Organization
		err           error
	)

	switch {
	case r.URL.Query().Get("region") != "":
		organizations, err = h.svc.FindByRegion(r.Context(), r.URL.Query().Get("region"))
	case r.URL.Query().Get("search") != "":
		organizations, err = h.svc.Search(r.Context(), r.URL.Query().Get("search"))
	default:
		organizations, err = h.svc.FindAll(r.Context())
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	items := make([]organizationDTO, 0, len(organizations))
	for _, o := range organizations {
		items = append(items, toDTO(o))
	}
	h.writeJSON(w, http.StatusOK, items)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.FindByID(r.Context(), chi.URLParam(r, "organizationId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDTO(o))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	dto, ok := h.decode(w, r)
	if !ok {
		return
	}

	created, err := h.svc.Create(r.Context(), fromDTO(dto))
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Location", "/admin/organizations/"+created.ID)
	h.writeJSON(w, http.StatusCreated, toDTO(created))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	dto, ok := h.decode(w, r)
	if !ok {
		return
	}

	candidate := fromDTO(dto)
	candidate.ID = chi.URLParam(r, "organizationId")

	updated, err := h.svc.Update(r.Context(), candidate)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDTO(updated))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "organizationId")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	owned, err := h.clients.FindByOrganizationID(r.Context(), chi.URLParam(r, "organizationId"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	items := make([]clientDTO, 0, len(owned))
	for _, c := range owned {
		items = append(items, clientDTO{
			ID:             c.ID,
			ClientID:       c.ClientID,
			Name:           c.Name,
			OrganizationID: c.OrganizationID,
			RedirectURIs:   c.RedirectURIs,
		})
	}
	h.writeJSON(w, http.StatusOK, items)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (organizationDTO, bool) {
	var dto organizationDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeProblem(w, problemDetails{
			Type:   problemTypeValidation,
			Title:  "Invalid request body",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
		return organizationDTO{}, false
	}
	return dto, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var constraintErr *service.ConstraintError
	var conflictErr *service.ConflictError
	var notFoundErr *service.NotFoundError

	switch {
	case errors.As(err, &constraintErr):
		violations := make([]violationDTO, 0, len(constraintErr.Violations))
		for _, v := range constraintErr.Violations {
			violations = append(violations, violationDTO{Field: v.Field, Message: v.Message})
		}
		h.writeProblem(w, problemDetails{
			Type:       problemTypeValidation,
			Title:      "Validation failed",
			Status:     http.StatusBadRequest,
			Violations: violations,
		})
	case errors.As(err, &conflictErr):
		h.writeProblem(w, problemDetails{
			Type:   problemTypeConflict,
			Title:  "Conflict",
			Status: http.StatusConflict,
			Detail: conflictErr.Error(),
		})
	case errors.As(err, &notFoundErr):
		h.writeProblem(w, problemDetails{
			Type:   problemTypeNotFound,
			Title:  "Not found",
			Status: http.StatusNotFound,
			Detail: notFoundErr.Error(),
		})
	default:
		h.logger.Error("organization operation failed", zap.Error(err))
		h.writeProblem(w, problemDetails{
			Type:   problemTypeInternal,
			Title:  "Internal error",
			Status: http.StatusInternalServerError,
		})
	}
}

func (h *Handler) writeProblem(w http.ResponseWriter, problem problemDetails) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	if err := json.NewEncoder(w).Encode(problem); err != nil {
		h.logger.Error("write problem response", zap.Error(err))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("write json response", zap.Error(err))
	}
}

func toDTO(o service.Organization) organizationDTO {
	enabled := o.Enabled
	return organizationDTO{
		ID:          o.ID,
		Name:        o.Name,
		DisplayName: o.DisplayName,
		Aliases:     o.Aliases,
		Region:      o.Region,
		Enabled:     &enabled,
	}
}

func fromDTO(dto organizationDTO) service.Organization {
	enabled := true
	if dto.Enabled != nil {
		enabled = *dto.Enabled
	}
	return service.Organization{
		ID:          dto.ID,
		Name:        dto.Name,
		DisplayName: dto.DisplayName,
		Aliases:     dto.Aliases,
		Region:      dto.Region,
		Enabled:     enabled,
	}
}
