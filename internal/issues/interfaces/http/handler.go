package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"hydrolog/internal/audit"
	"hydrolog/internal/auth"
	"hydrolog/internal/issues/application"
	issues "hydrolog/internal/issues/domain"
)

// Handler serves issue endpoints.
type Handler struct {
	service     *application.Service
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *application.Service, auditLogger audit.Logger, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("issues handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP routes issue requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/issues" && r.Method == http.MethodGet {
		h.handleList(w, r)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/v1/issues/") && r.Method == http.MethodPost {
		rest := strings.TrimPrefix(r.URL.Path, "/api/v1/issues/")
		parts := strings.Split(rest, "/")
		if len(parts) == 2 && parts[1] == "close" && parts[0] != "" {
			h.handleClose(w, r, parts[0])
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

type issueDTO struct {
	ID        string  `json:"id"`
	EntityID  string  `json:"entity_id"`
	Field     string  `json:"field"`
	Value     float64 `json:"value"`
	RangeMin  float64 `json:"range_min"`
	RangeMax  float64 `json:"range_max"`
	Unit      string  `json:"unit,omitempty"`
	Status    string  `json:"status"`
	Message   string  `json:"message"`
	CreatedAt string  `json:"created_at"`
	ClosedAt  string  `json:"closed_at,omitempty"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}
	var status issues.Status
	if value := r.URL.Query().Get("status"); value != "" {
		switch issues.Status(value) {
		case issues.StatusOpen, issues.StatusClosed:
			status = issues.Status(value)
		default:
			http.Error(w, "status must be open or closed", http.StatusBadRequest)
			return
		}
	}

	list, err := h.service.List(r.Context(), owner, status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := make([]issueDTO, 0, len(list))
	for _, issue := range list {
		dto := issueDTO{
			ID:        issue.ID,
			EntityID:  issue.EntityID,
			Field:     issue.Field,
			Value:     issue.Value,
			RangeMin:  issue.RangeMin,
			RangeMax:  issue.RangeMax,
			Unit:      issue.Unit,
			Status:    string(issue.Status),
			Message:   issue.Message,
			CreatedAt: issue.CreatedAt.Format(time.RFC3339),
		}
		if issue.ClosedAt != nil {
			dto.ClosedAt = issue.ClosedAt.Format(time.RFC3339)
		}
		resp = append(resp, dto)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.Close(r.Context(), id); err != nil {
		if errors.Is(err, issues.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, id)
}

func (h *Handler) logAudit(r *http.Request, issueID string) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{"issue_id": issueID})
	err := h.auditLogger.Log(r.Context(), audit.Entry{
		PlantID:   auth.PlantIDFromContext(r.Context()),
		Actor:     auth.SubjectFromContext(r.Context()),
		Role:      string(auth.RoleFromContext(r.Context())),
		Action:    audit.ActionCloseIssue,
		Metadata:  payload,
		IP:        audit.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.logger.Printf("issues handler: audit log error: %v", err)
	}
}

func requestOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := auth.SubjectFromContext(r.Context())
	if owner == "" {
		owner = r.URL.Query().Get("owner")
	}
	if owner == "" {
		http.Error(w, "owner is required", http.StatusBadRequest)
		return "", false
	}
	return owner, true
}
