package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"hydrolog/internal/audit"
	"hydrolog/internal/auth"
	"hydrolog/internal/checklist/application"
	checklist "hydrolog/internal/checklist/domain"
)

const dateLayout = "2006-01-02"

// Handler serves shift checklist endpoints.
type Handler struct {
	service     *application.Service
	auditLogger audit.Logger
	logger      *log.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *application.Service, auditLogger audit.Logger, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("checklist handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, auditLogger: auditLogger, logger: logger}, nil
}

// ServeHTTP routes checklist requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v1/checklists" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodPost:
		h.handleSubmit(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type itemDTO struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Value   *float64 `json:"value,omitempty"`
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
}

type checklistDTO struct {
	Date        string    `json:"date"`
	Shift       string    `json:"shift"`
	Complete    bool      `json:"complete"`
	Problems    int       `json:"problems"`
	Remarks     string    `json:"remarks,omitempty"`
	SubmittedAt string    `json:"submitted_at,omitempty"`
	Items       []itemDTO `json:"items"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}
	date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	var sheets []*checklist.Checklist
	if shiftValue := r.URL.Query().Get("shift"); shiftValue != "" {
		shift, err := checklist.ParseShift(shiftValue)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sheet, err := h.service.Get(r.Context(), owner, date, shift)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		sheets = []*checklist.Checklist{sheet}
	} else {
		sheets, err = h.service.ListDay(r.Context(), owner, date)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	resp := make([]checklistDTO, 0, len(sheets))
	for _, sheet := range sheets {
		resp = append(resp, toDTO(sheet))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}
	var req struct {
		Date     string             `json:"date"`
		Shift    string             `json:"shift"`
		Readings map[string]float64 `json:"readings"`
		Remarks  string             `json:"remarks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	shift, err := checklist.ParseShift(req.Shift)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sheet, err := checklist.NewChecklist(owner, date, shift)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sheet.Readings = req.Readings
	if sheet.Readings == nil {
		sheet.Readings = map[string]float64{}
	}
	sheet.Remarks = req.Remarks

	if err := h.service.Submit(r.Context(), sheet); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, sheet)
}

func toDTO(sheet *checklist.Checklist) checklistDTO {
	dto := checklistDTO{
		Date:     sheet.Date.Format(dateLayout),
		Shift:    string(sheet.Shift),
		Complete: sheet.IsComplete(),
		Problems: sheet.ProblemCount(),
		Remarks:  sheet.Remarks,
	}
	if !sheet.SubmittedAt.IsZero() {
		dto.SubmittedAt = sheet.SubmittedAt.Format(time.RFC3339)
	}
	for _, item := range checklist.Items() {
		entry := itemDTO{Key: item.Key, Label: item.Label}
		if value, ok := sheet.Readings[item.Key]; ok {
			v := value
			entry.Value = &v
			result := sheet.Classify(item.Key)
			entry.Status = string(result.Status)
			entry.Message = result.Message
		} else {
			entry.Status = "normal"
		}
		dto.Items = append(dto.Items, entry)
	}
	return dto
}

func (h *Handler) logAudit(r *http.Request, sheet *checklist.Checklist) {
	if h.auditLogger == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"shift":    string(sheet.Shift),
		"readings": len(sheet.Readings),
		"problems": sheet.ProblemCount(),
	})
	err := h.auditLogger.Log(r.Context(), audit.Entry{
		PlantID:   auth.PlantIDFromContext(r.Context()),
		Actor:     auth.SubjectFromContext(r.Context()),
		Role:      string(auth.RoleFromContext(r.Context())),
		Action:    audit.ActionSubmitChecks,
		LogDate:   sheet.Date.Format(dateLayout),
		Metadata:  payload,
		IP:        audit.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.logger.Printf("checklist handler: audit log error: %v", err)
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
