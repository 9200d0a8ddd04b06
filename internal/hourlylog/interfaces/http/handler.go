package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"hydrolog/internal/audit"
	"hydrolog/internal/auth"
	"hydrolog/internal/hourlylog/application"
	hourlylog "hydrolog/internal/hourlylog/domain"
	"hydrolog/internal/hourlylog/interfaces"
	"hydrolog/internal/observability/metrics"
)

const dateLayout = "2006-01-02"

// Handler serves the hourly log endpoints.
type Handler struct {
	saves       *application.SaveService
	finals      *application.FinalizeService
	auditLogger audit.Logger
	clock       application.Clock
	logger      *log.Logger
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithHandlerClock overrides the handler clock.
func WithHandlerClock(clock application.Clock) HandlerOption {
	return func(h *Handler) { h.clock = clock }
}

// NewHandler constructs a Handler.
func NewHandler(saves *application.SaveService, finals *application.FinalizeService, auditLogger audit.Logger, logger *log.Logger, opts ...HandlerOption) (*Handler, error) {
	if saves == nil {
		return nil, errors.New("hourlylog handler: nil save service")
	}
	if finals == nil {
		return nil, errors.New("hourlylog handler: nil finalize service")
	}
	if logger == nil {
		logger = log.Default()
	}
	h := &Handler{
		saves:       saves,
		finals:      finals,
		auditLogger: auditLogger,
		clock:       application.SystemClock{},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ServeHTTP routes hourly log requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/logs" && r.Method == http.MethodGet:
		h.handleDaySheet(w, r)
	case r.URL.Path == "/api/v1/logs/hour" && r.Method == http.MethodPut:
		h.handleSaveHour(w, r)
	case r.URL.Path == "/api/v1/logs/finalize" && r.Method == http.MethodPost:
		h.handleFinalize(w, r)
	case r.URL.Path == "/api/v1/logs/export.pdf" && r.Method == http.MethodGet:
		h.handleExport(w, r, "pdf")
	case r.URL.Path == "/api/v1/logs/export.xlsx" && r.Method == http.MethodGet:
		h.handleExport(w, r, "xlsx")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type fieldValueDTO struct {
	Numeric *float64 `json:"numeric,omitempty"`
	Text    *string  `json:"text,omitempty"`
	Status  string   `json:"status,omitempty"`
	Message string   `json:"message,omitempty"`
}

type hourDTO struct {
	Hour     int                      `json:"hour"`
	Logged   bool                     `json:"logged"`
	Editable bool                     `json:"editable"`
	Problems int                      `json:"problems"`
	Remarks  string                   `json:"remarks,omitempty"`
	Values   map[string]fieldValueDTO `json:"values,omitempty"`
}

type daySheetDTO struct {
	Entity       string    `json:"entity"`
	Date         string    `json:"date"`
	Finalized    bool      `json:"finalized"`
	Complete     bool      `json:"complete"`
	LoggedCount  int       `json:"logged_count"`
	LoggedHours  []int     `json:"logged_hours"`
	ProblemTotal int       `json:"problem_total"`
	EditableHour int       `json:"editable_hour"`
	Hours        []hourDTO `json:"hours"`
}

func (h *Handler) handleDaySheet(w http.ResponseWriter, r *http.Request) {
	owner, entity, date, ok := h.sheetParams(w, r)
	if !ok {
		return
	}
	day, finalized, err := h.saves.DaySheet(r.Context(), owner, entity, date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	now := h.clock.Now()
	policy := h.saves.Policy()
	ranges := h.saves.Ranges(entity.Kind)

	resp := daySheetDTO{
		Entity:       entity.ID(),
		Date:         day.Date.Format(dateLayout),
		Finalized:    finalized,
		Complete:     day.IsComplete(),
		LoggedCount:  day.LoggedCount(),
		LoggedHours:  day.LoggedHours(),
		ProblemTotal: day.ProblemTotal(ranges),
		EditableHour: -1,
	}
	saved := make(map[int]bool, hourlylog.HoursPerDay)
	for _, hour := range day.LoggedHours() {
		saved[hour] = true
	}
	for hour := 0; hour < hourlylog.HoursPerDay; hour++ {
		editable := policy.IsEditable(day.Date, hour, finalized, now)
		if editable {
			resp.EditableHour = hour
		}
		entry := hourDTO{Hour: hour, Logged: saved[hour], Editable: editable}
		if saved[hour] {
			record := day.Slot(hour)
			entry.Remarks = record.Remarks
			entry.Problems = hourlylog.ProblemCount(record, ranges)
			entry.Values = make(map[string]fieldValueDTO, len(record.Values))
			for key, value := range record.Values {
				dto := fieldValueDTO{Numeric: value.Numeric, Text: value.Text}
				if value.Numeric != nil {
					result := hourlylog.Validate(*value.Numeric, ranges.Spec(key))
					dto.Status = string(result.Status)
					dto.Message = result.Message
				}
				entry.Values[key] = dto
			}
		}
		resp.Hours = append(resp.Hours, entry)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handleSaveHour(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}
	var req struct {
		Entity  string         `json:"entity"`
		Date    string         `json:"date"`
		Hour    int            `json:"hour"`
		Values  map[string]any `json:"values"`
		Remarks string         `json:"remarks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	entity, err := hourlylog.ParseEntityID(req.Entity)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if req.Hour < 0 || req.Hour >= hourlylog.HoursPerDay {
		http.Error(w, "hour must be in [0,23]", http.StatusBadRequest)
		return
	}

	record := hourlylog.EmptyRecord(owner, entity, date, req.Hour)
	for key, raw := range req.Values {
		switch value := raw.(type) {
		case float64:
			record.SetValue(key, hourlylog.Numf(value))
		case string:
			record.SetValue(key, hourlylog.Str(value))
		default:
			http.Error(w, fmt.Sprintf("field %q must be a number or a string", key), http.StatusBadRequest)
			return
		}
	}
	record.Remarks = req.Remarks

	if err := h.saves.Save(r.Context(), record); err != nil {
		respondSaveError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, audit.ActionSaveHour, entity.ID(), req.Date, req.Hour, map[string]any{
		"fields": len(req.Values),
	})
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}
	var req struct {
		Entity string `json:"entity"`
		Date   string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	entity, err := hourlylog.ParseEntityID(req.Entity)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	if err := h.finals.Finalize(r.Context(), owner, entity, date); err != nil {
		if errors.Is(err, hourlylog.ErrDayIncomplete) {
			http.Error(w, "day sheet is incomplete", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, audit.ActionFinalizeDay, entity.ID(), req.Date, 0, nil)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, format string) {
	owner, entity, date, ok := h.sheetParams(w, r)
	if !ok {
		return
	}
	started := h.clock.Now()
	day, finalized, err := h.saves.DaySheet(r.Context(), owner, entity, date)
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	ranges := h.saves.Ranges(entity.Kind)

	var payload []byte
	var contentType string
	switch format {
	case "pdf":
		payload, err = interfaces.BuildDaySheetPDF(day, ranges, finalized)
		contentType = "application/pdf"
	case "xlsx":
		payload, err = interfaces.BuildDaySheetXLSX(day, ranges, finalized)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		http.Error(w, "unsupported format", http.StatusBadRequest)
		return
	}
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport(format, metrics.ResultSuccess, time.Since(started))

	filename := fmt.Sprintf("daysheet-%s-%s.%s", entity.ID(), day.Date.Format(dateLayout), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(payload)
	h.logAudit(r, audit.ActionExportSheet, entity.ID(), day.Date.Format(dateLayout), 0, map[string]any{"format": format})
}

func (h *Handler) sheetParams(w http.ResponseWriter, r *http.Request) (string, hourlylog.EntityRef, time.Time, bool) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return "", hourlylog.EntityRef{}, time.Time{}, false
	}
	entity, err := hourlylog.ParseEntityID(r.URL.Query().Get("entity"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", hourlylog.EntityRef{}, time.Time{}, false
	}
	dateValue := r.URL.Query().Get("date")
	var date time.Time
	if dateValue == "" {
		date = hourlylog.DayOf(h.clock.Now())
	} else {
		date, err = time.Parse(dateLayout, dateValue)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return "", hourlylog.EntityRef{}, time.Time{}, false
		}
	}
	return owner, entity, date, true
}

func (h *Handler) logAudit(r *http.Request, action, entityID, logDate string, hour int, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	var payload json.RawMessage
	if meta != nil {
		payload, _ = json.Marshal(meta)
	}
	err := h.auditLogger.Log(r.Context(), audit.Entry{
		PlantID:   auth.PlantIDFromContext(r.Context()),
		Actor:     auth.SubjectFromContext(r.Context()),
		Role:      string(auth.RoleFromContext(r.Context())),
		Action:    action,
		EntityID:  entityID,
		LogDate:   logDate,
		Hour:      hour,
		Metadata:  payload,
		IP:        audit.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.logger.Printf("hourlylog handler: audit log error: %v", err)
	}
}

func respondSaveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hourlylog.ErrHourLocked):
		http.Error(w, "hour is locked for editing", http.StatusConflict)
	case errors.Is(err, hourlylog.ErrDayFinalized):
		http.Error(w, "day sheet is finalized", http.StatusConflict)
	case errors.Is(err, hourlylog.ErrInvalidRecord):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		// Repository or other infrastructure failure, not a client error.
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// requestOwner resolves the record owner. The JWT subject is
// authoritative; the owner query parameter only serves deployments with
// auth disabled.
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
