package inspection

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/NovaFleet/NovaFleet/internal/common/httperr"
	"github.com/NovaFleet/NovaFleet/internal/common/logger"
)

// Handler 检验单的 HTTP 接口层：解析请求、调 Service、映射错误码。
// 业务规则全部在 Service / 校验器里，这里只做传输层的事。
type Handler struct {
	svc *Service
	log logger.Logger
}

func NewHandler(svc *Service, log logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes 挂载全部路由。
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/inspections", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/export", h.exportCSV)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Put("/", h.put)
			r.Patch("/", h.patch)
			r.Delete("/", h.delete)
			r.Post("/reschedule", h.reschedule)
			r.Get("/history", h.history)
		})
	})
}

// inspectionRequest 创建 / 更新共用的请求体。
// 指针字段用于区分“没传”和“传了空值”（PATCH 语义需要）。
type inspectionRequest struct {
	VehiclePlate   *string `json:"vehicle_plate"`
	InspectionDate *string `json:"inspection_date"`
	Status         *string `json:"status"`
	Notes          *string `json:"notes"`
}

type rescheduleRequest struct {
	NewInspectionDate string  `json:"new_inspection_date"`
	Notes             *string `json:"notes"`
}

type inspectionDTO struct {
	ID             string    `json:"id"`
	VehiclePlate   string    `json:"vehicle_plate"`
	InspectionDate string    `json:"inspection_date"`
	Status         string    `json:"status"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type historyDTO struct {
	ID           string    `json:"id"`
	InspectionID string    `json:"inspection_id"`
	OldStatus    string    `json:"old_status"`
	NewStatus    string    `json:"new_status"`
	ChangedAt    time.Time `json:"changed_at"`
	Notes        string    `json:"notes"`
}

type listResponse struct {
	Results []inspectionDTO `json:"results"`
	Count   int64           `json:"count"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req inspectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.ValidationError(w, "invalid json body")
		return
	}
	if req.VehiclePlate == nil || strings.TrimSpace(*req.VehiclePlate) == "" {
		httperr.ValidationError(w, "vehicle_plate is required")
		return
	}
	if req.InspectionDate == nil {
		httperr.ValidationError(w, "inspection_date is required")
		return
	}
	date, err := parseDate(*req.InspectionDate)
	if err != nil {
		httperr.ValidationError(w, err.Error())
		return
	}

	in := CreateInput{VehiclePlate: *req.VehiclePlate, InspectionDate: date}
	if req.Status != nil {
		in.Status = *req.Status
	}
	if req.Notes != nil {
		in.Notes = *req.Notes
	}

	rec, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDTO(rec))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(rec))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f := ListFilter{
		VehiclePlate: r.URL.Query().Get("vehicle_plate"),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := ParseStatus(raw)
		if err != nil {
			h.writeError(w, err)
			return
		}
		f.Status = st
	}
	page, size := 1, 20
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && v > 0 && v <= 200 {
		size = v
	}
	f.Offset = (page - 1) * size
	f.Limit = size

	recs, total, err := h.svc.List(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := listResponse{Results: make([]inspectionDTO, 0, len(recs)), Count: total}
	for i := range recs {
		out.Results = append(out.Results, toDTO(&recs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// put 全量更新：所有可写字段都必须提供。
func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	var req inspectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.ValidationError(w, "invalid json body")
		return
	}
	if req.VehiclePlate == nil || req.InspectionDate == nil || req.Status == nil {
		httperr.ValidationError(w, "vehicle_plate, inspection_date and status are required for a full update")
		return
	}
	notes := ""
	if req.Notes != nil {
		notes = *req.Notes
	}
	h.update(w, r, req, &notes)
}

// patch 局部更新：只改提供的字段。
func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	var req inspectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.ValidationError(w, "invalid json body")
		return
	}
	h.update(w, r, req, req.Notes)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, req inspectionRequest, notes *string) {
	in := UpdateInput{
		VehiclePlate: req.VehiclePlate,
		Status:       req.Status,
		Notes:        notes,
	}
	if req.VehiclePlate != nil && strings.TrimSpace(*req.VehiclePlate) == "" {
		httperr.ValidationError(w, "vehicle_plate cannot be empty")
		return
	}
	if req.InspectionDate != nil {
		date, err := parseDate(*req.InspectionDate)
		if err != nil {
			httperr.ValidationError(w, err.Error())
			return
		}
		in.InspectionDate = &date
	}

	rec, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(rec))
}

func (h *Handler) reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.ValidationError(w, "invalid json body")
		return
	}
	if strings.TrimSpace(req.NewInspectionDate) == "" {
		httperr.ValidationError(w, "new_inspection_date is required")
		return
	}
	date, err := parseDate(req.NewInspectionDate)
	if err != nil {
		httperr.ValidationError(w, err.Error())
		return
	}

	rec, err := h.svc.Reschedule(r.Context(), chi.URLParam(r, "id"), date, req.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(rec))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]historyDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyDTO{
			ID:           e.ID,
			InspectionID: e.InspectionID,
			OldStatus:    string(e.OldStatus),
			NewStatus:    string(e.NewStatus),
			ChangedAt:    e.ChangedAt,
			Notes:        e.Notes,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// exportCSV 导出全部检验单（后台报表用，量级有限）。
func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	recs, _, err := h.svc.List(r.Context(), ListFilter{Limit: 10000})
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="inspections.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "vehicle_plate", "inspection_date", "status", "notes", "created_at", "updated_at"})
	for i := range recs {
		rec := &recs[i]
		_ = cw.Write([]string{
			rec.ID,
			rec.VehiclePlate,
			rec.InspectionDate.Format(DateFormat),
			string(rec.Status),
			rec.Notes,
			rec.CreatedAt.Format(time.RFC3339),
			rec.UpdatedAt.Format(time.RFC3339),
		})
	}
	cw.Flush()
}

// writeError 把结构化拒绝原因映射到 HTTP 状态码。
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		invalidStatus *InvalidStatusError
		pastDate      *PastDateError
		badSource     *InvalidRescheduleSourceError
		conflict      *StoreConflictError
	)
	switch {
	case errors.Is(err, ErrNotFound):
		httperr.NotFound(w, err.Error())
	case errors.As(err, &badSource):
		httperr.InvalidTransition(w, err.Error())
	case errors.As(err, &conflict):
		httperr.Conflict(w, err.Error())
	case errors.As(err, &invalidStatus), errors.As(err, &pastDate):
		httperr.ValidationError(w, err.Error())
	default:
		if h.log != nil {
			h.log.Errorf("inspection handler: %v", err)
		}
		httperr.Internal(w)
	}
}

func toDTO(rec *Inspection) inspectionDTO {
	return inspectionDTO{
		ID:             rec.ID,
		VehiclePlate:   rec.VehiclePlate,
		InspectionDate: rec.InspectionDate.Format(DateFormat),
		Status:         string(rec.Status),
		Notes:          rec.Notes,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateFormat, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected format %s", raw, DateFormat)
	}
	return t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
