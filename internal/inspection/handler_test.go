package inspection

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) (http.Handler, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	sink := &recordingSink{store: store}
	svc := NewService(store, fixedClock{today: date(2026, 2, 5)}, nil, sink)
	r := chi.NewRouter()
	NewHandler(svc, nil).Routes(r)
	return r, store
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeDTO(t *testing.T, w *httptest.ResponseRecorder) inspectionDTO {
	t.Helper()
	var dto inspectionDTO
	if err := json.Unmarshal(w.Body.Bytes(), &dto); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return dto
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return env
}

func createViaAPI(t *testing.T, h http.Handler, body string) inspectionDTO {
	t.Helper()
	w := doJSON(t, h, http.MethodPost, "/api/inspections/", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return decodeDTO(t, w)
}

func TestHandlerCreate(t *testing.T) {
	h, _ := newTestRouter(t)

	dto := createViaAPI(t, h, `{"vehicle_plate":"abc-1234","inspection_date":"2026-02-12","notes":"annual"}`)
	if dto.ID == "" {
		t.Fatalf("expected id in response")
	}
	if dto.Status != "scheduled" {
		t.Fatalf("expected default scheduled, got %s", dto.Status)
	}
	if dto.VehiclePlate != "ABC-1234" {
		t.Fatalf("expected normalized plate, got %s", dto.VehiclePlate)
	}
	if dto.InspectionDate != "2026-02-12" {
		t.Fatalf("expected date-only string, got %s", dto.InspectionDate)
	}
}

func TestHandlerCreatePastDateRejected(t *testing.T) {
	h, store := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/api/inspections/",
		`{"vehicle_plate":"ABC-1234","inspection_date":"2026-02-04","status":"scheduled"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	env := decodeError(t, w)
	if env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", env.Error.Code)
	}
	// 拒绝原因必须同时包含今天和收到的日期
	if !strings.Contains(env.Error.Message, "2026-02-05") || !strings.Contains(env.Error.Message, "2026-02-04") {
		t.Fatalf("message must mention both dates: %s", env.Error.Message)
	}
	if store.count() != 0 {
		t.Fatalf("rejected create must not persist")
	}
}

func TestHandlerCreateMissingFields(t *testing.T) {
	h, _ := newTestRouter(t)

	for _, body := range []string{
		`{"inspection_date":"2026-02-12"}`,
		`{"vehicle_plate":"ABC-1234"}`,
		`{"vehicle_plate":"ABC-1234","inspection_date":"12/02/2026"}`,
		`not json`,
	} {
		w := doJSON(t, h, http.MethodPost, "/api/inspections/", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestHandlerGetNotFound(t *testing.T) {
	h, _ := newTestRouter(t)

	w := doJSON(t, h, http.MethodGet, "/api/inspections/does-not-exist/", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if env := decodeError(t, w); env.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %s", env.Error.Code)
	}
}

func TestHandlerPatchRetainsFields(t *testing.T) {
	h, _ := newTestRouter(t)
	created := createViaAPI(t, h, `{"vehicle_plate":"ABC-1234","inspection_date":"2026-02-12","notes":"first"}`)

	w := doJSON(t, h, http.MethodPatch, "/api/inspections/"+created.ID+"/", `{"notes":"second"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	dto := decodeDTO(t, w)
	if dto.Notes != "second" {
		t.Fatalf("notes not updated: %q", dto.Notes)
	}
	if dto.VehiclePlate != created.VehiclePlate || dto.InspectionDate != created.InspectionDate || dto.Status != created.Status {
		t.Fatalf("patch must retain unset fields")
	}
}

func TestHandlerPutRequiresAllFields(t *testing.T) {
	h, _ := newTestRouter(t)
	created := createViaAPI(t, h, `{"vehicle_plate":"ABC-1234","inspection_date":"2026-02-12"}`)

	w := doJSON(t, h, http.MethodPut, "/api/inspections/"+created.ID+"/", `{"notes":"only notes"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for partial PUT, got %d", w.Code)
	}

	w = doJSON(t, h, http.MethodPut, "/api/inspections/"+created.ID+"/",
		`{"vehicle_plate":"ABC-1234","inspection_date":"2026-02-04","status":"passed","notes":"done"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if dto := decodeDTO(t, w); dto.Status != "passed" || dto.Notes != "done" {
		t.Fatalf("put result mismatch: %+v", dto)
	}
}

func TestHandlerReschedule(t *testing.T) {
	h, _ := newTestRouter(t)
	created := createViaAPI(t, h, `{"vehicle_plate":"ABC-1234","inspection_date":"2026-01-20","status":"failed"}`)

	w := doJSON(t, h, http.MethodPost, "/api/inspections/"+created.ID+"/reschedule",
		`{"new_inspection_date":"2026-03-01"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	dto := decodeDTO(t, w)
	if dto.Status != "scheduled" || dto.InspectionDate != "2026-03-01" {
		t.Fatalf("reschedule result mismatch: %+v", dto)
	}

	// 审计历史应有一条 failed -> scheduled
	w = doJSON(t, h, http.MethodGet, "/api/inspections/"+created.ID+"/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", w.Code)
	}
	var entries []historyDTO
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one history entry, got %d", len(entries))
	}
	if entries[0].OldStatus != "failed" || entries[0].NewStatus != "scheduled" {
		t.Fatalf("history mismatch: %+v", entries[0])
	}
}

func TestHandlerRescheduleFromScheduledConflict(t *testing.T) {
	h, _ := newTestRouter(t)
	created := createViaAPI(t, h, `{"vehicle_plate":"ABC-1234","inspection_date":"2026-02-12"}`)

	w := doJSON(t, h, http.MethodPost, "/api/inspections/"+created.ID+"/reschedule",
		`{"new_inspection_date":"2026-03-01"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if env := decodeError(t, w); env.Error.Code != "INVALID_TRANSITION" {
		t.Fatalf("expected INVALID_TRANSITION, got %s", env.Error.Code)
	}
}

func TestHandlerReschedulePastDateRejected(t *testing.T) {
	h, _ := newTestRouter(t)
	created := createViaAPI(t, h, `{"vehicle_plate":"ABC-1234","inspection_date":"2026-01-20","status":"failed"}`)

	w := doJSON(t, h, http.MethodPost, "/api/inspections/"+created.ID+"/reschedule",
		`{"new_inspection_date":"2026-02-05"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for same-day reschedule, got %d", w.Code)
	}
	if env := decodeError(t, w); env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", env.Error.Code)
	}
}

func TestHandlerDelete(t *testing.T) {
	h, store := newTestRouter(t)
	created := createViaAPI(t, h, `{"vehicle_plate":"ABC-1234","inspection_date":"2026-02-12"}`)

	w := doJSON(t, h, http.MethodDelete, "/api/inspections/"+created.ID+"/", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if store.count() != 0 {
		t.Fatalf("expected empty store after delete")
	}

	w = doJSON(t, h, http.MethodDelete, "/api/inspections/"+created.ID+"/", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestHandlerListFiltersByStatus(t *testing.T) {
	h, _ := newTestRouter(t)
	createViaAPI(t, h, `{"vehicle_plate":"AAA-1111","inspection_date":"2026-02-12"}`)
	createViaAPI(t, h, `{"vehicle_plate":"BBB-2222","inspection_date":"2026-01-10","status":"passed"}`)

	w := doJSON(t, h, http.MethodGet, "/api/inspections/?status=passed", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp listResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if resp.Count != 1 || len(resp.Results) != 1 {
		t.Fatalf("expected single passed record, got count=%d len=%d", resp.Count, len(resp.Results))
	}
	if resp.Results[0].VehiclePlate != "BBB-2222" {
		t.Fatalf("wrong record returned: %+v", resp.Results[0])
	}

	w = doJSON(t, h, http.MethodGet, "/api/inspections/?status=bogus", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status filter, got %d", w.Code)
	}
}

func TestHandlerExportCSV(t *testing.T) {
	h, _ := newTestRouter(t)
	createViaAPI(t, h, `{"vehicle_plate":"AAA-1111","inspection_date":"2026-02-12"}`)

	w := doJSON(t, h, http.MethodGet, "/api/inspections/export", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected text/csv, got %s", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,vehicle_plate,inspection_date") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "AAA-1111") || !strings.Contains(lines[1], "2026-02-12") {
		t.Fatalf("unexpected row: %s", lines[1])
	}
}
