package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rl1809/pantry/internal/core/domain"
	"github.com/rl1809/pantry/internal/core/service"
	"github.com/rl1809/pantry/internal/platform/logger"
)

const userIDHeader = "X-User-ID"

type HTTPHandler struct {
	inventory *service.InventoryService
	log       *logger.Logger
}

type MutationHTTPRequest struct {
	RequestID string   `json:"request_id"`
	MergedIDs []string `json:"merged_ids"`
}

type EditHTTPRequest struct {
	MutationHTTPRequest
	Name            string          `json:"name"`
	Category        domain.Category `json:"category"`
	Quantity        float64         `json:"quantity"`
	Unit            domain.Unit     `json:"unit"`
	ExpiryDate      domain.Date     `json:"expiry_date"`
	StorageLocation *string         `json:"storage_location"`
}

type ConsumeHTTPRequest struct {
	MutationHTTPRequest
	Quantity float64 `json:"quantity"`
}

type OutcomeJSON struct {
	Op       domain.OpKind   `json:"op"`
	RecordID string          `json:"record_id"`
	Status   domain.OpStatus `json:"status"`
	Error    string          `json:"error,omitempty"`
}

type MutationHTTPResponse struct {
	Success  bool                `json:"success"`
	Message  string              `json:"message"`
	Outcomes []OutcomeJSON       `json:"outcomes,omitempty"`
	Items    []domain.MergedItem `json:"items,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewHTTPHandler(inventory *service.InventoryService, log *logger.Logger) *HTTPHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &HTTPHandler{inventory: inventory, log: log}
}

// Routes mounts every endpoint on mux.
func (h *HTTPHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/pantry", h.List)
	mux.HandleFunc("/api/pantry/items", h.Add)
	mux.HandleFunc("/api/pantry/edit", h.Edit)
	mux.HandleFunc("/api/pantry/consume", h.Consume)
	mux.HandleFunc("/api/pantry/delete", h.Delete)
}

func sessionFrom(r *http.Request) domain.Session {
	token := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return domain.Session{
		UserID: strings.TrimSpace(r.Header.Get(userIDHeader)),
		Token:  token,
	}
}

func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params := r.URL.Query()
	q := service.Query{
		Search:   params.Get("search"),
		Category: domain.Category(params.Get("category")),
		Expiry:   service.ExpiryFilter(params.Get("expiry")),
		Sort:     service.SortKey(params.Get("sort")),
	}
	if q.Category != "" && !strings.EqualFold(string(q.Category), "all") {
		c, err := domain.ParseCategory(string(q.Category))
		if err != nil {
			h.writeError(w, err)
			return
		}
		q.Category = c
	} else {
		q.Category = ""
	}

	view, err := h.inventory.List(r.Context(), sessionFrom(r), q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if view.Items == nil {
		view.Items = []domain.MergedItem{}
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) Add(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req domain.NewRecord
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	created, err := h.inventory.Add(r.Context(), sessionFrom(r), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req EditHTTPRequest
	if !decodeMutation(w, r, &req, &req.MutationHTTPRequest) {
		return
	}
	result, err := h.inventory.Edit(r.Context(), sessionFrom(r), req.RequestID, req.MergedIDs, service.EditRequest{
		Name:            req.Name,
		Category:        req.Category,
		Quantity:        req.Quantity,
		Unit:            req.Unit,
		ExpiryDate:      req.ExpiryDate,
		StorageLocation: req.StorageLocation,
	})
	h.writeMutation(w, "item updated", result, err)
}

func (h *HTTPHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req ConsumeHTTPRequest
	if !decodeMutation(w, r, &req, &req.MutationHTTPRequest) {
		return
	}
	result, err := h.inventory.Consume(r.Context(), sessionFrom(r), req.RequestID, req.MergedIDs, req.Quantity)
	h.writeMutation(w, "item consumed", result, err)
}

func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req MutationHTTPRequest
	if !decodeMutation(w, r, &req, &req) {
		return
	}
	result, err := h.inventory.Delete(r.Context(), sessionFrom(r), req.RequestID, req.MergedIDs)
	h.writeMutation(w, "item deleted", result, err)
}

func decodeMutation(w http.ResponseWriter, r *http.Request, dst any, base *MutationHTTPRequest) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return false
	}
	if base.RequestID == "" || len(base.MergedIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "missing required fields"})
		return false
	}
	return true
}

func outcomes(batch domain.BatchResult) []OutcomeJSON {
	out := make([]OutcomeJSON, 0, len(batch.Results))
	for _, res := range batch.Results {
		o := OutcomeJSON{Op: res.Op.Kind, RecordID: res.Op.RecordID, Status: res.Status}
		if res.Err != nil {
			o.Error = res.Err.Error()
		}
		out = append(out, o)
	}
	return out
}

func (h *HTTPHandler) writeMutation(w http.ResponseWriter, okMessage string, result service.MutationResult, err error) {
	resp := MutationHTTPResponse{
		Outcomes: outcomes(result.Batch),
		Items:    result.Items,
	}
	switch {
	case err == nil:
		resp.Success = true
		resp.Message = okMessage
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, domain.ErrDuplicateRequest):
		resp.Message = "duplicate request"
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, domain.ErrPartialBatch):
		resp.Message = err.Error()
		writeJSON(w, http.StatusMultiStatus, resp)
	default:
		h.writeError(w, err)
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, domain.ErrUnauthenticated):
		status = http.StatusUnauthorized
		message = "unauthenticated"
	case errors.Is(err, domain.ErrStaleEntity):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		message = "not found"
	case errors.Is(err, domain.ErrDuplicateRequest):
		status = http.StatusConflict
		message = "duplicate request"
	default:
		h.log.Error("request failed", "error", err)
	}

	writeJSON(w, status, ErrorResponse{Success: false, Message: message})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
