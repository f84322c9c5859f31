package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/a3tai/visa-pdf-filler/internal/apperrors"
	"github.com/a3tai/visa-pdf-filler/internal/service"
)

const (
	headerUpdated      = "X-Updated-Fields"
	headerMissing      = "X-Missing-Fields"
	headerMissingNames = "X-Missing-Field-Names"

	healthTimeout = 2 * time.Second
)

var errNotNumeric = errors.New("travelerId must be numeric")

// recordID accepts a JSON number or a numeric string.
type recordID int64

func (id *recordID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return errNotNumeric
		}
		s = strings.TrimSpace(str)
		if s == "" {
			return nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return errNotNumeric
		}
		n = int64(f)
	}
	*id = recordID(n)
	return nil
}

type fillFormRequest struct {
	TravelerID     recordID `json:"travelerId"`
	TravelCountry  string   `json:"travelCountry"`
	RecordType     string   `json:"recordType"`
	Flatten        *bool    `json:"flatten"`
	OutputFilename string   `json:"outputFilename"`
}

type lockRequest struct {
	Locked *bool `json:"locked"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

type dataResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	protocol := "http"
	if s.opts.TLS {
		protocol = "https"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":   s.opts.ServiceName,
		"version":   s.opts.Version,
		"status":    "running",
		"protocol":  protocol,
		"countries": service.SupportedCountries(),
		"endpoints": map[string]string{
			"fillForm":      "POST /api/visa/fill-form",
			"resolveFields": "POST /api/visa/resolve-fields",
			"forms":         "GET /api/visa/forms",
			"summary":       "GET /api/records/{recordType}/{id}/summary",
			"lock":          "POST /api/records/{recordType}/{id}/lock",
			"health":        "GET /health",
			"version":       "GET /version",
			"metrics":       "GET /metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int64(time.Since(s.upSince).Seconds())
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"ok":     false,
				"error":  "database unavailable",
				"uptime": uptime,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "uptime": uptime})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.opts.Version})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{
		Success: false,
		Error:   "Not found",
		Message: fmt.Sprintf("Route %s %s not found", r.Method, r.URL.Path),
	})
}

func (s *Server) handleFillForm(w http.ResponseWriter, r *http.Request) {
	var req fillFormRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	flatten := s.opts.DefaultFlatten
	if req.Flatten != nil {
		flatten = *req.Flatten
	}

	outcome, err := s.backend.Fill(r.Context(), service.FillRequest{
		RecordID:   int64(req.TravelerID),
		RecordType: req.RecordType,
		Country:    req.TravelCountry,
		Flatten:    flatten,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(outcome.PDF) == 0 {
		s.writeError(w, r, apperrors.New(apperrors.KindInternal, "PDF generation failed: empty output"))
		return
	}

	filename := sanitizeFilename(req.OutputFilename)
	if filename == "" {
		filename = outcome.DefaultFileName()
	}

	h := w.Header()
	h.Set("Content-Type", "application/pdf")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	h.Set("Content-Length", strconv.Itoa(len(outcome.PDF)))
	h.Set(headerUpdated, strconv.Itoa(len(outcome.Updated)))
	h.Set(headerMissing, strconv.Itoa(len(outcome.MissingFields)))
	if len(outcome.MissingFields) > 0 {
		h.Set(headerMissingNames, strings.Join(outcome.MissingFields, ","))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, bytes.NewReader(outcome.PDF)); err != nil {
		s.logger.Warn("failed to write PDF response", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
	}
}

func (s *Server) handleResolveFields(w http.ResponseWriter, r *http.Request) {
	var req fillFormRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.backend.ResolveFields(r.Context(), int64(req.TravelerID), req.RecordType, req.TravelCountry)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: res})
}

func (s *Server) handleForms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: s.backend.Forms()})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.backend.Summary(r.Context(), id, chi.URLParam(r, "recordType"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: view})
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req lockRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Locked == nil {
		s.writeError(w, r, apperrors.Validation("locked is required"))
		return
	}
	view, err := s.backend.SetLock(r.Context(), id, chi.URLParam(r, "recordType"), *req.Locked)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: view})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation("record id must be a positive integer")
	}
	return id, nil
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	var maxErr *http.MaxBytesError
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	case errors.Is(err, errNotNumeric):
		return apperrors.Validation("travelerId must be numeric.")
	case errors.As(err, &maxErr):
		return apperrors.Validation("request body exceeds %d bytes", maxErr.Limit)
	default:
		return apperrors.Wrap(apperrors.KindValidation, err, "invalid JSON body")
	}
}

// sanitizeFilename drops directories, quotes and control characters.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '"' {
			return -1
		}
		return r
	}, name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// writeError maps err onto a status code and the error envelope.
// Internal failures only expose their message in development.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	status := kind.HTTPStatus()
	logger := s.logger.With(
		zap.String("request_id", RequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Stringer("kind", kind),
		zap.Error(err))

	resp := errorResponse{Success: false, Kind: kind.String()}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.Error("request failed")
		resp.Error = "Internal server error"
		resp.Message = s.detail(err.Error())
	} else {
		logger.Info("request rejected")
		resp.Error = apperrors.Message(err)
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "1")
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
