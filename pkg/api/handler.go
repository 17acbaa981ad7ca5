package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/hazyhaar/brine-ledger/pkg/catalog"
	"github.com/hazyhaar/brine-ledger/pkg/importer"
	"github.com/hazyhaar/brine-ledger/pkg/kit"
	"github.com/hazyhaar/brine-ledger/pkg/ledger"
	"github.com/hazyhaar/brine-ledger/pkg/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// maxUploadSize bounds an uploaded export, multipart framing included.
var maxUploadSize int64 = importer.MaxPayloadSize

// NewRouter returns an http.Handler with all brine API routes. A non-empty
// operatorToken is required as a bearer token on every route but health.
func NewRouter(svc *Service, operatorToken string) http.Handler {
	mux := http.NewServeMux()
	h := &handler{endpoints: newEndpoints(svc), svc: svc}

	mux.HandleFunc("POST /v1/imports", h.handleImport)
	mux.HandleFunc("GET /v1/imports", h.handleListImports)
	mux.HandleFunc("GET /v1/reports/{date}", h.handleReport)
	mux.HandleFunc("GET /v1/dates", h.handleListDates)
	mux.HandleFunc("GET /v1/products", h.handleListProducts)
	mux.HandleFunc("GET /v1/classify/{name}", h.handleClassify)
	mux.HandleFunc("GET /v1/health", h.handleHealth)

	return securityHeaders(cors(requestID(operatorGate(operatorToken, mux))))
}

type handler struct {
	endpoints
	svc *Service
}

// --- imports ---

// handleImport accepts a multipart form with a "file" part, or the raw
// payload as the body with ?filename=. Query parameters format, encoding and
// delimiter override detection.
func (h *handler) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	q := r.URL.Query()
	req := &importReq{
		Filename: q.Get("filename"),
		Options: importer.Options{
			Format:    q.Get("format"),
			Encoding:  q.Get("encoding"),
			Delimiter: q.Get("delimiter"),
		},
	}

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			if tooLarge(ferr) {
				writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
				return
			}
			writeError(w, http.StatusBadRequest, "missing file part")
			return
		}
		defer file.Close()
		if req.Filename == "" {
			req.Filename = header.Filename
		}
		req.Payload, err = io.ReadAll(file)
	} else {
		req.Payload, err = io.ReadAll(r.Body)
	}
	if err != nil {
		if tooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	resp, err := h.importPayload(r.Context(), req)
	if err != nil {
		writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func writeImportError(w http.ResponseWriter, err error) {
	var (
		mce *importer.MissingColumnsError
		nvr *importer.NoValidRowsError
		rf  *ledger.ReconciliationFault
	)
	switch {
	case errors.As(err, &mce):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    err.Error(),
			"missing":  mce.Missing,
			"required": mce.Required,
			"found":    mce.Found,
		})
	case errors.As(err, &nvr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      err.Error(),
			"row_errors": nvr.RowErrors,
			"skipped":    nvr.Skipped,
		})
	case errors.As(err, &rf):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (h *handler) handleListImports(w http.ResponseWriter, r *http.Request) {
	req := &listImportsReq{}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		req.Limit = n
	}
	resp, err := h.listImports(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- reports ---

func (h *handler) handleReport(w http.ResponseWriter, r *http.Request) {
	date, err := catalog.ParseDate(r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q (want YYYY-MM-DD)", r.PathValue("date")))
		return
	}

	resp, err := h.report(r.Context(), &reportReq{Date: date})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rep := resp.(*report.Report)

	if r.URL.Query().Get("format") == "xlsx" {
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="production-%s.xlsx"`, rep.Date))
		if err := report.WriteXLSX(w, rep); err != nil {
			h.svc.Logger.Error("write report workbook", "date", rep.Date, "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *handler) handleListDates(w http.ResponseWriter, r *http.Request) {
	resp, err := h.listDates(r.Context(), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- catalog ---

func (h *handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	resp, err := h.listProducts(r.Context(), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleClassify(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusBadRequest, "missing name")
		return
	}
	resp, err := h.classify(r.Context(), &classifyReq{Name: name})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- health ---

type healthResponse struct {
	Status  string `json:"status"`
	Driver  string `json:"driver"`
	Orphans int    `json:"orphan_entries"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Driver: h.svc.Store.Driver()}
	if err := h.svc.Store.Ping(r.Context()); err != nil {
		resp.Status = "db unreachable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	n, err := h.svc.Store.OrphanEntries(r.Context())
	if err != nil {
		resp.Status = "degraded"
	}
	resp.Orphans = n
	writeJSON(w, http.StatusOK, resp)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// operatorGate checks the bearer token and records the operator in the
// request context. An empty token disables the gate.
func operatorGate(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}
		if token == "" {
			next.ServeHTTP(w, r.WithContext(kit.WithHandle(r.Context(), "operator")))
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			writeError(w, http.StatusUnauthorized, "operator token required")
			return
		}
		next.ServeHTTP(w, r.WithContext(kit.WithHandle(r.Context(), "operator")))
	})
}

// requestID tags the request for the endpoint logs and echoes the id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := kit.WithTransport(kit.WithRequestID(r.Context(), id), kit.TransportHTTP)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// securityHeaders adds the standard hardening headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
