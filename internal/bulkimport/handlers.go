package bulkimport

import (
	"errors"
	"net/http"

	"irdinv/internal/apperr"

	"github.com/gorilla/mux"
)

const previewRows = 5

type HTTP struct {
	importer  *Importer
	maxUpload int64
}

// NewHTTP serves the bulk endpoints; maxUpload caps the multipart body in bytes.
func NewHTTP(im *Importer, maxUpload int64) *HTTP {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &HTTP{importer: im, maxUpload: maxUpload}
}

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1/irds/bulk").Subrouter()
	api.HandleFunc("", h.importFile).Methods(http.MethodPost)
	api.HandleFunc("/validate", h.validateFile).Methods(http.MethodPost)
}

type failBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func fail(w http.ResponseWriter, status int, msg string) {
	apperr.WriteJSON(w, status, failBody{Message: msg})
}

func (h *HTTP) readSheet(w http.ResponseWriter, r *http.Request) (*Sheet, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		fail(w, http.StatusBadRequest, "failed to parse form: "+err.Error())
		return nil, false
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		fail(w, http.StatusBadRequest, "Excel file not found in request")
		return nil, false
	}
	defer file.Close()

	s, err := ReadWorkbook(file)
	if err != nil {
		msg := "failed to read Excel file"
		if e, ok := apperr.As(err); ok {
			msg = e.Message
		}
		fail(w, http.StatusBadRequest, msg)
		return nil, false
	}
	return s, true
}

func (h *HTTP) importFile(w http.ResponseWriter, r *http.Request) {
	s, ok := h.readSheet(w, r)
	if !ok {
		return
	}
	if len(s.Rows) == 0 {
		fail(w, http.StatusBadRequest, "Excel file is empty")
		return
	}

	res, err := h.importer.ImportRows(r.Context(), s.Rows)
	if err != nil {
		apperr.WriteJSON(w, apperr.Status(err), failBody{Message: apperr.BodyOf(err, "bulk import failed").Message})
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "import finished (duplicates allowed)",
		"data":    res,
	})
}

func (h *HTTP) validateFile(w http.ResponseWriter, r *http.Request) {
	s, ok := h.readSheet(w, r)
	if !ok {
		return
	}
	if err := ValidateHeaders(s.Headers); err != nil {
		var he *HeaderError
		if errors.As(err, &he) {
			apperr.WriteJSON(w, http.StatusBadRequest, map[string]any{
				"success":        false,
				"message":        "invalid file format",
				"missingHeaders": he.Missing,
				"foundHeaders":   he.Found,
			})
			return
		}
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	preview := s.Rows
	if preview == nil {
		preview = []Row{}
	}
	if len(preview) > previewRows {
		preview = preview[:previewRows]
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "valid format",
		"headers":   s.Headers,
		"preview":   preview,
		"totalRows": len(s.Rows),
	})
}
