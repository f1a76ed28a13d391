// ABOUTME: HTTP handlers for submitting papers to the retriever and listing the registry
// ABOUTME: Uploads may be answered from the registry when content hashing is enabled

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/2389/mlra/internal/backend"
	"github.com/2389/mlra/internal/dedupe"
	"github.com/2389/mlra/internal/store"
)

const (
	defaultDocumentLimit = 20
	maxDocumentLimit     = 100

	// multipart framing and the title field on top of the file itself
	uploadOverhead = 1 << 20
)

// documentJSON is the API representation of a registry entry.
type documentJSON struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Kind        string    `json:"kind"`
	Filename    string    `json:"filename,omitempty"`
	URL         string    `json:"url,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	Status      string    `json:"status"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toDocumentJSON(d *store.Document) documentJSON {
	return documentJSON{
		ID:          d.ID,
		Title:       d.Title,
		Kind:        d.Kind,
		Filename:    d.Filename,
		URL:         d.URL,
		ContentHash: d.ContentHash,
		Status:      d.Status,
		Detail:      d.Detail,
		CreatedAt:   d.CreatedAt,
	}
}

// IngestResponse is returned by POST /api/papers.
type IngestResponse struct {
	Status    string          `json:"status"`
	Duplicate bool            `json:"duplicate"`
	Document  documentJSON    `json:"document"`
	Backend   json.RawMessage `json:"backend,omitempty"`
}

// URLIngestRequest is the JSON form of POST /api/papers.
type URLIngestRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

func (s *Server) handleIngestPaper(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		s.handleUpload(w, r)
	case "application/json":
		s.handleURLIngest(w, r)
	default:
		s.sendJSONError(w, http.StatusUnsupportedMediaType, "expected multipart/form-data or application/json")
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, backend.MaxUploadBytes+uploadOverhead)
	if err := r.ParseMultipartForm(backend.MaxUploadBytes + uploadOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.sendJSONError(w, http.StatusRequestEntityTooLarge, backend.ErrFileTooLarge.Error())
			return
		}
		s.sendJSONError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, backend.MaxUploadBytes+1))
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	up := backend.Upload{
		Filename:    header.Filename,
		Title:       strings.TrimSpace(r.FormValue("title")),
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	if err := backend.CheckUpload(up.Filename, up.ContentType, len(up.Data)); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, backend.ErrFileTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.sendJSONError(w, status, err.Error())
		return
	}

	ctx := r.Context()
	hash := dedupe.ContentKey(data)
	var key string // set while this request holds a dedupe reservation
	if s.dedupe != nil && s.settings.Get().Data.HashingEnabled {
		key = hash
		docID, dup := s.dedupe.Reserve(key)
		if dup {
			if docID == "" {
				s.sendJSONError(w, http.StatusConflict, "identical upload already in progress")
				return
			}
			doc, err := s.store.GetDocumentByHash(ctx, hash)
			if err == nil {
				if s.metrics != nil {
					s.metrics.IngestDuplicates.Inc()
				}
				s.logger.Info("duplicate upload answered from registry", "doc_id", doc.ID)
				s.writeJSON(w, http.StatusOK, IngestResponse{
					Status:    "duplicate",
					Duplicate: true,
					Document:  toDocumentJSON(doc),
				})
				return
			}
			// Registry lost track of it; ingest again under a fresh reservation.
			s.logger.Warn("dedupe entry without registry document", "doc_id", docID, "error", err)
			s.dedupe.Forget(key)
			if _, dup := s.dedupe.Reserve(key); dup {
				s.sendJSONError(w, http.StatusConflict, "identical upload already in progress")
				return
			}
		}
	}

	started := time.Now()
	resp, err := s.backend.IngestFile(ctx, up)
	if s.metrics != nil {
		s.metrics.ObserveBackend("ingest", started, err)
	}

	doc := &store.Document{
		ID:          documentIDForUpload(up.Filename),
		Title:       up.Title,
		Kind:        store.DocumentKindPDF,
		Filename:    up.Filename,
		ContentHash: hash,
		CreatedAt:   s.now().UTC(),
	}
	if doc.Title == "" {
		doc.Title = doc.ID
	}

	if err != nil {
		if key != "" {
			s.dedupe.Forget(key)
		}
		s.recordFailure(ctx, doc, err)
		s.sendBackendError(w, "ingest file", err)
		return
	}

	doc.Status = store.DocumentStatusSubmitted
	doc.Detail = resp.Status
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		s.logger.Error("failed to record document", "doc_id", doc.ID, "error", err)
	}
	if key != "" {
		s.dedupe.Remember(key, doc.ID)
	}

	s.writeJSON(w, http.StatusOK, IngestResponse{
		Status:   resp.Status,
		Document: toDocumentJSON(doc),
		Backend:  resp.Raw,
	})
}

func (s *Server) handleURLIngest(w http.ResponseWriter, r *http.Request) {
	var req URLIngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSettingsBody)).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := backend.NormalizeURL(req.URL); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, resp, err := s.ingestURL(r.Context(), req.URL, req.Title)
	if err != nil {
		s.sendBackendError(w, "ingest url", err)
		return
	}
	s.writeJSON(w, http.StatusOK, IngestResponse{
		Status:   resp.Status,
		Document: toDocumentJSON(doc),
		Backend:  resp.Raw,
	})
}

// ingestURL submits rawURL to the retriever and records the outcome, failed
// or not, in the registry.
func (s *Server) ingestURL(ctx context.Context, rawURL, title string) (*store.Document, *backend.IngestResponse, error) {
	normalized, err := backend.NormalizeURL(rawURL)
	if err != nil {
		return nil, nil, err
	}

	started := time.Now()
	resp, docID, err := s.backend.IngestURL(ctx, normalized, title)
	if s.metrics != nil {
		s.metrics.ObserveBackend("ingest", started, err)
	}

	doc := &store.Document{
		ID:        docID,
		Title:     strings.TrimSpace(title),
		Kind:      store.DocumentKindURL,
		URL:       normalized,
		CreatedAt: s.now().UTC(),
	}
	if doc.Title == "" {
		doc.Title = backend.DefaultURLTitle
	}

	if err != nil {
		if doc.ID == "" {
			doc.ID = "url_" + strconv.FormatInt(doc.CreatedAt.UnixMilli(), 10)
		}
		s.recordFailure(ctx, doc, err)
		return doc, nil, err
	}

	doc.Status = store.DocumentStatusSubmitted
	doc.Detail = resp.Status
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		s.logger.Error("failed to record document", "doc_id", doc.ID, "error", err)
	}
	return doc, resp, nil
}

// recordFailure keeps failed submissions visible in the registry.
func (s *Server) recordFailure(ctx context.Context, doc *store.Document, err error) {
	doc.Status = store.DocumentStatusFailed
	doc.Detail = err.Error()
	if apiErr, ok := backend.IsAPIError(err); ok {
		doc.Detail = apiErr.Detail
	}
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		s.logger.Error("failed to record document", "doc_id", doc.ID, "error", err)
	}
}

// documentIDForUpload mirrors the retriever's doc_id for multipart ingests.
func documentIDForUpload(filename string) string {
	return filepath.Base(filename)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := defaultDocumentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxDocumentLimit)
	}

	docs, err := s.store.ListDocuments(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list documents", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]documentJSON, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentJSON(d))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}
