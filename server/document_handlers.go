package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Zemacs/openpaper/auth"
	"github.com/Zemacs/openpaper/docstore"
	"github.com/Zemacs/openpaper/ingest"
)

type documentResponse struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	SourceKind string  `json:"source_kind"`
	SourceRef  string  `json:"source_ref,omitempty"`
	Quality    float64 `json:"quality"`
	Garbled    bool    `json:"garbled"`
	PageCount  int     `json:"page_count"`
	CreatedAt  string  `json:"created_at"`
	RawText    string  `json:"raw_text,omitempty"`
}

// handleImport ingests a document from either a multipart PDF upload
// (field "file") or a JSON body naming a URL to fetch.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		s.importUpload(w, r, claims.UserID)
		return
	}
	s.importURL(w, r, claims.UserID)
}

func (s *Server) importUpload(w http.ResponseWriter, r *http.Request, userID string) {
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	ex, err := ingest.ExtractPDFReader(file)
	if err != nil {
		s.logger.Warn("pdf extraction failed", "error", err, "filename", header.Filename)
		writeError(w, http.StatusUnprocessableEntity, "could not extract text from PDF")
		return
	}
	s.saveExtraction(w, r, userID, ex, "pdf", header.Filename)
}

func (s *Server) importURL(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if s.fetcher == nil {
		writeError(w, http.StatusNotImplemented, "URL import is not enabled")
		return
	}

	res, err := s.fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, ingest.ErrUnsafeScheme) || errors.Is(err, ingest.ErrPrivateAddress) {
			writeError(w, http.StatusBadRequest, "URL is not allowed")
			return
		}
		s.logger.Warn("fetch failed", "url", req.URL, "error", err)
		writeError(w, http.StatusBadGateway, "could not fetch URL")
		return
	}

	ex, kind, err := extractFetched(res)
	if err != nil {
		s.logger.Warn("extraction failed", "url", req.URL, "kind", kind, "error", err)
		writeError(w, http.StatusUnprocessableEntity, "could not extract document content")
		return
	}
	s.saveExtraction(w, r, userID, ex, kind, res.FinalURL)
}

// extractFetched picks the extraction path for a fetched resource: PDF
// content goes through the page-aware PDF extractor, anything else through
// article extraction.
func extractFetched(res *ingest.FetchResult) (*ingest.Extraction, string, error) {
	if res.IsPDF() {
		ex, err := ingest.ExtractPDFReader(bytes.NewReader(res.Body))
		return ex, "pdf", err
	}
	ex, err := ingest.ImportArticle(res.Body)
	return ex, "article", err
}

func (s *Server) saveExtraction(w http.ResponseWriter, r *http.Request, userID string, ex *ingest.Extraction, kind, ref string) {
	doc := &docstore.Document{
		UserID:      userID,
		Title:       ex.Title,
		SourceKind:  kind,
		SourceRef:   ref,
		RawText:     ex.Text,
		Quality:     ex.Quality.Score(),
		PageOffsets: ex.PageOffsets,
	}
	if doc.Title == "" {
		doc.Title = "Untitled document"
	}
	if err := s.store.CreateDocument(r.Context(), doc); err != nil {
		s.logger.Error("create document", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.track("document_imported", userID, map[string]any{
		"source_kind": kind,
		"quality":     doc.Quality,
		"garbled":     ex.Quality.Garbled(),
		"chars":       len(ex.Text),
	})
	writeJSON(w, http.StatusCreated, documentResponse{
		ID:         doc.ID,
		Title:      doc.Title,
		SourceKind: kind,
		SourceRef:  ref,
		Quality:    doc.Quality,
		Garbled:    ex.Quality.Garbled(),
		PageCount:  len(ex.PageOffsets),
		CreatedAt:  doc.CreatedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	id := chi.URLParam(r, "documentID")

	doc, err := s.store.GetDocument(r.Context(), claims.UserID, id)
	if errors.Is(err, docstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		s.logger.Error("get document", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, documentResponse{
		ID:         doc.ID,
		Title:      doc.Title,
		SourceKind: doc.SourceKind,
		SourceRef:  doc.SourceRef,
		Quality:    doc.Quality,
		PageCount:  len(doc.PageOffsets),
		CreatedAt:  doc.CreatedAt.Format(time.RFC3339),
		RawText:    doc.RawText,
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())

	docs, err := s.store.ListDocuments(r.Context(), claims.UserID)
	if err != nil {
		s.logger.Error("list documents", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentResponse{
			ID:         d.ID,
			Title:      d.Title,
			SourceKind: d.SourceKind,
			SourceRef:  d.SourceRef,
			Quality:    d.Quality,
			CreatedAt:  d.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}
