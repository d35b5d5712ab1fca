package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jaekyeom/clauselens"
	"github.com/jaekyeom/clauselens/agent"
	"github.com/jaekyeom/clauselens/analysis"
	"github.com/jaekyeom/clauselens/sessions"
)

// sessionCookie names the HttpOnly cookie carrying the client's session id.
const sessionCookie = "clauselens_session"

// maxUploadBytes bounds contract uploads held in memory during parsing.
const maxUploadBytes = 50 << 20

// uploader publishes a stored contract and returns its public URL. It is
// left nil when no blob bucket is configured.
type uploader interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

type handler struct {
	engine   clauselens.Engine
	sessions sessions.Store
	blob     uploader
	uploads  string
}

func newHandler(e clauselens.Engine, store sessions.Store, uploadsDir string) *handler {
	return &handler{engine: e, sessions: store, uploads: uploadsDir}
}

// newMux wires every route. The bare /query, /store_pdf and /get_pdf paths
// predate the /api prefix and are kept for older clients.
func newMux(h *handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/pdf/upload", h.handleUploadAnalyze)
	mux.HandleFunc("POST /api/user-query", h.handleUserQuery)
	mux.HandleFunc("POST /query", h.handleUserQuery)
	mux.HandleFunc("POST /upload", h.handleUpload)
	mux.HandleFunc("POST /reset", h.handleReset)
	mux.HandleFunc("POST /store_pdf", h.handleStorePDF)
	mux.HandleFunc("GET /get_pdf/{id}", h.handleGetPDF)
	mux.HandleFunc("GET /health", h.handleHealth)

	return mux
}

// uploadResponse is the analysis envelope of a contract upload. Field order
// is part of the wire contract.
type uploadResponse struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message"`
	Filename  string                 `json:"filename"`
	FileURL   string                 `json:"file_url"`
	PDFID     string                 `json:"pdf_id"`
	Summary   any                    `json:"summary"`
	Highlight []analysis.ToxicClause `json:"highlight"`
}

// POST /api/pdf/upload
// Stores the contract, swaps it into the session, registers it, publishes
// it to the blob bucket when one is configured, and runs the full analysis.
func (h *handler) handleUploadAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "파일이 전송되지 않았습니다."})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "파일이 전송되지 않았습니다."})
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "선택된 파일이 없습니다."})
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "PDF 파일만 업로드 가능합니다."})
		return
	}

	path, err := h.saveUpload(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		slog.Error("upload: saving file", "error", err)
		return
	}

	clientID := h.clientID(w, r)
	if err := sessions.ReplaceFile(ctx, h.sessions, clientID, path, header.Filename); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		slog.Error("upload: session update", "error", err)
		return
	}

	rowID, err := h.engine.Storage().RegisterPDF(ctx, header.Filename, "", path)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		slog.Error("upload: registry insert", "error", err)
		return
	}
	fileURL := h.publish(ctx, rowID, path)

	report, err := h.engine.Analyze(ctx, path)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		slog.Error("upload: analysis failed", "file", header.Filename, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Status:    "success",
		Message:   "Successfully uploaded file",
		Filename:  header.Filename,
		FileURL:   fileURL,
		PDFID:     fmt.Sprintf("PDF_%d", rowID),
		Summary:   report.SummaryValue(),
		Highlight: report.Highlights,
	})
}

// POST /api/user-query (also POST /query)
// Runs one query through the agent against the session's uploaded contract.
func (h *handler) handleUserQuery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	query := queryFrom(r)
	if query == "" {
		writeJSON(w, http.StatusBadRequest,
			agent.ErrorDialogue("쿼리가 제공되지 않았습니다.", "Query not provided"))
		return
	}

	clientID := h.clientID(w, r)
	sess, err := h.sessions.Get(ctx, clientID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			agent.ErrorDialogue(fmt.Sprintf("오류: %v", err), err.Error()))
		slog.Error("query: session read", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, h.engine.Answer(ctx, query, sess.PDFFilePath))
}

// POST /upload
// Stores the contract in the session without analysing it, for clients
// that upload first and query later.
func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "No file part"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "No file part"})
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "No selected file"})
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Only PDF files are allowed"})
		return
	}

	path, err := h.saveUpload(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		slog.Error("upload: saving file", "error", err)
		return
	}

	clientID := h.clientID(w, r)
	if err := sessions.ReplaceFile(r.Context(), h.sessions, clientID, path, header.Filename); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		slog.Error("upload: session update", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "filename": header.Filename})
}

// POST /reset
// Removes the session's stored contract from disk and clears the session.
func (h *handler) handleReset(w http.ResponseWriter, r *http.Request) {
	clientID := h.clientID(w, r)
	if err := sessions.Reset(r.Context(), h.sessions, clientID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		slog.Error("reset: session clear", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// POST /store_pdf
// Registers a document without touching the session, for bulk loading.
func (h *handler) handleStorePDF(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "No PDF found"})
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "No PDF found"})
		return
	}
	defer file.Close()

	path, err := h.saveUpload(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		slog.Error("store_pdf: saving file", "error", err)
		return
	}

	rowID, err := h.engine.Storage().RegisterPDF(ctx, filepath.Base(header.Filename), "", path)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		slog.Error("store_pdf: registry insert", "error", err)
		return
	}
	fileURL := h.publish(ctx, rowID, path)

	writeJSON(w, http.StatusOK, map[string]any{"PDF_url": fileURL, "id": rowID})
}

// GET /get_pdf/{id}
func (h *handler) handleGetPDF(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "PDF not found"})
		return
	}

	f, err := h.engine.Storage().GetPDF(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "PDF not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":         f.ID,
		"filename":   f.Filename,
		"file_url":   f.FileURL,
		"created_at": f.CreatedAt,
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// clientID returns the session id from the request cookie, minting one
// (and setting the cookie) when absent.
func (h *handler) clientID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// saveUpload stores an uploaded file under a fresh random name, keeping
// user-supplied filenames off the filesystem.
func (h *handler) saveUpload(file io.Reader) (string, error) {
	path := filepath.Join(h.uploads, uuid.NewString()+".pdf")
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("saving upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("saving upload: %w", err)
	}
	return path, nil
}

// publish pushes a stored file to the blob bucket and records the public
// URL. Without a bucket, or when publication fails, the local path serves
// as the URL instead.
func (h *handler) publish(ctx context.Context, id int64, path string) string {
	fileURL := path
	if h.blob != nil {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("publish: reading stored file", "path", path, "error", err)
		} else if url, err := h.blob.Upload(ctx, strconv.FormatInt(id, 10), data, "application/pdf"); err != nil {
			slog.Warn("publish: blob upload failed, keeping local path", "id", id, "error", err)
		} else {
			fileURL = url
		}
	}
	if err := h.engine.Storage().UpdatePDFURL(ctx, id, fileURL); err != nil {
		slog.Warn("publish: url update failed", "id", id, "error", err)
	}
	return fileURL
}

// queryFrom accepts the query as JSON {"query": ...} or as a form field,
// the two encodings clients send.
func queryFrom(r *http.Request) string {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return ""
		}
		return strings.TrimSpace(req.Query)
	}
	return strings.TrimSpace(r.FormValue("query"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
