package web

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/csv2xlsx/internal/config"
	"github.com/JonMunkholm/csv2xlsx/internal/core"
	"github.com/JonMunkholm/csv2xlsx/internal/history"
	"github.com/JonMunkholm/csv2xlsx/internal/storage"
	"github.com/JonMunkholm/csv2xlsx/internal/web/templates"
)

const (
	// xlsxContentType is the MIME type of an Office Open XML workbook.
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// multipartMemory is the part of an upload kept in memory before the
	// rest spills to a temp file.
	multipartMemory = 32 << 20

	fallbackOutputName = "converted.xlsx"
)

// ConvertResponse is returned by POST /api/v1/convert.
type ConvertResponse struct {
	Message string `json:"message"`
	File    string `json:"file"`
	Rows    int    `json:"rows"`
	Bytes   int    `json:"bytes"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	files, err := s.service.ListFiles(r.Context())
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	defaults := s.service.Defaults()
	data := templates.IndexData{
		Delimiter:   defaults.Delimiter,
		Encoding:    defaults.Encoding,
		Engine:      defaults.EngineName(),
		MaxFileSize: s.cfg.Upload.MaxFileSize,
		Files:       fileNames(files),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Index(data).Render(r.Context(), w); err != nil {
		slog.Error("render index", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleConvert converts the uploaded file and stores the workbook under
// outputFileName for a later download.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	defer file.Close()

	name := r.FormValue("outputFileName")
	if strings.TrimSpace(name) == "" {
		err := fmt.Errorf("%w: outputFileName is required", storage.ErrInvalidName)
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r, header.Filename)
	res, err := s.service.ConvertAndStore(ctx, file, name, requestOptions(r))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, ConvertResponse{
		Message: "File saved successfully at: " + res.File,
		File:    res.File,
		Rows:    res.Rows,
		Bytes:   res.Bytes,
	})
}

// handleConvertStream converts the uploaded file and returns the workbook
// in the response without storing it.
func (s *Server) handleConvertStream(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	defer file.Close()

	name := r.FormValue("outputFileName")
	if strings.TrimSpace(name) == "" {
		name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}
	name, err = storage.NormalizeName(name)
	if err != nil {
		name = fallbackOutputName
	}

	ctx := WithRequestMetadata(r.Context(), r, header.Filename)
	data, res, err := s.service.ConvertToBytes(ctx, file, requestOptions(r))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("X-Row-Count", strconv.Itoa(res.Rows))
	writeAttachment(w, name, xlsxContentType, data)
}

// handleDownload returns a stored workbook and deletes it.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name, err := storage.NormalizeName(chi.URLParam(r, "outputFileName"))
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	data, err := s.service.TakeFile(r.Context(), name)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeAttachment(w, name, "application/octet-stream", data)
}

// handleListFiles lists the names of stored workbooks. With ?detail=true
// it also returns sizes and modification times.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.service.ListFiles(r.Context())
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	if detail, _ := strconv.ParseBool(r.URL.Query().Get("detail")); detail {
		if files == nil {
			files = []storage.FileInfo{}
		}
		writeJSON(w, http.StatusOK, files)
		return
	}
	writeJSON(w, http.StatusOK, fileNames(files))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, r, fmt.Errorf("invalid limit %q", v), http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.service.History(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"conversions": s.service.Limiter().Status(),
	})
}

// readUpload bounds the request body and returns the multipart "file"
// part. An oversized body yields core.ErrFileTooLarge and a missing part
// core.ErrNoFile.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			return nil, nil, fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, s.cfg.Upload.MaxFileSize)
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil, fmt.Errorf("%w: %v", core.ErrNoFile, err)
		}
		return nil, nil, err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}
	return file, header, nil
}

// requestOptions reads per-request overrides. Unset fields fall back to
// the service defaults.
func requestOptions(r *http.Request) core.Options {
	sanitize, _ := strconv.ParseBool(r.FormValue("sanitize"))
	return core.Options{
		Delimiter:    config.ExpandDelimiter(r.FormValue("delimiter")),
		Encoding:     r.FormValue("encoding"),
		Engine:       r.FormValue("engine"),
		SanitizeUTF8: sanitize,
	}
}

func writeAttachment(w http.ResponseWriter, name, contentType string, data []byte) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", contentDisposition(name))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("write attachment", "file", name, "error", err)
	}
}

// contentDisposition builds an attachment header for name. Non-ASCII names
// use the RFC 2231 filename* form.
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

func fileNames(files []storage.FileInfo) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}
