package web

import (
	"io"
	"net/http"
	"strconv"
	"strings"
)

const maxPhotoSize = 50 * 1024 * 1024 // 50 MB

// allowedImageTypes is the set of MIME types accepted for uploaded photos.
// net/http.DetectContentType handles JPEG, PNG, and GIF via magic-byte
// sniffing. WebP is detected separately because the WHATWG sniff spec (and
// therefore the stdlib) does not include a WebP signature.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

func (s *Server) handleUploadScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize+1<<20)
	if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form")
		return
	}

	uid := strings.TrimSpace(r.FormValue("uid"))
	if uid == "" {
		writeError(w, http.StatusBadRequest, "uid required")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	imageData, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		s.logger.Error("read upload failed", "uid", uid, "error", err)
		return
	}

	mimeType, ok := allowedImageMIME(imageData)
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported image format")
		return
	}

	scan, err := s.service.AnalyzeScan(r.Context(), uid, imageData, mimeType)
	if err != nil {
		s.fail(w, "analyze scan", err)
		return
	}
	writeJSON(w, http.StatusCreated, scan)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return
	}

	scan, err := s.service.GetScan(r.Context(), id)
	if err != nil {
		s.fail(w, "get scan", err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (s *Server) handleLatestScan(w http.ResponseWriter, r *http.Request) {
	uid := strings.TrimSpace(r.URL.Query().Get("uid"))
	if uid == "" {
		writeError(w, http.StatusBadRequest, "uid required")
		return
	}

	scan, err := s.service.GetLatestScan(r.Context(), uid)
	if err != nil {
		s.fail(w, "get latest scan", err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (s *Server) handleGetScanPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return
	}

	reader, mimeType, err := s.service.GetScanPhoto(r.Context(), id)
	if err != nil {
		s.fail(w, "get scan photo", err)
		return
	}
	defer closeWithLog(reader, "photo reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write photo failed", "scan_id", id, "error", err)
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}
