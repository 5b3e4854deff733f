package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"docxredline/internal/docx"
	"docxredline/internal/utils"
	"docxredline/pkg/redlineapi"

	"github.com/gorilla/mux"
	"github.com/wI2L/jsondiff"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// handleHealth reports liveness.
func (s *RedlineServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ok")
}

// handleRedline accepts a multipart upload with a "document" file and a
// "proposals" JSON field, applies the proposals as tracked changes and
// returns the change report plus a download token for the rewritten file.
func (s *RedlineServer) handleRedline(w http.ResponseWriter, r *http.Request) {
	if s.config.CORS.Enabled {
		s.addCORSHeaders(w, r)
	}

	// Handle preflight requests
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	maxBytes := int64(s.config.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		http.Error(w, fmt.Sprintf("Error parsing upload: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		http.Error(w, "Missing document file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !s.extensionAllowed(header.Filename) {
		http.Error(w, fmt.Sprintf("Unsupported file extension %q", filepath.Ext(header.Filename)), http.StatusBadRequest)
		return
	}

	input, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error reading upload: %v", err), http.StatusBadRequest)
		return
	}

	var proposals []redlineapi.EditProposal
	if err := json.Unmarshal([]byte(r.FormValue("proposals")), &proposals); err != nil {
		http.Error(w, fmt.Sprintf("Invalid proposals JSON: %v", err), http.StatusBadRequest)
		return
	}

	result, err := s.currentEngine().Redline(input, proposals)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, docx.ErrCorrupt) || errors.Is(err, docx.ErrUnsupportedFormat) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, fmt.Sprintf("Error redlining document: %v", err), status)
		return
	}

	token := s.storeDownload(downloadName(header.Filename), result.Output)
	log.Printf("Redlined %s: %d applied, %d skipped", header.Filename, result.Applied(), len(result.Entries)-result.Applied())

	resp := redlineapi.RedlineResponse{
		Changes:       result.Entries,
		Applied:       result.Applied(),
		Skipped:       len(result.Entries) - result.Applied(),
		DownloadToken: token,
		Version:       utils.CalculateHash(result.Output),
	}

	// A machine-readable summary of the text that changed, for the UI.
	patch, err := jsondiff.Compare(result.ParagraphsBefore, result.ParagraphsAfter)
	if err == nil && len(patch) > 0 {
		if delta, err := json.Marshal(patch); err == nil {
			resp.TextDelta = delta
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

// handleDownload serves a redlined file once, then forgets it.
func (s *RedlineServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	if s.config.CORS.Enabled {
		s.addCORSHeaders(w, r)
	}

	token := mux.Vars(r)["token"]
	d, ok := s.takeDownload(token)
	if !ok {
		http.Error(w, "Download not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.filename))
	w.Header().Set("Version", utils.CalculateHash(d.data))
	w.Write(d.data)
}

// extensionAllowed applies the configured upload extension gate.
func (s *RedlineServer) extensionAllowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range s.config.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// downloadName derives the served filename from the uploaded one.
func downloadName(uploaded string) string {
	base := filepath.Base(uploaded)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_redlined" + ext
}

// addCORSHeaders adds CORS headers to the response.
func (s *RedlineServer) addCORSHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", s.config.CORS.AllowOrigins)
	w.Header().Set("Access-Control-Allow-Methods", s.config.CORS.AllowMethods)
	w.Header().Set("Access-Control-Allow-Headers", s.config.CORS.AllowHeaders)

	if s.config.CORS.AllowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}

	w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", s.config.CORS.MaxAge))
}
