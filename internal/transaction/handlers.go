package transaction

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/devverse06/FinSight/internal/imaging"
	"github.com/devverse06/FinSight/internal/interpret"
)

// maxUploadSize bounds notification image uploads (high-resolution phone
// photos can be large)
const maxUploadSize = int64(50 << 20) // 50MB

// handleExtractText accepts an uploaded notification image and returns the
// OCR text
func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		writeJSONError(w, http.StatusBadRequest, "error parsing form")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		writeJSONError(w, http.StatusBadRequest, "file is too large, maximum size is 50MB")
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSONError(w, http.StatusInternalServerError, "error reading file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeFromExtension(header.Filename)
	}

	text, err := s.service.ExtractText(r.Context(), header.Filename, data, contentType)
	if err != nil {
		if errors.Is(err, imaging.ErrDecode) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("Error extracting text", "filename", header.Filename, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "error extracting text")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"extracted_text": text})
}

// handleInterpretText forwards OCR text to the generative model and returns
// its raw response. The response is expected to be a JSON array string but is
// not validated here.
func (s *Server) handleInterpretText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	response, err := s.service.InterpretText(r.Context(), req.Text)
	if err != nil {
		slog.Error("Error interpreting text", "error", err)
		writeJSONError(w, http.StatusBadGateway, "error interpreting text")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(response)); err != nil {
		slog.Error("Error writing response", "error", err)
	}
}

// handlePersistTransactions validates and commits a batch of candidate
// transactions for the caller
func (s *Server) handlePersistTransactions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "error reading request body")
		return
	}

	// The batch is the (possibly caller-edited) interpreter output, so it
	// gets the same lenient element-wise parse as the raw model response.
	candidates, err := interpret.ParseCandidates(string(body))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "request body must be a JSON array of transactions")
		return
	}

	result, err := s.service.PersistTransactions(callerIdentity(r), candidates)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			writeJSONError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		slog.Error("Error persisting transactions", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "error persisting transactions")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListTransactions returns the caller's committed transactions
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListTransactions(callerIdentity(r))
	if err != nil {
		slog.Error("Error listing transactions", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "error listing transactions")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleAddAccount registers an account number for the caller
func (s *Server) handleAddAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountNumber string `json:"account_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.service.AddAccount(callerIdentity(r), req.AccountNumber)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountNumberRequired):
			writeJSONError(w, http.StatusBadRequest, "account number required")
		case errors.Is(err, ErrAccountExists):
			writeJSONError(w, http.StatusConflict, "this account already exists for this user")
		default:
			slog.Error("Error adding account", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "could not add account")
		}
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// handleDeleteAccount removes one of the caller's account registrations
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountNumber string `json:"account_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.service.DeleteAccount(callerIdentity(r), req.AccountNumber); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "no such account was found")
			return
		}
		slog.Error("Error deleting account", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "deletion failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListAccounts returns the caller's registered accounts
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.service.ListAccounts(callerIdentity(r))
	if err != nil {
		slog.Error("Error listing accounts", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "error listing accounts")
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// handleChat answers a free-form user message
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserInput string `json:"user_input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := s.service.Reply(r.Context(), req.UserInput)
	if err != nil {
		slog.Error("Error generating reply", "error", err)
		writeJSONError(w, http.StatusBadGateway, "error generating reply")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// contentTypeFromExtension guesses a MIME type for uploads whose part carried
// none
func contentTypeFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}
