package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/zombor/cafe-diary/internal/interpret"
	"github.com/zombor/cafe-diary/internal/scanning"
)

// maxUploadSize covers high-resolution phone photos
const maxUploadSize = int64(50 << 20)

// receiptInfo is the summary of what was read from an uploaded receipt
type receiptInfo struct {
	StoreName  string               `json:"store_name"`
	DateTime   string               `json:"datetime"`
	MenuItems  []interpret.MenuItem `json:"menu_items"`
	TotalPrice int                  `json:"total_price"`
}

type uploadResponse struct {
	Success     bool        `json:"success"`
	Message     string      `json:"message"`
	Receipt     *Receipt    `json:"receipt"`
	Visit       *Visit      `json:"visit"`
	ReceiptInfo receiptInfo `json:"receipt_info"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// notFoundOr maps ErrNotFound to 404 and anything else to 500
func (s *Server) notFoundOr(w http.ResponseWriter, err error, notFound, action string) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, notFound, http.StatusNotFound)
		return
	}
	s.logger.Error("Error "+action, "error", err)
	writeError(w, "Internal server error", http.StatusInternalServerError)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		s.logger.Error("Error listing receipts", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

func contentTypeFor(filename, declared string) string {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
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
	}
	return "application/octet-stream"
}

// handleUploadReceipt reads a receipt from the "receipt" (or "file") form field
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		s.logger.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, "File is too large. Maximum size is 50MB.", http.StatusBadRequest)
			return
		}
		writeError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("receipt")
	if errors.Is(err, http.ErrMissingFile) {
		f, header, err = r.FormFile("file")
	}
	if err != nil {
		writeError(w, "No file was uploaded", http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Filename == "" {
		writeError(w, "No file was selected", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		s.logger.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := contentTypeFor(header.Filename, header.Header.Get("Content-Type"))
	receipt, visit, err := s.service.ProcessReceipt(header.Filename, data, contentType)
	if err != nil {
		s.logger.Error("Error processing receipt", "filename", header.Filename, "error", err)
		if errors.Is(err, scanning.ErrUnsupportedFormat) {
			writeError(w, "Unsupported image format", http.StatusBadRequest)
			return
		}
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Success: true,
		Message: "Receipt processed",
		Receipt: receipt,
		Visit:   visit,
		ReceiptInfo: receiptInfo{
			StoreName:  receipt.StoreName,
			DateTime:   receipt.VisitDate.Format("2006-01-02 15:04"),
			MenuItems:  receipt.MenuItems,
			TotalPrice: receipt.TotalAmount,
		},
	})
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.GetReceipt(r.PathValue("id"))
	if err != nil {
		s.notFoundOr(w, err, "Receipt not found", "getting receipt")
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptFile(r.PathValue("id"))
	if err != nil {
		s.notFoundOr(w, err, "File not found", "getting receipt file")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteReceipt(r.PathValue("id")); err != nil {
		s.notFoundOr(w, err, "Receipt not found", "deleting receipt")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListVisits(w http.ResponseWriter, r *http.Request) {
	visits, err := s.service.ListVisits()
	if err != nil {
		s.logger.Error("Error listing visits", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, visits)
}

// visitRequest is the body for adding a visit. visit_date accepts RFC 3339
// or "YYYY-MM-DD HH:MM".
type visitRequest struct {
	CafeName   string   `json:"cafe_name"`
	VisitDate  string   `json:"visit_date"`
	MenuItems  string   `json:"menu_items"`
	TotalPrice int      `json:"total_price"`
	Location   string   `json:"location"`
	Rating     int      `json:"rating"`
	Comment    string   `json:"comment"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

func parseVisitDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02 15:04", s, time.Local)
}

func (s *Server) handleAddVisit(w http.ResponseWriter, r *http.Request) {
	var req visitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	v := Visit{
		CafeName:   req.CafeName,
		MenuItems:  req.MenuItems,
		TotalPrice: req.TotalPrice,
		Location:   req.Location,
		Rating:     req.Rating,
		Comment:    req.Comment,
	}
	if req.VisitDate != "" {
		t, err := parseVisitDate(req.VisitDate)
		if err != nil {
			writeError(w, "Invalid visit_date", http.StatusBadRequest)
			return
		}
		v.VisitDate = t
	}
	if req.Latitude != nil && req.Longitude != nil {
		v.Latitude, v.Longitude = *req.Latitude, *req.Longitude
	}

	visit, err := s.service.AddVisit(v)
	if err != nil {
		if errors.Is(err, ErrInvalidVisit) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("Error adding visit", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, visit)
}

func (s *Server) handleGetVisit(w http.ResponseWriter, r *http.Request) {
	visit, err := s.service.GetVisit(r.PathValue("id"))
	if err != nil {
		s.notFoundOr(w, err, "Visit not found", "getting visit")
		return
	}
	writeJSON(w, http.StatusOK, visit)
}

func (s *Server) handleUpdateVisit(w http.ResponseWriter, r *http.Request) {
	var upd VisitUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	visit, err := s.service.UpdateVisit(r.PathValue("id"), upd)
	if err != nil {
		if errors.Is(err, ErrInvalidVisit) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.notFoundOr(w, err, "Visit not found", "updating visit")
		return
	}
	writeJSON(w, http.StatusOK, visit)
}

func (s *Server) handleExportVisits(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.ExportVisitsXLSX()
	if err != nil {
		s.logger.Error("Error exporting visits", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="cafe-visits.xlsx"`)
	w.Write(data)
}
