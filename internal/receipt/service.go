package receipt

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/cafe-diary/internal/interpret"
	"github.com/zombor/cafe-diary/internal/scanning"
)

// ErrInvalidVisit is returned when a visit fails validation
var ErrInvalidVisit = errors.New("invalid visit")

// IDGenerator generates unique IDs for receipts and visits
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles receipt and visit operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
	logger      *slog.Logger
}

// NewService creates a new Service with UUID IDs and the wall clock
func NewService(db DB, scanner scanning.Scanner, storage Storage) *Service {
	return NewServiceWithDeps(db, scanner, storage, uuidGenerator{}, defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
		logger:      slog.Default(),
	}
}

// WithLogger sets the logger used by the service
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

var (
	filenameUnsafe = regexp.MustCompile(`[^\p{L}\p{N}\s\-_]`)
	filenameSpaces = regexp.MustCompile(`\s+`)
	filenameExt    = regexp.MustCompile(`^\.[A-Za-z0-9]{1,5}$`)
)

// sanitizeFilename strips path and special characters and truncates long
// phone-generated names. Hangul is kept.
func sanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := filepath.Ext(filename)
	if !filenameExt.MatchString(ext) {
		ext = ""
	}
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = filenameUnsafe.ReplaceAllString(base, "")
	base = strings.TrimSpace(filenameSpaces.ReplaceAllString(base, " "))

	if r := []rune(base); len(r) > 50 {
		base = strings.TrimSpace(string(r[:50]))
	}
	if base == "" {
		base = "receipt"
	}
	return base + strings.ToLower(ext)
}

// ProcessReceipt saves an uploaded receipt, reads it, and records both the
// receipt and a diary visit for it
func (s *Service) ProcessReceipt(filename string, data []byte, contentType string) (*Receipt, *Visit, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, nil, fmt.Errorf("saving file: %w", err)
	}

	rec, err := s.scanner.ScanReceipt(data, contentType)
	if err != nil {
		s.logger.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.deleteFile(savedPath)
		return nil, nil, fmt.Errorf("scanning receipt: %w", err)
	}
	if rec.Fallbacks.Placeholder() {
		s.logger.Warn("Receipt items could not be read, placeholder items recorded", "receipt_id", id, "fallbacks", rec.Fallbacks.String())
	}

	receipt := &Receipt{
		ID:          id,
		StoreName:   rec.StoreName,
		VisitDate:   rec.DateTime,
		TotalAmount: rec.TotalPrice,
		MenuItems:   rec.MenuItems,
		Filename:    savedPath,
		ContentType: contentType,
		RawText:     rec.RawText,
		Placeholder: rec.Fallbacks.Placeholder(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.SaveReceipt(receipt); err != nil {
		s.deleteFile(savedPath)
		return nil, nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	visit := &Visit{
		ID:         s.idGenerator.Generate(),
		ReceiptID:  id,
		CafeName:   rec.StoreName,
		VisitDate:  rec.DateTime,
		MenuItems:  FormatMenuItems(rec.MenuItems),
		TotalPrice: rec.TotalPrice,
		Location:   interpret.ExtractLocation(rec.RawText),
		Latitude:   DefaultLatitude,
		Longitude:  DefaultLongitude,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.SaveVisit(visit); err != nil {
		// Keep the database consistent with storage
		if derr := s.db.DeleteReceipt(id); derr != nil {
			s.logger.Error("Failed to roll back receipt", "receipt_id", id, "error", derr)
		}
		s.deleteFile(savedPath)
		return nil, nil, fmt.Errorf("saving visit to database: %w", err)
	}

	s.logger.Info("Receipt processed",
		"receipt_id", id,
		"store_name", receipt.StoreName,
		"menu_items", len(receipt.MenuItems),
		"total_price", receipt.TotalAmount,
	)
	return receipt, visit, nil
}

func (s *Service) deleteFile(path string) {
	if err := s.storage.Delete(path); err != nil {
		s.logger.Warn("Failed to delete file", "filename", path, "error", err)
	}
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt, its file, and the visits recorded from it
func (s *Service) DeleteReceipt(id string) error {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	visits, err := s.db.ListVisits()
	if err != nil {
		return fmt.Errorf("listing visits: %w", err)
	}
	for _, v := range visits {
		if v.ReceiptID != id {
			continue
		}
		if err := s.db.DeleteVisit(v.ID); err != nil {
			return fmt.Errorf("deleting visit %s: %w", v.ID, err)
		}
	}

	// A missing file does not block deleting the record
	s.deleteFile(receipt.Filename)

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the file data for a receipt
func (s *Service) GetReceiptFile(id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(receipt.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}

	return data, receipt.ContentType, nil
}

func validateVisit(v *Visit) error {
	if strings.TrimSpace(v.CafeName) == "" {
		return fmt.Errorf("%w: cafe name is required", ErrInvalidVisit)
	}
	if !validRating(v.Rating) {
		return fmt.Errorf("%w: rating must be between 0 and 5", ErrInvalidVisit)
	}
	if v.TotalPrice < 0 {
		return fmt.Errorf("%w: total price must not be negative", ErrInvalidVisit)
	}
	return nil
}

// AddVisit records a visit entered by hand
func (s *Service) AddVisit(v Visit) (*Visit, error) {
	now := s.timeSource.Now()
	v.ID = s.idGenerator.Generate()
	v.CafeName = strings.TrimSpace(v.CafeName)
	if v.VisitDate.IsZero() {
		v.VisitDate = now
	}
	if v.Latitude == 0 && v.Longitude == 0 {
		v.Latitude, v.Longitude = DefaultLatitude, DefaultLongitude
	}
	v.CreatedAt, v.UpdatedAt = now, now

	if err := validateVisit(&v); err != nil {
		return nil, err
	}
	if err := s.db.SaveVisit(&v); err != nil {
		return nil, fmt.Errorf("saving visit: %w", err)
	}
	return &v, nil
}

// UpdateVisit applies the non-nil fields of upd to a visit
func (s *Service) UpdateVisit(id string, upd VisitUpdate) (*Visit, error) {
	v, err := s.db.GetVisit(id)
	if err != nil {
		return nil, fmt.Errorf("getting visit: %w", err)
	}

	if upd.CafeName != nil {
		v.CafeName = strings.TrimSpace(*upd.CafeName)
	}
	if upd.VisitDate != nil {
		v.VisitDate = *upd.VisitDate
	}
	if upd.MenuItems != nil {
		v.MenuItems = *upd.MenuItems
	}
	if upd.TotalPrice != nil {
		v.TotalPrice = *upd.TotalPrice
	}
	if upd.Location != nil {
		v.Location = *upd.Location
	}
	if upd.Rating != nil {
		v.Rating = *upd.Rating
	}
	if upd.Comment != nil {
		v.Comment = *upd.Comment
	}
	if upd.Latitude != nil {
		v.Latitude = *upd.Latitude
	}
	if upd.Longitude != nil {
		v.Longitude = *upd.Longitude
	}
	v.UpdatedAt = s.timeSource.Now()

	if err := validateVisit(v); err != nil {
		return nil, err
	}
	if err := s.db.SaveVisit(v); err != nil {
		return nil, fmt.Errorf("saving visit: %w", err)
	}
	return v, nil
}

// GetVisit retrieves a visit by ID
func (s *Service) GetVisit(id string) (*Visit, error) {
	v, err := s.db.GetVisit(id)
	if err != nil {
		return nil, fmt.Errorf("getting visit: %w", err)
	}
	return v, nil
}

// ListVisits returns all visits, newest first
func (s *Service) ListVisits() ([]*Visit, error) {
	visits, err := s.db.ListVisits()
	if err != nil {
		return nil, fmt.Errorf("listing visits: %w", err)
	}
	return visits, nil
}
