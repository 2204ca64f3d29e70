package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devverse06/FinSight/internal/imaging"
	"github.com/devverse06/FinSight/internal/interpret"
	"github.com/devverse06/FinSight/internal/ocr"
)

var (
	// ErrUnauthenticated indicates the request carried no caller identity
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrAccountExists indicates the account number is already registered
	// for this user
	ErrAccountExists = errors.New("account already exists for this user")

	// ErrAccountNumberRequired indicates an empty account number
	ErrAccountNumberRequired = errors.New("account number required")
)

// SuffixPolicy decides what to do when more than one registered account ends
// with a candidate's account-number suffix.
type SuffixPolicy int

const (
	// SuffixFirstMatch resolves to the first match in stable store order
	SuffixFirstMatch SuffixPolicy = iota
	// SuffixRejectAmbiguous drops candidates whose suffix matches more
	// than one account
	SuffixRejectAmbiguous
)

// ParseSuffixPolicy maps a config string to a SuffixPolicy
func ParseSuffixPolicy(s string) (SuffixPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return SuffixFirstMatch, nil
	case "reject":
		return SuffixRejectAmbiguous, nil
	default:
		return SuffixFirstMatch, fmt.Errorf("invalid suffix policy %q (valid: first, reject)", s)
	}
}

// IDGenerator generates unique IDs for stored transactions
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs the extraction-and-reconciliation pipeline
type Service struct {
	db           DB
	extractor    ocr.Extractor
	interpreter  interpret.Interpreter
	archive      Archive
	suffixPolicy SuffixPolicy
	idGenerator  IDGenerator
	timeSource   TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, extractor ocr.Extractor, interpreter interpret.Interpreter, archive Archive, policy SuffixPolicy) *Service {
	return &Service{
		db:           db,
		extractor:    extractor,
		interpreter:  interpreter,
		archive:      archive,
		suffixPolicy: policy,
		idGenerator:  &defaultIDGenerator{},
		timeSource:   &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor ocr.Extractor, interpreter interpret.Interpreter, archive Archive, policy SuffixPolicy, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:           db,
		extractor:    extractor,
		interpreter:  interpreter,
		archive:      archive,
		suffixPolicy: policy,
		idGenerator:  idGen,
		timeSource:   timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "upload"
	}

	return base + ext
}

// ExtractText decodes an uploaded notification image, normalizes it to
// grayscale and runs OCR over it. The upload is archived best effort.
func (s *Service) ExtractText(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	img, err := imaging.Decode(data, contentType)
	if err != nil {
		return "", err
	}

	if s.archive != nil {
		name := fmt.Sprintf("%s_%s", s.idGenerator.Generate(), sanitizeFilename(filename))
		if _, err := s.archive.Save(name, data); err != nil {
			slog.Warn("Failed to archive upload", "filename", filename, "error", err)
		}
	}

	text, err := s.extractor.ExtractText(ctx, imaging.Grayscale(img))
	if err != nil {
		slog.Error("Failed to extract text",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return "", fmt.Errorf("extracting text: %w", err)
	}

	return text, nil
}

// InterpretText sends OCR text to the generative model and returns the raw
// response. The response is untrusted free text until the reconciliation
// engine validates its structure.
func (s *Service) InterpretText(ctx context.Context, text string) (string, error) {
	response, err := s.interpreter.ExtractTransactions(ctx, text)
	if err != nil {
		return "", fmt.Errorf("interpreting text: %w", err)
	}
	return response, nil
}

// Reply answers a free-form user message through the generative model
func (s *Service) Reply(ctx context.Context, userInput string) (string, error) {
	reply, err := s.interpreter.Reply(ctx, userInput)
	if err != nil {
		return "", fmt.Errorf("generating reply: %w", err)
	}
	return reply, nil
}

// PersistTransactions validates, resolves, dedupes and commits a batch of
// candidates for the given user, in input order. Candidates that are
// incomplete, duplicate a stored reference number, or match no registered
// account are silently dropped; resubmitting a batch never creates
// duplicates.
func (s *Service) PersistTransactions(userID string, candidates []interpret.Candidate) (*PersistResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	result := &PersistResult{
		InsertedTransactions: make([]*StoredTransaction, 0, len(candidates)),
	}

	for _, candidate := range candidates {
		if !eligible(candidate) {
			slog.Info("Dropping incomplete candidate", "reference", candidate.ReferenceNumber)
			continue
		}

		if _, err := s.db.FindTransactionByReference(candidate.ReferenceNumber); err == nil {
			slog.Info("Dropping duplicate candidate", "reference", candidate.ReferenceNumber)
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("checking for duplicate reference: %w", err)
		}

		account, err := s.resolveAccount(candidate.AccountNumber)
		if err != nil {
			return nil, err
		}
		if account == nil {
			slog.Info("Dropping candidate with unresolved account",
				"reference", candidate.ReferenceNumber,
				"suffix", candidate.AccountNumber,
			)
			continue
		}

		record := &StoredTransaction{
			ID:              s.idGenerator.Generate(),
			AccountNumber:   account.AccountNumber,
			CreditedDebited: normalizeDirection(candidate.CreditedDebited),
			Amount:          candidate.Amount.Decimal,
			Date:            candidate.Date,
			ReferenceNumber: candidate.ReferenceNumber,
			ToFrom:          candidate.ToFrom,
			UserID:          userID,
			CreatedAt:       s.timeSource.Now(),
		}

		if err := s.db.SaveTransaction(record); err != nil {
			return nil, fmt.Errorf("saving transaction: %w", err)
		}

		// Strip the internal storage identifier before returning
		inserted := *record
		inserted.ID = ""
		result.InsertedTransactions = append(result.InsertedTransactions, &inserted)
		result.InsertedCount++
	}

	return result, nil
}

// eligible reports whether a candidate carries everything persistence needs:
// account suffix, a valid direction, a present non-negative amount, a date
// and a reference number.
func eligible(c interpret.Candidate) bool {
	if strings.TrimSpace(c.AccountNumber) == "" {
		return false
	}
	direction := normalizeDirection(c.CreditedDebited)
	if direction != "credited" && direction != "debited" {
		return false
	}
	if !c.Amount.Valid || c.Amount.Decimal.IsNegative() {
		return false
	}
	if strings.TrimSpace(c.Date) == "" {
		return false
	}
	if strings.TrimSpace(c.ReferenceNumber) == "" {
		return false
	}
	return true
}

func normalizeDirection(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// resolveAccount resolves an account-number suffix to a registered account.
// A nil account with nil error means the suffix resolved to nothing usable
// and the candidate should be dropped.
func (s *Service) resolveAccount(suffix string) (*Account, error) {
	matches, err := s.db.FindAccountsBySuffix(suffix)
	if err != nil {
		return nil, fmt.Errorf("resolving account suffix: %w", err)
	}
	switch {
	case len(matches) == 0:
		return nil, nil
	case len(matches) > 1 && s.suffixPolicy == SuffixRejectAmbiguous:
		slog.Info("Suffix matches multiple accounts", "suffix", suffix, "matches", len(matches))
		return nil, nil
	default:
		return matches[0], nil
	}
}

// ListTransactions returns all committed transactions for a user
func (s *Service) ListTransactions(userID string) ([]*StoredTransaction, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	records, err := s.db.ListTransactions(userID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return records, nil
}

// AddAccount registers an account number for a user
func (s *Service) AddAccount(userID, accountNumber string) (*Account, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	accountNumber = strings.TrimSpace(accountNumber)
	if accountNumber == "" {
		return nil, ErrAccountNumberRequired
	}

	if _, err := s.db.GetAccount(userID, accountNumber); err == nil {
		return nil, ErrAccountExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("checking for existing account: %w", err)
	}

	account := &Account{
		AccountNumber: accountNumber,
		UserID:        userID,
		CreatedAt:     s.timeSource.Now(),
	}
	if err := s.db.SaveAccount(account); err != nil {
		return nil, fmt.Errorf("saving account: %w", err)
	}
	return account, nil
}

// DeleteAccount removes a user's account registration
func (s *Service) DeleteAccount(userID, accountNumber string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if err := s.db.DeleteAccount(userID, accountNumber); err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	return nil
}

// ListAccounts returns all accounts registered by a user
func (s *Service) ListAccounts(userID string) ([]*Account, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	accounts, err := s.db.ListAccounts(userID)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	return accounts, nil
}
