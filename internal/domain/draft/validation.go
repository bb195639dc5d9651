package draft

import (
	"errors"
	"net/mail"
	"path/filepath"
	"sort"
	"strings"
)

// Field names used as keys in ValidationError.Fields.
const (
	FieldName      = "name"
	FieldEmail     = "email"
	FieldCompany   = "company"
	FieldPhone     = "phone"
	FieldPlan      = "plan"
	FieldAudioFile = "audio_file"
	FieldDuration  = "audio_duration"
	FieldPromoCode = "promo_code"
)

// MaxAudioFileSize is the largest upload the widget accepts (500 MB).
const MaxAudioFileSize int64 = 500 << 20

var ErrValidation = errors.New("validation failed")

var allowedAudioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".aac": true,
	".ogg": true, ".flac": true, ".wma": true, ".mp4": true,
}

// ValidationError carries per-field messages. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// ValidateEmail reports whether email is a single bare RFC 5322 address.
func ValidateEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == strings.TrimSpace(email)
}

func validateFile(f FileRef) *ValidationError {
	if f.Name == "" {
		return newValidationError(FieldAudioFile, "file name is required")
	}
	if f.Size <= 0 {
		return newValidationError(FieldAudioFile, "file is empty")
	}
	if f.Size > MaxAudioFileSize {
		return newValidationError(FieldAudioFile, "file exceeds the 500 MB limit")
	}
	ext := strings.ToLower(filepath.Ext(f.Name))
	if !allowedAudioExtensions[ext] && !strings.HasPrefix(f.ContentType, "audio/") {
		return newValidationError(FieldAudioFile, "unsupported file type")
	}
	return nil
}
