package patientfile

import (
	"errors"
	"path"
	"strings"
	"time"
)

// File types
const (
	TypePhoto       = "photo"
	TypeConsentForm = "consent_form"
	TypeLabResult   = "lab_result"
	TypeDocument    = "document"
	TypeBeforeAfter = "before_after"
)

// MaxSizeBytes is the upload limit per file.
const MaxSizeBytes = 20 << 20

// Domain errors
var (
	ErrEmptyCustomerID = errors.New("customer ID is required")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrEmptyFileName   = errors.New("file name is required")
	ErrMimeNotAllowed  = errors.New("file format is not allowed")
	ErrTooLarge        = errors.New("file exceeds 20 MiB")
	ErrEmpty           = errors.New("file is empty")
)

var allowedMime = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/heic":      true,
	"application/pdf": true,
}

// File is a document or image attached to a customer's patient file.
// The bytes live in object storage under StoragePath.
type File struct {
	ID          string
	CustomerID  string
	RecordID    string
	FileType    string
	FileName    string
	StoragePath string
	MimeType    string
	SizeBytes   int64
	UploadedBy  string
	CreatedAt   time.Time
}

// Validate checks if the File has valid metadata.
// PRE: File struct is populated
// POST: Returns nil if valid, error otherwise
func (f *File) Validate() error {
	if strings.TrimSpace(f.CustomerID) == "" {
		return ErrEmptyCustomerID
	}
	switch f.FileType {
	case TypePhoto, TypeConsentForm, TypeLabResult, TypeDocument, TypeBeforeAfter:
	default:
		return ErrInvalidFileType
	}
	if strings.TrimSpace(f.FileName) == "" {
		return ErrEmptyFileName
	}
	if !allowedMime[f.MimeType] {
		return ErrMimeNotAllowed
	}
	if f.SizeBytes <= 0 {
		return ErrEmpty
	}
	if f.SizeBytes > MaxSizeBytes {
		return ErrTooLarge
	}
	return nil
}

// ObjectKey builds the storage key: customers/<customer>/<file id><ext>.
// The client-supplied file name never becomes part of the key.
func ObjectKey(customerID, fileID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return "customers/" + customerID + "/" + fileID + ext
}
