package orchestrators

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"clinic/internal/adapters/objectstore"
	"clinic/internal/domain/audit"
	"clinic/internal/domain/patientfile"
)

// PatientFileStore persists file metadata.
type PatientFileStore interface {
	GetByID(ctx context.Context, id string) (patientfile.File, error)
	Save(ctx context.Context, f patientfile.File) error
	Delete(ctx context.Context, id string) error
}

// UploadPatientFileInput carries an uploaded file.
type UploadPatientFileInput struct {
	CustomerID string
	RecordID   string
	FileType   string
	FileName   string
	MimeType   string
	SizeBytes  int64
	Body       io.Reader
	Actor      Actor
}

// PatientFileDeps holds dependencies for the patient file orchestrators.
type PatientFileDeps struct {
	CustomerStore CustomerGetter
	FileStore     PatientFileStore
	Objects       objectstore.Store
	AuditStore    AuditRecorder
	URLExpiry     time.Duration
	GenerateID    func() string
	Now           func() time.Time
}

// ExecuteUploadPatientFile stores the bytes in object storage and the
// metadata in the database.
// PRE: the customer exists; the file passes type and size checks
// POST: metadata is saved only after the object upload succeeded
func ExecuteUploadPatientFile(ctx context.Context, input UploadPatientFileInput, deps PatientFileDeps) (patientfile.File, error) {
	now := deps.Now()
	f := patientfile.File{
		ID:         deps.GenerateID(),
		CustomerID: input.CustomerID,
		RecordID:   input.RecordID,
		FileType:   input.FileType,
		FileName:   input.FileName,
		MimeType:   input.MimeType,
		SizeBytes:  input.SizeBytes,
		UploadedBy: input.Actor.ID,
		CreatedAt:  now,
	}
	if err := f.Validate(); err != nil {
		return patientfile.File{}, err
	}
	if _, err := deps.CustomerStore.GetByID(ctx, input.CustomerID); err != nil {
		return patientfile.File{}, err
	}
	f.StoragePath = patientfile.ObjectKey(f.CustomerID, f.ID, f.FileName)

	if err := deps.Objects.Put(ctx, f.StoragePath, input.Body, f.SizeBytes, f.MimeType); err != nil {
		return patientfile.File{}, fmt.Errorf("upload patient file: %w", err)
	}
	if err := deps.FileStore.Save(ctx, f); err != nil {
		if rmErr := deps.Objects.Remove(context.WithoutCancel(ctx), f.StoragePath); rmErr != nil {
			slog.Error("patient_file_orphaned", "key", f.StoragePath, "error", rmErr)
		}
		return patientfile.File{}, err
	}

	recordAudit(ctx, deps.AuditStore, newEvent(now, input.Actor, audit.CategoryPatientData, audit.ActionUpload).
		WithResource("patient_file", f.ID).
		WithDescription(f.FileType + " for customer " + f.CustomerID))
	slog.Info("file_event", "event", "patient_file_uploaded", "file_id", f.ID, "customer_id", f.CustomerID,
		"mime", f.MimeType, "size", f.SizeBytes)
	return f, nil
}

// GetPatientFileURLInput names the file to download.
type GetPatientFileURLInput struct {
	FileID string
	Actor  Actor
}

// PatientFileURL is a time-limited download link.
type PatientFileURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExecuteGetPatientFileURL issues a presigned download link and audits the access.
// PRE: the file exists
// POST: Returns a URL valid for URLExpiry
func ExecuteGetPatientFileURL(ctx context.Context, input GetPatientFileURLInput, deps PatientFileDeps) (PatientFileURL, error) {
	f, err := deps.FileStore.GetByID(ctx, input.FileID)
	if err != nil {
		return PatientFileURL{}, err
	}
	expiry := deps.URLExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	u, err := deps.Objects.PresignGet(ctx, f.StoragePath, f.FileName, expiry)
	if err != nil {
		return PatientFileURL{}, err
	}
	now := deps.Now()
	recordAudit(ctx, deps.AuditStore, newEvent(now, input.Actor, audit.CategoryPatientData, audit.ActionDownload).
		WithResource("patient_file", f.ID).
		WithDescription("download link for customer " + f.CustomerID))
	return PatientFileURL{URL: u, ExpiresAt: now.Add(expiry)}, nil
}

// DeletePatientFileInput names the file to remove.
type DeletePatientFileInput struct {
	FileID string
	Actor  Actor
}

// ExecuteDeletePatientFile removes the metadata and then the object.
// PRE: the file exists
// POST: the file no longer appears in the customer's file list
func ExecuteDeletePatientFile(ctx context.Context, input DeletePatientFileInput, deps PatientFileDeps) error {
	f, err := deps.FileStore.GetByID(ctx, input.FileID)
	if err != nil {
		return err
	}
	if err := deps.FileStore.Delete(ctx, f.ID); err != nil {
		return err
	}
	if err := deps.Objects.Remove(ctx, f.StoragePath); err != nil {
		slog.Error("patient_file_orphaned", "key", f.StoragePath, "error", err)
	}
	recordAudit(ctx, deps.AuditStore, newEvent(deps.Now(), input.Actor, audit.CategoryPatientData, audit.ActionUpdate).
		WithSeverity(audit.SeverityWarning).
		WithResource("patient_file", f.ID).
		WithDescription("deleted " + f.FileType + " for customer " + f.CustomerID))
	return nil
}
