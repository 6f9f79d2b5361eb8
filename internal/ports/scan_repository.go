package ports

import (
	"context"
	"errors"

	domainscan "veriscan/internal/domain/scan"
)

var (
	// ErrRecordNotFound covers both a missing record and a record owned by
	// someone else. Lookups fail closed; ownership is never leaked.
	ErrRecordNotFound = errors.New("scan record not found")

	// ErrDuplicateFilename means the (owner, filename) pair already exists.
	ErrDuplicateFilename = errors.New("scan filename already exists for owner")

	// ErrAlreadyDone means Update targeted a record that has already reached
	// its terminal status. A second update is a caller bug, surfaced loudly.
	ErrAlreadyDone = errors.New("scan record is already done")
)

// ScanRepository persists one record per accepted upload attempt. Every
// operation is scoped to an owner id.
type ScanRepository interface {
	// Create inserts a pending record with no credibility or explanation.
	Create(ctx context.Context, ownerID, filename, extractedText string) (domainscan.ScanRecord, error)

	Get(ctx context.Context, ownerID, id string) (domainscan.ScanRecord, error)
	GetByFilename(ctx context.Context, ownerID, filename string) (domainscan.ScanRecord, error)

	// List returns the owner's records ordered by creation time, newest first.
	List(ctx context.Context, ownerID string) ([]domainscan.ScanRecord, error)

	// Update sets status=done together with the credibility/explanation pair.
	// It refuses records that are already done.
	Update(ctx context.Context, ownerID, id string, credibility int, explanation string) (domainscan.ScanRecord, error)

	// Search matches case-insensitively against the extracted text.
	Search(ctx context.Context, ownerID, text string) ([]domainscan.ScanRecord, error)

	// Delete is a maintenance operation; the pipeline itself never deletes.
	Delete(ctx context.Context, ownerID, id string) error
}
