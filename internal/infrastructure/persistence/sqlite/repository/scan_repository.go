package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"veriscan/internal/bootstrap/logging"
	domainscan "veriscan/internal/domain/scan"
	"veriscan/internal/errs"
	"veriscan/internal/infrastructure/persistence/sqlite/model"
	"veriscan/internal/ports"
)

// ScanRepository stores scan records in sqlite and, when wired with a bus,
// publishes a change event after every successful insert or update. The bus
// is best-effort: a failed publish is logged, never rolled back, matching the
// "eventually, if delivery succeeds" channel contract.
type ScanRepository struct {
	db  *gorm.DB
	bus ports.EventBus
}

var _ ports.ScanRepository = (*ScanRepository)(nil)

func NewScanRepository(db *gorm.DB, bus ports.EventBus) *ScanRepository {
	return &ScanRepository{db: db, bus: bus}
}

func (r *ScanRepository) Create(ctx context.Context, ownerID, filename, extractedText string) (domainscan.ScanRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return domainscan.ScanRecord{}, err
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return domainscan.ScanRecord{}, domainscan.ErrOwnerRequired
	}
	if strings.TrimSpace(filename) == "" {
		return domainscan.ScanRecord{}, domainscan.ErrFilenameRequired
	}

	row := model.ScanRecord{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		Filename:      filename,
		ExtractedText: extractedText,
		Status:        string(domainscan.StatusPending),
		CreatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainscan.ScanRecord{}, ports.ErrDuplicateFilename
		}
		return domainscan.ScanRecord{}, errs.Wrap(err, "insert scan record")
	}

	record := mapRecord(row)
	r.publish(ctx, ports.ChangeEvent{Type: ports.EventInsert, Record: record})
	return record, nil
}

func (r *ScanRepository) Get(ctx context.Context, ownerID, id string) (domainscan.ScanRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return domainscan.ScanRecord{}, err
	}

	return r.takeOne(ctx, "id = ? AND owner_id = ?", id, ownerID)
}

func (r *ScanRepository) GetByFilename(ctx context.Context, ownerID, filename string) (domainscan.ScanRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return domainscan.ScanRecord{}, err
	}

	return r.takeOne(ctx, "filename = ? AND owner_id = ?", filename, ownerID)
}

func (r *ScanRepository) List(ctx context.Context, ownerID string) ([]domainscan.ScanRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, domainscan.ErrOwnerRequired
	}

	var rows []model.ScanRecord
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query scan records")
	}

	return mapRecords(rows), nil
}

func (r *ScanRepository) Update(ctx context.Context, ownerID, id string, credibility int, explanation string) (domainscan.ScanRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return domainscan.ScanRecord{}, err
	}

	// Single guarded UPDATE: status flips to done atomically with the verdict
	// fields, and a record that is already done is left untouched.
	res := r.db.WithContext(ctx).
		Model(&model.ScanRecord{}).
		Where("id = ? AND owner_id = ? AND status = ?", id, ownerID, string(domainscan.StatusPending)).
		Updates(map[string]any{
			"status":      string(domainscan.StatusDone),
			"credibility": credibility,
			"explanation": explanation,
		})
	if res.Error != nil {
		return domainscan.ScanRecord{}, errs.Wrap(res.Error, "update scan record")
	}

	if res.RowsAffected == 0 {
		existing, err := r.takeOne(ctx, "id = ? AND owner_id = ?", id, ownerID)
		if err != nil {
			return domainscan.ScanRecord{}, err
		}
		if existing.Done() {
			return domainscan.ScanRecord{}, ports.ErrAlreadyDone
		}
		return domainscan.ScanRecord{}, errs.Wrap(gorm.ErrInvalidData, "update scan record matched nothing")
	}

	record, err := r.takeOne(ctx, "id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return domainscan.ScanRecord{}, err
	}

	r.publish(ctx, ports.ChangeEvent{Type: ports.EventUpdate, Record: record})
	return record, nil
}

func (r *ScanRepository) Search(ctx context.Context, ownerID, text string) ([]domainscan.ScanRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, domainscan.ErrOwnerRequired
	}

	pattern := "%" + strings.ToLower(text) + "%"

	var rows []model.ScanRecord
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND lower(extracted_text) LIKE ?", ownerID, pattern).
		Order("created_at desc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "search scan records")
	}

	return mapRecords(rows), nil
}

func (r *ScanRepository) Delete(ctx context.Context, ownerID, id string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&model.ScanRecord{})
	if res.Error != nil {
		return errs.Wrap(res.Error, "delete scan record")
	}
	if res.RowsAffected == 0 {
		return ports.ErrRecordNotFound
	}
	return nil
}

func (r *ScanRepository) takeOne(ctx context.Context, query string, args ...any) (domainscan.ScanRecord, error) {
	var row model.ScanRecord
	if err := r.db.WithContext(ctx).Where(query, args...).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainscan.ScanRecord{}, ports.ErrRecordNotFound
		}
		return domainscan.ScanRecord{}, errs.Wrap(err, "query scan record")
	}
	return mapRecord(row), nil
}

func (r *ScanRepository) publish(ctx context.Context, event ports.ChangeEvent) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ctx, event); err != nil {
		logging.Warn(ctx, "change event publish failed",
			slog.String("event_type", string(event.Type)),
			slog.String("record_id", event.Record.ID),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}

func checkCtx(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func mapRecord(row model.ScanRecord) domainscan.ScanRecord {
	return domainscan.ScanRecord{
		ID:            row.ID,
		OwnerID:       row.OwnerID,
		Filename:      row.Filename,
		ExtractedText: row.ExtractedText,
		Status:        domainscan.Status(row.Status),
		Credibility:   row.Credibility,
		Explanation:   row.Explanation,
		CreatedAt:     row.CreatedAt,
	}
}

func mapRecords(rows []model.ScanRecord) []domainscan.ScanRecord {
	items := make([]domainscan.ScanRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapRecord(row))
	}
	return items
}
