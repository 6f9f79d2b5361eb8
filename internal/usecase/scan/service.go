package scan

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"veriscan/internal/bootstrap/logging"
	domainscan "veriscan/internal/domain/scan"
	"veriscan/internal/errs"
	"veriscan/internal/ports"
)

// Service drives one scan job end to end: upload, extract, persist, analyze,
// finalize. Stages run strictly in order; a failure is attributed to the
// stage it happened in and never retried by the service itself.
type Service struct {
	repo      ports.ScanRepository
	store     ports.ObjectStore
	extractor ports.TextExtractor
	analyzer  ports.Analyzer
	filenames *domainscan.FilenameGenerator
}

func NewService(repo ports.ScanRepository, store ports.ObjectStore, extractor ports.TextExtractor, analyzer ports.Analyzer) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		extractor: extractor,
		analyzer:  analyzer,
		filenames: domainscan.NewFilenameGenerator(),
	}
}

type SubmitInput struct {
	OwnerID string
	Image   []byte
	Source  domainscan.Source

	// OnStage, when set, observes stage transitions as they start. The
	// original surfaces these as incremental progress text.
	OnStage func(domainscan.Stage)
}

type SubmitResult struct {
	Record domainscan.ScanRecord
}

// Submit runs the pipeline for one captured or picked image. On success the
// returned record is terminal (status done). When analysis or the final
// update fails after the record was created, the record survives as pending;
// the returned *domainscan.StageError carries its id.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	if err := checkCtx(ctx); err != nil {
		return SubmitResult{}, err
	}
	if strings.TrimSpace(in.OwnerID) == "" {
		return SubmitResult{}, domainscan.ErrOwnerRequired
	}
	if len(in.Image) == 0 {
		return SubmitResult{}, domainscan.ErrImageRequired
	}

	filename, err := s.filenames.Next(in.Source)
	if err != nil {
		return SubmitResult{}, err
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.scan"),
		slog.String("owner_id", in.OwnerID),
		slog.String("filename", filename),
	)

	enterStage(in.OnStage, domainscan.StageUpload)
	ref, err := s.store.Upload(logCtx, in.OwnerID, filename, in.Image)
	if err != nil {
		return SubmitResult{}, stageFailed(logCtx, domainscan.StageUpload, "", err)
	}
	logging.Info(logCtx, "image uploaded", slog.String("key", ref.Key), slog.Int64("bytes", ref.Size))

	enterStage(in.OnStage, domainscan.StageExtract)
	text, err := s.extractor.ExtractText(logCtx, in.Image)
	if err != nil {
		// No record exists yet; the job is fully retriable from scratch.
		return SubmitResult{}, stageFailed(logCtx, domainscan.StageExtract, "", err)
	}
	logging.Info(logCtx, "text extracted", slog.Int("text_len", len(text)))

	enterStage(in.OnStage, domainscan.StagePersist)
	record, err := s.repo.Create(logCtx, in.OwnerID, filename, text)
	if err != nil {
		return SubmitResult{}, stageFailed(logCtx, domainscan.StagePersist, "", err)
	}

	enterStage(in.OnStage, domainscan.StageAnalyze)
	verdict, err := s.analyzer.Analyze(logCtx, text)
	if err != nil {
		// The pending record stays; it shows up in listings until a
		// maintenance pass revisits it.
		return SubmitResult{}, stageFailed(logCtx, domainscan.StageAnalyze, record.ID, err)
	}

	updated, err := s.repo.Update(logCtx, in.OwnerID, record.ID, verdict.Credibility, verdict.Explanation)
	if err != nil {
		return SubmitResult{}, stageFailed(logCtx, domainscan.StagePersist, record.ID, err)
	}

	logging.Info(logCtx, "scan completed",
		slog.String("record_id", updated.ID),
		slog.Int("credibility", verdict.Credibility),
	)
	return SubmitResult{Record: updated}, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (domainscan.ScanRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return domainscan.ScanRecord{}, err
	}
	return s.repo.Get(ctx, ownerID, id)
}

func (s *Service) GetByFilename(ctx context.Context, ownerID, filename string) (domainscan.ScanRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return domainscan.ScanRecord{}, err
	}
	return s.repo.GetByFilename(ctx, ownerID, filename)
}

func (s *Service) List(ctx context.Context, ownerID string) ([]domainscan.ScanRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, ownerID)
}

func (s *Service) Search(ctx context.Context, ownerID, text string) ([]domainscan.ScanRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return s.repo.Search(ctx, ownerID, text)
}

func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	return s.repo.Delete(ctx, ownerID, id)
}

// ImageURL resolves a time-limited retrieval URL for a record's stored image.
func (s *Service) ImageURL(ctx context.Context, ownerID, id string, ttl time.Duration) (string, error) {
	if err := checkCtx(ctx); err != nil {
		return "", err
	}

	record, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	return s.store.SignedURL(ctx, ownerID, record.Filename, ttl)
}

func enterStage(onStage func(domainscan.Stage), stage domainscan.Stage) {
	if onStage != nil {
		onStage(stage)
	}
}

func stageFailed(ctx context.Context, stage domainscan.Stage, recordID string, err error) error {
	stageErr := &domainscan.StageError{Stage: stage, RecordID: recordID, Err: err}
	logging.Error(ctx, "pipeline stage failed",
		slog.String("stage", string(stage)),
		slog.String("record_id", recordID),
		slog.Any("err", errs.Loggable(err)),
	)
	return stageErr
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
