// AngelaMos | 2026
// service.go

package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/auramanager/aura-api/internal/assistant"
	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/notification"
)

const (
	MaxUploadBytes  = 25 << 20
	maxFileName     = 255
	analysisTimeout = 2 * time.Minute
	// StaleAfter is how long an upload may sit in processing before the
	// cleanup job fails it.
	StaleAfter = 15 * time.Minute
)

type Analyzer interface {
	AnalyzeFile(ctx context.Context, meta assistant.FileMeta) (json.RawMessage, error)
}

type ObjectStore interface {
	Put(ctx context.Context, bucket, path, contentType string, data []byte) error
	Delete(ctx context.Context, bucket, path string) error
}

type Notifier interface {
	Notify(ctx context.Context, userID, category, title, message string) error
}

type Service struct {
	repo     Repository
	store    ObjectStore
	bucket   string
	analyzer Analyzer
	notifier Notifier
	logger   *slog.Logger
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	now      func() time.Time
}

func NewService(
	repo Repository,
	store ObjectStore,
	bucket string,
	analyzer Analyzer,
	notifier Notifier,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		store:    store,
		bucket:   bucket,
		analyzer: analyzer,
		notifier: notifier,
		logger:   logger.With("component", "upload"),
		sem:      semaphore.NewWeighted(4),
		now:      time.Now,
	}
}

// Upload stores an audio or image file and queues its analysis. The
// returned upload is still processing.
func (s *Service) Upload(
	ctx context.Context,
	userID, fileName string,
	data []byte,
) (*Upload, error) {
	if len(data) == 0 {
		return nil, core.ValidationError("file is empty")
	}
	if len(data) > MaxUploadBytes {
		return nil, core.ValidationError("file must be 25 MB or smaller")
	}

	kind := mimetype.Detect(data)
	if !allowed(kind) {
		return nil, core.ValidationError(
			fmt.Sprintf("unsupported file type %s; upload audio or an image", kind.String()),
		)
	}
	contentType, _, _ := strings.Cut(kind.String(), ";")

	u := &Upload{
		ID:          uuid.New().String(),
		UserID:      userID,
		FileName:    cleanFileName(fileName),
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		Status:      StatusProcessing,
	}
	u.StoragePath = fmt.Sprintf("%s/%s%s", userID, u.ID, kind.Extension())

	if err := s.store.Put(ctx, s.bucket, u.StoragePath, contentType, data); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	if err := s.repo.Create(ctx, u); err != nil {
		if derr := s.store.Delete(ctx, s.bucket, u.StoragePath); derr != nil {
			s.logger.Warn("remove orphaned upload blob", "path", u.StoragePath, "error", derr)
		}
		return nil, err
	}

	s.logger.Info("file uploaded",
		"upload_id", u.ID,
		"user_id", userID,
		"content_type", contentType,
		"size", u.SizeBytes,
	)

	s.analyzeInBackground(*u)
	return u, nil
}

// Analyze re-runs analysis for an upload and waits for the result.
func (s *Service) Analyze(ctx context.Context, userID, id string) (*Upload, error) {
	u, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetStatus(ctx, u.ID, StatusProcessing); err != nil {
		return nil, err
	}
	u.Status = StatusProcessing

	s.analyze(ctx, u)
	return u, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*Upload, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, core.NotFoundError("upload")
	}

	u, err := s.repo.Get(ctx, userID, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.NotFoundError("upload")
	}
	return u, err
}

func (s *Service) List(
	ctx context.Context,
	userID string,
	page core.PageParams,
) ([]Upload, int, error) {
	return s.repo.List(ctx, userID, page)
}

// Delete removes the upload row and its stored blob.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	u, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, userID, u.ID); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, s.bucket, u.StoragePath); err != nil {
		s.logger.Warn("delete upload blob", "upload_id", u.ID, "error", err)
	}

	return nil
}

// FailStale fails uploads whose analysis never finished.
func (s *Service) FailStale(ctx context.Context) (int64, error) {
	return s.repo.FailStale(ctx, s.now().Add(-StaleAfter))
}

// Wait blocks until background analyses finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) analyzeInBackground(u Upload) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
		defer cancel()

		if err := s.sem.Acquire(ctx, 1); err != nil {
			s.logger.Warn("analysis not started", "upload_id", u.ID, "error", err)
			return
		}
		defer s.sem.Release(1)

		ctx, span := core.StartSpan(ctx, "upload.analyze",
			attribute.String("upload.id", u.ID),
			attribute.String("upload.content_type", u.ContentType),
		)
		defer span.End()

		s.analyze(ctx, &u)
	}()
}

func (s *Service) analyze(ctx context.Context, u *Upload) {
	doc, err := s.analyzer.AnalyzeFile(ctx, assistant.FileMeta{
		Name:        u.FileName,
		ContentType: u.ContentType,
		SizeBytes:   u.SizeBytes,
	})
	if err != nil {
		reason := core.FromError(err).Message
		s.logger.Warn("upload analysis failed", "upload_id", u.ID, "error", err)
		if merr := s.repo.MarkFailed(ctx, u.ID, reason); merr != nil {
			s.logger.Error("mark upload failed", "upload_id", u.ID, "error", merr)
		}
		u.Status = StatusFailed
		u.Failure = reason
		return
	}

	if err := s.repo.SetAnalysis(ctx, u.ID, doc); err != nil {
		s.logger.Error("store upload analysis", "upload_id", u.ID, "error", err)
		return
	}
	u.Status = StatusAnalyzed
	u.Analysis.JSONText = []byte(doc)
	u.Analysis.Valid = true
	u.Failure = ""

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, u.UserID, notification.CategoryInsight,
			"Upload analyzed", u.FileName+" has been analyzed."); err != nil {
			s.logger.Warn("upload notification failed", "upload_id", u.ID, "error", err)
		}
	}
}

func allowed(kind *mimetype.MIME) bool {
	ct := kind.String()
	if kind.Is("image/svg+xml") {
		return false
	}
	return strings.HasPrefix(ct, "audio/") || strings.HasPrefix(ct, "image/")
}

func cleanFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.ToValidUTF8(strings.TrimSpace(path.Base(name)), "")
	if name == "" || name == "." || name == "/" {
		return "upload"
	}
	for len(name) > maxFileName {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	return name
}
