// Package history manages the local record of finished conversions.
package history

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/doffice/constants"
	"github.com/joseph-ayodele/doffice/internal/common"
	"github.com/joseph-ayodele/doffice/internal/entity"
	"github.com/joseph-ayodele/doffice/internal/repository"
)

// Service handles history business logic.
type Service struct {
	repo   repository.HistoryRepository
	logger *slog.Logger
}

func NewService(repo repository.HistoryRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ListRequest represents history listing parameters.
type ListRequest struct {
	Kind   string
	Status string
	JobID  string // backend job id; empty lists every job
	Limit  int
}

func (s *Service) List(ctx context.Context, req ListRequest) ([]*entity.HistoryItem, error) {
	filter := repository.HistoryFilter{Limit: req.Limit}
	if k := strings.ToLower(strings.TrimSpace(req.Kind)); k != "" {
		kind := constants.MediaKind(k)
		if !kind.Valid() {
			return nil, common.NewAppError("VALIDATION_ERROR", "kind must be ocr or speech", common.ErrInvalidInput)
		}
		filter.Kind = kind
	}
	if st := strings.ToUpper(strings.TrimSpace(req.Status)); st != "" {
		status := constants.JobStatus(st)
		if !status.Valid() {
			return nil, common.NewAppError("VALIDATION_ERROR", "unknown status "+req.Status, common.ErrInvalidInput)
		}
		filter.Status = status
	}
	if j := strings.TrimSpace(req.JobID); j != "" {
		jobID, err := entity.ParseJobID(j)
		if err != nil || jobID <= 0 {
			return nil, common.NewAppError("VALIDATION_ERROR", "job id must be a positive number", common.ErrInvalidInput)
		}
		filter.JobID = jobID
	}

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list history", "error", err)
		return nil, err
	}
	s.logger.Debug("history listed", "count", len(items), "kind", filter.Kind, "job_id", filter.JobID)
	return items, nil
}

func (s *Service) Get(ctx context.Context, id string) (*entity.HistoryItem, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, uid)
}

// UpdateText replaces the stored result text, e.g. after a manual correction.
func (s *Service) UpdateText(ctx context.Context, id, text string) (*entity.HistoryItem, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.UpdateText(ctx, uid, text)
	if err != nil {
		s.logger.Error("failed to update history text", "id", id, "error", err)
		return nil, err
	}
	s.logger.Info("history text updated", "id", id, "text_len", len(text))
	return item, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, uid); err != nil {
		s.logger.Error("failed to delete history item", "id", id, "error", err)
		return err
	}
	s.logger.Info("history item deleted", "id", id)
	return nil
}

// Record stores item as-is.
func (s *Service) Record(ctx context.Context, item *entity.HistoryItem) error {
	return s.repo.Save(ctx, item)
}

func parseID(id string) (uuid.UUID, error) {
	v := common.NewValidator().Field("id", strings.TrimSpace(id), common.Required, common.UUID)
	if err := common.ValidateAndReturnError(v); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(strings.TrimSpace(id)), nil
}
