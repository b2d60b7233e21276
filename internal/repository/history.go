package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/doffice/constants"
	"github.com/joseph-ayodele/doffice/internal/common"
	"github.com/joseph-ayodele/doffice/internal/entity"
)

const historyTable = "history_items"

var historyColumns = []string{
	"id", "job_id", "kind", "source_path", "filename", "mime_type",
	"status", "result_text", "error_message", "created_at", "updated_at",
}

// HistoryFilter narrows List. Zero values mean "any"; Limit <= 0 means no limit.
type HistoryFilter struct {
	Kind   constants.MediaKind
	Status constants.JobStatus
	JobID  entity.JobID
	Limit  int
}

type HistoryRepository interface {
	Save(ctx context.Context, item *entity.HistoryItem) error
	Get(ctx context.Context, id uuid.UUID) (*entity.HistoryItem, error)
	List(ctx context.Context, filter HistoryFilter) ([]*entity.HistoryItem, error)
	UpdateText(ctx context.Context, id uuid.UUID, text string) (*entity.HistoryItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type historyRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewHistoryRepository(db *DB, logger *slog.Logger) HistoryRepository {
	return &historyRepository{db: db, logger: logger, now: time.Now}
}

// Save inserts item, assigning an id and timestamps when unset.
func (r *historyRepository) Save(ctx context.Context, item *entity.HistoryItem) error {
	now := r.now().UTC().Truncate(time.Millisecond)
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	q, args := r.db.builder().Insert(historyTable).
		Columns(historyColumns...).
		Values(
			item.ID.String(), int64(item.JobID), string(item.Kind), item.SourcePath, item.Filename,
			item.MIMEType, string(item.Status), item.ResultText, item.ErrorMessage,
			item.CreatedAt.UnixMilli(), item.UpdatedAt.UnixMilli(),
		).Query()
	if _, err := r.db.conn().ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("failed to save history item", "job_id", item.JobID, "error", err)
		return common.NewAppError("DB_ERROR", "save history item", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	r.logger.Debug("history item saved", "id", item.ID, "job_id", item.JobID)
	return nil
}

func (r *historyRepository) Get(ctx context.Context, id uuid.UUID) (*entity.HistoryItem, error) {
	q, args := r.db.builder().Select(historyColumns...).
		From(r.db.builder().Table(historyTable)).
		Where(entsql.EQ("id", id.String())).
		Query()
	items, err := r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, common.NewAppError("NOT_FOUND", "history item "+id.String(), common.ErrNotFound)
	}
	return items[0], nil
}

// List returns matching items, newest first.
func (r *historyRepository) List(ctx context.Context, filter HistoryFilter) ([]*entity.HistoryItem, error) {
	var preds []*entsql.Predicate
	if filter.Kind != "" {
		preds = append(preds, entsql.EQ("kind", string(filter.Kind)))
	}
	if filter.Status != "" {
		preds = append(preds, entsql.EQ("status", string(filter.Status)))
	}
	if filter.JobID != 0 {
		preds = append(preds, entsql.EQ("job_id", int64(filter.JobID)))
	}

	s := r.db.builder().Select(historyColumns...).From(r.db.builder().Table(historyTable))
	if len(preds) > 0 {
		s = s.Where(entsql.And(preds...))
	}
	s = s.OrderExpr(entsql.Expr("created_at DESC"))
	if filter.Limit > 0 {
		s = s.Limit(filter.Limit)
	}
	q, args := s.Query()
	return r.query(ctx, q, args)
}

func (r *historyRepository) UpdateText(ctx context.Context, id uuid.UUID, text string) (*entity.HistoryItem, error) {
	q, args := r.db.builder().Update(historyTable).
		Set("result_text", text).
		Set("updated_at", r.now().UTC().UnixMilli()).
		Where(entsql.EQ("id", id.String())).
		Query()
	if err := r.execOne(ctx, q, args, id); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *historyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, args := r.db.builder().Delete(historyTable).
		Where(entsql.EQ("id", id.String())).
		Query()
	return r.execOne(ctx, q, args, id)
}

func (r *historyRepository) execOne(ctx context.Context, q string, args []any, id uuid.UUID) error {
	res, err := r.db.conn().ExecContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("history write failed", "id", id, "error", err)
		return common.NewAppError("DB_ERROR", "write history item", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.NewAppError("DB_ERROR", "write history item", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	if n == 0 {
		return common.NewAppError("NOT_FOUND", "history item "+id.String(), common.ErrNotFound)
	}
	return nil
}

func (r *historyRepository) query(ctx context.Context, q string, args []any) ([]*entity.HistoryItem, error) {
	rows, err := r.db.conn().QueryContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("history query failed", "error", err)
		return nil, common.NewAppError("DB_ERROR", "query history", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	defer rows.Close()

	var out []*entity.HistoryItem
	for rows.Next() {
		item, err := scanHistoryItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "query history", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	return out, nil
}

func scanHistoryItem(rows *sql.Rows) (*entity.HistoryItem, error) {
	var (
		id, kind, status   string
		jobID              int64
		createdAt, updated int64
		item               entity.HistoryItem
	)
	if err := rows.Scan(&id, &jobID, &kind, &item.SourcePath, &item.Filename, &item.MIMEType,
		&status, &item.ResultText, &item.ErrorMessage, &createdAt, &updated); err != nil {
		return nil, fmt.Errorf("scan history item: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("scan history item: %w", err)
	}
	item.ID = parsed
	item.JobID = entity.JobID(jobID)
	item.Kind = constants.MediaKind(kind)
	item.Status = constants.JobStatus(status)
	item.CreatedAt = time.UnixMilli(createdAt).UTC()
	item.UpdatedAt = time.UnixMilli(updated).UTC()
	return &item, nil
}
