package repository

import (
	"context"

	"orderflow/internal/model"

	"gorm.io/gorm"
)

// AuditFilter narrows an audit listing. Empty fields do not filter.
type AuditFilter struct {
	EntityID string
	ActorID  string
	Action   string
}

func (f AuditFilter) apply(db *gorm.DB) *gorm.DB {
	if f.EntityID != "" {
		db = db.Where("entity_id = ?", f.EntityID)
	}
	if f.ActorID != "" {
		db = db.Where("actor_id = ?", f.ActorID)
	}
	if f.Action != "" {
		db = db.Where("action = ?", f.Action)
	}
	return db
}

// AuditRepository appends to and pages through the audit trail. Entries
// are never updated.
type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, filter AuditFilter, page, limit int) ([]model.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Log joins the caller's transaction so the entry commits with the change
// it describes
func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter, page, limit int) ([]model.AuditLog, int64, error) {
	var total int64
	base := filter.apply(GetDB(ctx, r.db).Model(&model.AuditLog{}))
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	logs := make([]model.AuditLog, 0, limit)
	err := base.
		Order("created_at DESC").Order("id").
		Offset((page - 1) * limit).Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
