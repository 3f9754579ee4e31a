package repository

import (
	"context"

	"orderflow/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StaffRepository reads the staff roster. Upsert exists for seeding; the
// order workflow never writes staff.
type StaffRepository interface {
	GetByID(ctx context.Context, uid string) (*model.StaffUser, error)
	ListSubordinateIDs(ctx context.Context, managerID string, role model.Role) ([]string, error)
	List(ctx context.Context, role model.Role, page, limit int) ([]model.StaffUser, int64, error)
	Upsert(ctx context.Context, user *model.StaffUser) error
}

type staffRepository struct {
	db *gorm.DB
}

func NewStaffRepository(db *gorm.DB) StaffRepository {
	return &staffRepository{db: db}
}

func (r *staffRepository) GetByID(ctx context.Context, uid string) (*model.StaffUser, error) {
	var user model.StaffUser
	if err := GetDB(ctx, r.db).First(&user, "uid = ?", uid).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *staffRepository) ListSubordinateIDs(ctx context.Context, managerID string, role model.Role) ([]string, error) {
	var ids []string
	db := GetDB(ctx, r.db).Model(&model.StaffUser{}).Where("manager_id = ?", managerID)
	if role != "" {
		db = db.Where("role = ?", role)
	}
	if err := db.Order("uid").Pluck("uid", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *staffRepository) List(ctx context.Context, role model.Role, page, limit int) ([]model.StaffUser, int64, error) {
	var users []model.StaffUser
	var total int64

	db := GetDB(ctx, r.db).Model(&model.StaffUser{})
	if role != "" {
		db = db.Where("role = ?", role)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("display_name").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *staffRepository) Upsert(ctx context.Context, user *model.StaffUser) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "role", "manager_id", "updated_at"}),
	}).Create(user).Error
}
