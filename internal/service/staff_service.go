package service

import (
	"context"
	"strings"

	"orderflow/internal/model"
	"orderflow/internal/repository"

	"go.uber.org/zap"
)

type SyncStaffRequest struct {
	DisplayName string     `json:"display_name"`
	Role        model.Role `json:"role"`
	ManagerID   *string    `json:"manager_id"`
}

// StaffService exposes the roster mirrored from the identity provider.
// Assignment screens list candidates from it.
type StaffService interface {
	ListStaff(ctx context.Context, actor model.Actor, role model.Role, page, limit int) ([]model.StaffUser, int64, error)
	SyncStaff(ctx context.Context, actor model.Actor, uid string, req SyncStaffRequest) (*model.StaffUser, error)
}

type staffService struct {
	staffRepo repository.StaffRepository
	log       *zap.Logger
}

func NewStaffService(staffRepo repository.StaffRepository, log *zap.Logger) StaffService {
	return &staffService{staffRepo: staffRepo, log: log}
}

func (s *staffService) ListStaff(ctx context.Context, actor model.Actor, role model.Role, page, limit int) ([]model.StaffUser, int64, error) {
	if actor.UID == "" {
		return nil, 0, permissionf("unknown caller")
	}
	if role != "" && !role.Valid() {
		return nil, 0, validationf("unknown role %q", role)
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	users, total, err := s.staffRepo.List(ctx, role, page, limit)
	if err != nil {
		return nil, 0, classify(err, "staff")
	}
	return users, total, nil
}

// SyncStaff creates or overwrites one roster entry
func (s *staffService) SyncStaff(ctx context.Context, actor model.Actor, uid string, req SyncStaffRequest) (*model.StaffUser, error) {
	if !actor.IsTopLevel() {
		return nil, permissionf("roster changes are restricted to top-level management")
	}
	uid = strings.TrimSpace(uid)
	name := strings.TrimSpace(req.DisplayName)
	if uid == "" || name == "" {
		return nil, validationf("uid and display_name are required")
	}
	if !req.Role.Valid() {
		return nil, validationf("unknown role %q", req.Role)
	}
	if req.ManagerID != nil && *req.ManagerID == uid {
		return nil, validationf("staff %s cannot report to itself", uid)
	}

	user := &model.StaffUser{UID: uid, DisplayName: name, Role: req.Role, ManagerID: req.ManagerID}
	if err := s.staffRepo.Upsert(ctx, user); err != nil {
		return nil, classify(err, "staff")
	}
	s.log.Info("Staff synced", zap.String("uid", uid), zap.String("role", string(req.Role)))

	stored, err := s.staffRepo.GetByID(ctx, uid)
	if err != nil {
		return nil, classify(err, "staff")
	}
	return stored, nil
}
