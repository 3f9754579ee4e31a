package service

import (
	"context"

	"orderflow/internal/model"
	"orderflow/internal/policy"
	"orderflow/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AssignRequest struct {
	AssigneeID      string `json:"assignee_id"`
	ExpectedVersion int    `json:"expected_version"`
}

// AssignmentService hands orders along the custody chain: department
// manager to warehouse manager, warehouse manager to picker. Assignee
// identity and name are written together and a reassignment overwrites both.
type AssignmentService interface {
	AssignToWarehouseManager(ctx context.Context, actor model.Actor, orderID uuid.UUID, req AssignRequest) (*model.Order, error)
	AssignToPicker(ctx context.Context, actor model.Actor, orderID uuid.UUID, req AssignRequest) (*model.Order, error)
}

type assignmentService struct {
	*Workflow
	staffRepo repository.StaffRepository
}

func NewAssignmentService(wf *Workflow, staffRepo repository.StaffRepository) AssignmentService {
	return &assignmentService{Workflow: wf, staffRepo: staffRepo}
}

func (s *assignmentService) AssignToWarehouseManager(ctx context.Context, actor model.Actor, orderID uuid.UUID, req AssignRequest) (*model.Order, error) {
	if !policy.Allowed(actor, policy.ActionAssignWarehouse) {
		return nil, permissionf("role %s may not assign warehouse managers", actor.Role)
	}
	assignee, err := s.assignee(ctx, req.AssigneeID, model.RoleWarehouseManager)
	if err != nil {
		return nil, err
	}

	order, err := s.transition(ctx, actor, orderID, req.ExpectedVersion, policy.ActionAssignWarehouse,
		func(o *model.Order, to model.OrderStatus) (model.OrderStatus, map[string]interface{}, error) {
			if o.WarehouseManagerID != "" {
				return "", nil, conflictf("order is already in the custody of warehouse manager %s", o.WarehouseManagerID)
			}
			return to, map[string]interface{}{
				"warehouse_manager_id":   assignee.UID,
				"warehouse_manager_name": assignee.DisplayName,
			}, nil
		}, req)
	if err != nil {
		return nil, err
	}

	s.log.Info("Order handed to warehouse",
		zap.String("order_id", orderID.String()),
		zap.String("warehouse_manager_id", assignee.UID))
	return order, nil
}

func (s *assignmentService) AssignToPicker(ctx context.Context, actor model.Actor, orderID uuid.UUID, req AssignRequest) (*model.Order, error) {
	if !policy.Allowed(actor, policy.ActionAssignPicker) {
		return nil, permissionf("role %s may not assign pickers", actor.Role)
	}
	assignee, err := s.assignee(ctx, req.AssigneeID, model.RolePicker)
	if err != nil {
		return nil, err
	}

	order, err := s.transition(ctx, actor, orderID, req.ExpectedVersion, policy.ActionAssignPicker,
		func(o *model.Order, to model.OrderStatus) (model.OrderStatus, map[string]interface{}, error) {
			// a re-confirmed order must already be in warehouse custody
			if o.WarehouseManagerID == "" {
				return "", nil, conflictf("order has not been handed to a warehouse manager")
			}
			return to, map[string]interface{}{
				"assigned_to":      assignee.UID,
				"assigned_to_name": assignee.DisplayName,
			}, nil
		}, req)
	if err != nil {
		return nil, err
	}

	s.log.Info("Order assigned to picker",
		zap.String("order_id", orderID.String()),
		zap.String("picker_id", assignee.UID))
	return order, nil
}

// assignee resolves the target from the roster and checks its role
func (s *assignmentService) assignee(ctx context.Context, uid string, role model.Role) (*model.StaffUser, error) {
	if uid == "" {
		return nil, validationf("assignee_id is required")
	}
	user, err := s.staffRepo.GetByID(ctx, uid)
	if err != nil {
		return nil, classify(err, "staff "+uid)
	}
	if user.Role != role {
		return nil, validationf("staff %s has role %s, expected %s", uid, user.Role, role)
	}
	return user, nil
}
