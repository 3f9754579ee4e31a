package service

import (
	"context"

	"orderflow/internal/model"
	"orderflow/internal/policy"
	"orderflow/internal/repository"
)

// ViewService derives the orders an actor may see. The department manager
// view resolves the subordinate set once per call; a subscription keeps the
// filter it started with.
type ViewService interface {
	FilterFor(ctx context.Context, actor model.Actor) (model.OrderFilter, error)
	// CanAct reports whether the actor holds the order for action. Role
	// gates are checked separately by policy.Allowed.
	CanAct(ctx context.Context, actor model.Actor, action policy.Action, order *model.Order) (bool, error)
}

type viewService struct {
	staff repository.StaffRepository
}

func NewViewService(staff repository.StaffRepository) ViewService {
	return &viewService{staff: staff}
}

func (s *viewService) FilterFor(ctx context.Context, actor model.Actor) (model.OrderFilter, error) {
	if actor.IsTopLevel() {
		return model.OrderFilter{All: true}, nil
	}

	switch actor.Role {
	case model.RoleManager:
		subs, err := s.staff.ListSubordinateIDs(ctx, actor.UID, model.RoleSales)
		if err != nil {
			return model.OrderFilter{}, classify(err, "staff")
		}
		return model.OrderFilter{CreatorIDs: append([]string{actor.UID}, subs...)}, nil
	case model.RoleSales:
		return model.OrderFilter{CreatorIDs: []string{actor.UID}}, nil
	case model.RoleWarehouseManager:
		if actor.ManagerIDValue() == "" {
			return model.OrderFilter{InWarehouse: true}, nil
		}
		return model.OrderFilter{WarehouseManagerID: actor.UID}, nil
	case model.RolePicker:
		return model.OrderFilter{AssignedTo: actor.UID}, nil
	}
	return model.OrderFilter{}, nil
}

func (s *viewService) CanAct(ctx context.Context, actor model.Actor, action policy.Action, order *model.Order) (bool, error) {
	if actor.IsTopLevel() {
		return true, nil
	}

	switch action {
	case policy.ActionAssignPicker, policy.ActionShip:
		return order.WarehouseManagerID != "" && order.WarehouseManagerID == actor.UID, nil
	case policy.ActionStartPicking, policy.ActionPickItem, policy.ActionComplete, policy.ActionRequestRevision:
		return order.AssignedTo != "" && order.AssignedTo == actor.UID, nil
	}

	filter, err := s.FilterFor(ctx, actor)
	if err != nil {
		return false, err
	}
	return filter.Matches(order), nil
}
