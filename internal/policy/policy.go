// Package policy is the single table of who may do what to an order and
// which status each action moves it to.
package policy

import (
	"orderflow/internal/model"
)

// Action names an operation on an order. The values double as audit actions.
type Action string

const (
	ActionCreate          Action = "CREATE_ORDER"
	ActionEdit            Action = "UPDATE_ORDER"
	ActionAssignWarehouse Action = "ASSIGN_WAREHOUSE_MANAGER"
	ActionAssignPicker    Action = "ASSIGN_PICKER"
	ActionStartPicking    Action = "START_PICKING"
	ActionPickItem        Action = "PICK_ITEM"
	ActionComplete        Action = "COMPLETE_ORDER"
	ActionRequestRevision Action = "REQUEST_REVISION"
	ActionCancel          Action = "CANCEL_ORDER"
	ActionShip            Action = "SHIP_ORDER"
	ActionDelete          Action = "DELETE_ORDER"
	ActionView            Action = "VIEW_ORDER"
)

// Transition describes the legal source states of an action and its target.
// A zero To means the action does not change the status.
type Transition struct {
	From []model.OrderStatus
	To   model.OrderStatus
}

var roleTable = map[Action][]model.Role{
	ActionCreate:          {model.RoleSales, model.RoleManager},
	ActionEdit:            {model.RoleSales, model.RoleManager},
	ActionAssignWarehouse: {model.RoleManager},
	ActionAssignPicker:    {model.RoleWarehouseManager},
	ActionStartPicking:    {model.RolePicker},
	ActionPickItem:        {model.RolePicker},
	ActionComplete:        {model.RolePicker},
	ActionRequestRevision: {model.RolePicker},
	ActionCancel:          {model.RoleManager},
	ActionShip:            {model.RoleWarehouseManager},
	ActionDelete:          {model.RoleManager},
	ActionView: {
		model.RoleSales, model.RoleManager, model.RoleWarehouseManager, model.RolePicker,
	},
}

var transitionTable = map[Action]Transition{
	ActionEdit: {
		From: []model.OrderStatus{model.OrderStatusDraft, model.OrderStatusConfirmed, model.OrderStatusPendingRevision},
		To:   model.OrderStatusConfirmed,
	},
	ActionAssignWarehouse: {
		From: []model.OrderStatus{model.OrderStatusConfirmed},
		To:   model.OrderStatusAssignedToWarehouse,
	},
	// Confirmed is accepted only when the caller already holds warehouse
	// custody, i.e. the order came back from a revision.
	ActionAssignPicker: {
		From: []model.OrderStatus{model.OrderStatusAssignedToWarehouse, model.OrderStatusAssignedToPicker, model.OrderStatusConfirmed},
		To:   model.OrderStatusAssignedToPicker,
	},
	ActionStartPicking: {
		From: []model.OrderStatus{model.OrderStatusAssignedToPicker},
		To:   model.OrderStatusProcessing,
	},
	ActionPickItem: {
		From: []model.OrderStatus{model.OrderStatusProcessing},
	},
	ActionComplete: {
		From: []model.OrderStatus{model.OrderStatusProcessing},
		To:   model.OrderStatusCompleted,
	},
	ActionRequestRevision: {
		From: []model.OrderStatus{model.OrderStatusAssignedToPicker, model.OrderStatusProcessing},
		To:   model.OrderStatusPendingRevision,
	},
	ActionCancel: {
		From: []model.OrderStatus{model.OrderStatusDraft, model.OrderStatusConfirmed, model.OrderStatusPendingRevision},
		To:   model.OrderStatusCanceled,
	},
	ActionShip: {
		From: []model.OrderStatus{model.OrderStatusCompleted},
		To:   model.OrderStatusShipped,
	},
	ActionDelete: {
		From: []model.OrderStatus{
			model.OrderStatusDraft, model.OrderStatusConfirmed,
			model.OrderStatusAssignedToWarehouse, model.OrderStatusPendingRevision,
		},
	},
}

// Allowed reports whether the actor's role may perform the action.
// Top-level management passes every gate.
func Allowed(actor model.Actor, action Action) bool {
	if actor.IsTopLevel() {
		return true
	}
	for _, r := range roleTable[action] {
		if r == actor.Role {
			return true
		}
	}
	return false
}

// Next returns the status an order in from ends up in after action.
// ok is false when the action is illegal from that status.
func Next(from model.OrderStatus, action Action) (model.OrderStatus, bool) {
	tr, found := transitionTable[action]
	if !found {
		return "", false
	}
	for _, s := range tr.From {
		if s == from {
			if tr.To == "" {
				return from, true
			}
			return tr.To, true
		}
	}
	return "", false
}

// InitialStatus is the status a new order starts in. Roles with create
// authority confirm on creation unless they ask for a draft.
func InitialStatus(draft bool) model.OrderStatus {
	if draft {
		return model.OrderStatusDraft
	}
	return model.OrderStatusConfirmed
}

// Actions lists the actions the actor may currently take on an order in
// status. Ownership checks are left to the caller.
func Actions(actor model.Actor, status model.OrderStatus) []Action {
	var out []Action
	for _, a := range orderedActions {
		if !Allowed(actor, a) {
			continue
		}
		if _, ok := Next(status, a); ok {
			out = append(out, a)
		}
	}
	return out
}

var orderedActions = []Action{
	ActionEdit,
	ActionAssignWarehouse,
	ActionAssignPicker,
	ActionStartPicking,
	ActionPickItem,
	ActionComplete,
	ActionRequestRevision,
	ActionCancel,
	ActionShip,
	ActionDelete,
}
