package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"orderflow/internal/fulfillment"
	"orderflow/internal/model"
	"orderflow/internal/policy"
	"orderflow/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DTOs
type CreateOrderRequest struct {
	Items    []model.OrderItem  `json:"items"`
	Customer model.CustomerInfo `json:"customer"`
	Draft    bool               `json:"draft"`
}

// UpdateOrderRequest is an edit-save. Nil fields are left unchanged.
// ExpectedVersion, when non-zero, must match the stored version.
type UpdateOrderRequest struct {
	Items           []model.OrderItem   `json:"items"`
	Customer        *model.CustomerInfo `json:"customer"`
	KeepDraft       bool                `json:"keep_draft"`
	ExpectedVersion int                 `json:"expected_version"`
}

type ListOrdersQuery struct {
	Status model.OrderStatus
	Page   int
	Limit  int
}

// OrderDetail is an order with the actions its viewer may take next
type OrderDetail struct {
	*model.Order
	Actions []policy.Action `json:"actions"`
}

type OrderService interface {
	CreateOrder(ctx context.Context, actor model.Actor, req CreateOrderRequest) (*model.Order, error)
	UpdateOrder(ctx context.Context, actor model.Actor, id uuid.UUID, req UpdateOrderRequest) (*model.Order, error)
	DeleteOrder(ctx context.Context, actor model.Actor, id uuid.UUID, expectedVersion int) error
	CancelOrder(ctx context.Context, actor model.Actor, id uuid.UUID, expectedVersion int) (*model.Order, error)
	StartPicking(ctx context.Context, actor model.Actor, id uuid.UUID, expectedVersion int) (*model.Order, error)
	MarkItemPicked(ctx context.Context, actor model.Actor, id uuid.UUID, index int, picked bool, expectedVersion int) (*model.Order, error)
	CompleteOrder(ctx context.Context, actor model.Actor, id uuid.UUID, expectedVersion int) (*model.Order, error)
	ReportRevision(ctx context.Context, actor model.Actor, id uuid.UUID, note string, expectedVersion int) (*model.Order, error)
	ShipOrder(ctx context.Context, actor model.Actor, id uuid.UUID, expectedVersion int) (*model.Order, error)
	GetOrder(ctx context.Context, actor model.Actor, id uuid.UUID) (*OrderDetail, error)
	ListOrders(ctx context.Context, actor model.Actor, q ListOrdersQuery) ([]model.Order, int64, error)
	Stats(ctx context.Context, actor model.Actor) ([]repository.StatusCount, error)
}

// Workflow is the shared read-check-write machinery of every order
// mutation. Order and assignment services are both built on it.
type Workflow struct {
	orderRepo repository.OrderRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	views     ViewService
	notifier  *Notifier
	log       *zap.Logger
}

func NewWorkflow(
	orderRepo repository.OrderRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	views ViewService,
	notifier *Notifier,
	log *zap.Logger,
) *Workflow {
	return &Workflow{
		orderRepo: orderRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		views:     views,
		notifier:  notifier,
		log:       log,
	}
}

type orderService struct {
	*Workflow
	executor *fulfillment.Executor
}

func NewOrderService(wf *Workflow, executor *fulfillment.Executor) OrderService {
	return &orderService{Workflow: wf, executor: executor}
}

func validateItems(items []model.OrderItem) (model.OrderItems, error) {
	if len(items) == 0 {
		return nil, validationf("items must not be empty")
	}
	out := make(model.OrderItems, len(items))
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return nil, validationf("item %d: %v", i, err)
		}
		it.Picked = false
		out[i] = it
	}
	return out, nil
}

func (s *orderService) CreateOrder(ctx context.Context, actor model.Actor, req CreateOrderRequest) (*model.Order, error) {
	if !policy.Allowed(actor, policy.ActionCreate) {
		return nil, permissionf("role %s may not create orders", actor.Role)
	}
	items, err := validateItems(req.Items)
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		Status:          policy.InitialStatus(req.Draft),
		CreatorID:       actor.UID,
		CreatorName:     actor.Name,
		ManagerID:       actor.ManagerIDValue(),
		CustomerName:    strings.TrimSpace(req.Customer.Name),
		CustomerPhone:   strings.TrimSpace(req.Customer.Phone),
		CustomerAddress: strings.TrimSpace(req.Customer.Address),
	}
	order.SetItems(items)

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.orderRepo.Create(txCtx, order); err != nil {
			return err
		}
		return s.writeAudit(txCtx, actor, policy.ActionCreate, order.ID, "", order.Status, req)
	})
	if err != nil {
		return nil, classify(err, "order")
	}

	s.log.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("status", string(order.Status)),
		zap.String("actor", actor.UID))
	s.notifier.OrderChanged(ctx, actor, policy.ActionCreate, "", order)
	return order, nil
}

func (s *orderService) UpdateOrder(ctx context.Context, actor model.Actor, id uuid.UUID, req UpdateOrderRequest) (*model.Order, error) {
	var items model.OrderItems
	if req.Items != nil {
		validated, err := validateItems(req.Items)
		if err != nil {
			return nil, err
		}
		items = validated
	}

	return s.transition(ctx, actor, id, req.ExpectedVersion, policy.ActionEdit,
		func(o *model.Order, to model.OrderStatus) (model.OrderStatus, map[string]interface{}, error) {
			if req.KeepDraft && o.Status == model.OrderStatusDraft {
				to = model.OrderStatusDraft
			}
			if items == nil {
				items = make(model.OrderItems, len(o.Items))
				for i, it := range o.Items {
					it.Picked = false
					items[i] = it
				}
			}
			if len(items) == 0 {
				return "", nil, validationf("items must not be empty")
			}

			fields := map[string]interface{}{
				"items":         items,
				"total_amount":  items.Total(),
				"revision_note": "",
			}
			if req.Customer != nil {
				fields["customer_name"] = strings.TrimSpace(req.Customer.Name)
				fields["customer_phone"] = strings.TrimSpace(req.Customer.Phone)
				fields["customer_address"] = strings.TrimSpace(req.Customer.Address)
			}
			return to, fields, nil
		}, req)
}

func (s *orderService) DeleteOrder(ctx context.Context, actor model.Actor, id uuid.UUID, expectedVersion int) error {
	if !policy.Allowed(actor, policy.ActionDelete) {
		return permissionf("role %s may not delete orders", actor.Role)
	}

	var deleted *model.Order
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.load(txCtx, actor, id, expectedVersion, policy.ActionDelete)
		if err != nil {
			return err
		}
		if _, ok := policy.Next(order.Status, policy.ActionDelete); !ok {
			return conflictf("order in status %s cannot be deleted", order.Status)
		}
		if err := s.orderRepo.DeleteVersioned(txCtx, id, order.Version); err != nil {
			return err
		}
		deleted = order
		return s.writeAudit(txCtx, actor, policy.ActionDelete, id, order.Status, "", nil)
	})
	if err != nil {
		return classify(err, "order")
	}

	s.log.Info("Order deleted", zap.String("order_id", id.String()), zap.String("actor", actor.UID))
	s.notifier.OrderChanged(ctx, actor, policy.ActionDelete, deleted.Status, deleted)
	return nil
}

func (s *orderService) CancelOrder(ctx context.Context, actor model.Actor, id uuid.UUID, expectedVersion int) (*model.Order, error) {
	return s.transition(ctx, actor, id, expectedVersion, policy.ActionCancel, keepFields, nil)
}

func (s *orderService) StartPicking(ctx context.Context, actor model.Actor, id uuid.UUID, expectedVersion int) (*model.Order, error) {
	return s.transition(ctx, actor, id, expectedVersion, policy.ActionStartPicking, keepFields, nil)
}

func (s *orderService) MarkItemPicked(ctx context.Context, actor model.Actor, id uuid.UUID, index int, picked bool, expectedVersion int) (*model.Order, error) {
	details := map[string]interface{}{"index": index, "picked": picked}
	return s.transition(ctx, actor, id, expectedVersion, policy.ActionPickItem,
		func(o *model.Order, to model.OrderStatus) (model.OrderStatus, map[string]interface{}, error) {
			if index < 0 || index >= len(o.Items) {
				return "", nil, validationf("item index %d out of range", index)
			}
			items := make(model.OrderItems, len(o.Items))
			copy(items, o.Items)
			items[index].Picked = picked
			return to, map[string]interface{}{"items": items}, nil
		}, details)
}

func (s *orderService) CompleteOrder(ctx context.Context, actor model.Actor, id uuid.UUID, expectedVersion int) (*model.Order, error) {
	if !policy.Allowed(actor, policy.ActionComplete) {
		return nil, permissionf("role %s may not complete orders", actor.Role)
	}

	order, err := s.load(ctx, actor, id, expectedVersion, policy.ActionComplete)
	if err != nil {
		return nil, classify(err, "order")
	}
	if _, ok := policy.Next(order.Status, policy.ActionComplete); !ok {
		return nil, conflictf("order in status %s cannot be completed", order.Status)
	}
	if !order.Items.AllPicked() {
		return nil, incomplete(order)
	}

	res, err := s.executor.Complete(ctx, actor, id, order.Version)
	if err != nil {
		s.log.Warn("Order completion failed", zap.String("order_id", id.String()), zap.Error(err))
		return nil, classify(err, "order")
	}

	s.log.Info("Order completed", zap.String("order_id", id.String()), zap.String("actor", actor.UID))
	s.notifier.OrderChanged(ctx, actor, policy.ActionComplete, res.From, res.Order)

	changes := make([]StockChange, 0, len(res.Movements))
	for _, mv := range res.Movements {
		changes = append(changes, StockChange{ProductID: mv.Key.ProductID, Size: mv.Key.Size, Color: mv.Key.Color, Quantity: mv.After})
	}
	s.notifier.StockChanged(changes)
	return res.Order, nil
}

func incomplete(o *model.Order) error {
	var missing int
	for _, it := range o.Items {
		if !it.Picked {
			missing++
		}
	}
	return fmt.Errorf("%w: %d of %d items not picked", ErrIncomplete, missing, len(o.Items))
}

func (s *orderService) ReportRevision(ctx context.Context, actor model.Actor, id uuid.UUID, note string, expectedVersion int) (*model.Order, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, validationf("revision note must not be empty")
	}
	return s.transition(ctx, actor, id, expectedVersion, policy.ActionRequestRevision,
		func(_ *model.Order, to model.OrderStatus) (model.OrderStatus, map[string]interface{}, error) {
			return to, map[string]interface{}{"revision_note": note}, nil
		}, map[string]string{"note": note})
}

func (s *orderService) ShipOrder(ctx context.Context, actor model.Actor, id uuid.UUID, expectedVersion int) (*model.Order, error) {
	return s.transition(ctx, actor, id, expectedVersion, policy.ActionShip, keepFields, nil)
}

func (s *orderService) GetOrder(ctx context.Context, actor model.Actor, id uuid.UUID) (*OrderDetail, error) {
	if !policy.Allowed(actor, policy.ActionView) {
		return nil, permissionf("role %s may not view orders", actor.Role)
	}
	order, err := s.load(ctx, actor, id, 0, policy.ActionView)
	if err != nil {
		return nil, classify(err, "order")
	}

	detail := &OrderDetail{Order: order, Actions: []policy.Action{}}
	for _, a := range policy.Actions(actor, order.Status) {
		ok, err := s.views.CanAct(ctx, actor, a, order)
		if err != nil {
			return nil, classify(err, "order")
		}
		if ok {
			detail.Actions = append(detail.Actions, a)
		}
	}
	return detail, nil
}

func (s *orderService) ListOrders(ctx context.Context, actor model.Actor, q ListOrdersQuery) ([]model.Order, int64, error) {
	if !policy.Allowed(actor, policy.ActionView) {
		return nil, 0, permissionf("role %s may not view orders", actor.Role)
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}

	filter, err := s.views.FilterFor(ctx, actor)
	if err != nil {
		return nil, 0, err
	}
	if q.Status != "" {
		if !q.Status.Valid() {
			return nil, 0, validationf("unknown status %q", q.Status)
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, q.Status) {
			return []model.Order{}, 0, nil
		}
		filter.Statuses = []model.OrderStatus{q.Status}
	}

	orders, total, err := s.orderRepo.List(ctx, filter, q.Page, q.Limit)
	if err != nil {
		return nil, 0, classify(err, "order")
	}
	return orders, total, nil
}

func (s *orderService) Stats(ctx context.Context, actor model.Actor) ([]repository.StatusCount, error) {
	if !policy.Allowed(actor, policy.ActionView) {
		return nil, permissionf("role %s may not view orders", actor.Role)
	}
	filter, err := s.views.FilterFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	rows, err := s.orderRepo.CountByStatus(ctx, filter)
	if err != nil {
		return nil, classify(err, "order")
	}
	return rows, nil
}

// mutation computes the target status and the fields to write for a legal
// transition. to is the policy table's target.
type mutation func(o *model.Order, to model.OrderStatus) (model.OrderStatus, map[string]interface{}, error)

func keepFields(_ *model.Order, to model.OrderStatus) (model.OrderStatus, map[string]interface{}, error) {
	return to, map[string]interface{}{}, nil
}

// transition is the common read-check-write path: role gate, custody,
// legal source status, then a versioned write and audit row in one
// transaction. Notifications go out after commit.
func (s *Workflow) transition(ctx context.Context, actor model.Actor, id uuid.UUID, expectedVersion int, action policy.Action, mutate mutation, details interface{}) (*model.Order, error) {
	if !policy.Allowed(actor, action) {
		return nil, permissionf("role %s may not perform %s", actor.Role, action)
	}

	var (
		updated *model.Order
		from    model.OrderStatus
	)
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.load(txCtx, actor, id, expectedVersion, action)
		if err != nil {
			return err
		}
		from = order.Status

		to, ok := policy.Next(order.Status, action)
		if !ok {
			return conflictf("%s is not allowed from status %s", action, order.Status)
		}
		to, fields, err := mutate(order, to)
		if err != nil {
			return err
		}
		if to != order.Status {
			fields["status"] = to
		}

		if err := s.orderRepo.UpdateVersioned(txCtx, id, order.Version, fields); err != nil {
			return err
		}
		if err := s.writeAudit(txCtx, actor, action, id, from, to, details); err != nil {
			return err
		}

		updated, err = s.orderRepo.FindByID(txCtx, id)
		return err
	})
	if err != nil {
		return nil, classify(err, "order")
	}

	if from != updated.Status {
		s.log.Info("Order status changed",
			zap.String("order_id", id.String()),
			zap.String("action", string(action)),
			zap.String("from", string(from)),
			zap.String("to", string(updated.Status)),
			zap.String("actor", actor.UID))
	}
	s.notifier.OrderChanged(ctx, actor, action, from, updated)
	return updated, nil
}

// load reads the order and checks version and custody for action
func (s *Workflow) load(ctx context.Context, actor model.Actor, id uuid.UUID, expectedVersion int, action policy.Action) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.views.CanAct(ctx, actor, action, order)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, permissionf("order %s is not in your custody", id)
	}
	if expectedVersion > 0 && order.Version != expectedVersion {
		return nil, conflictf("order %s is at version %d, expected %d", id, order.Version, expectedVersion)
	}
	return order, nil
}

func (s *Workflow) writeAudit(ctx context.Context, actor model.Actor, action policy.Action, id uuid.UUID, from, to model.OrderStatus, details interface{}) error {
	var payload string
	if details != nil {
		b, _ := json.Marshal(details)
		payload = string(b)
	}
	return s.auditRepo.Log(ctx, &model.AuditLog{
		ActorID:    actor.UID,
		ActorName:  actor.Name,
		Action:     string(action),
		EntityID:   id.String(),
		FromStatus: string(from),
		ToStatus:   string(to),
		Details:    payload,
	})
}

func containsStatus(list []model.OrderStatus, s model.OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
