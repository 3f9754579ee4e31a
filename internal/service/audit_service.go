package service

import (
	"context"
	"time"

	"orderflow/internal/model"
	"orderflow/internal/repository"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	ActorID    string `json:"actor_id"`
	ActorName  string `json:"actor_name"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, actor model.Actor, filter repository.AuditFilter, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

// GetAuditLogs pages through the trail. Only top-level management reads it.
func (s *auditService) GetAuditLogs(ctx context.Context, actor model.Actor, filter repository.AuditFilter, page, limit int) ([]AuditLogResponse, int64, error) {
	if !actor.IsTopLevel() {
		return nil, 0, permissionf("audit trail is restricted to top-level management")
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	logs, total, err := s.auditRepo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, classify(err, "audit log")
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		actorName := l.ActorName
		if actorName == "" {
			actorName = "System"
		}
		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			ActorID:    l.ActorID,
			ActorName:  actorName,
			Action:     l.Action,
			EntityID:   l.EntityID,
			FromStatus: l.FromStatus,
			ToStatus:   l.ToStatus,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return res, total, nil
}
