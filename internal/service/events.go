package service

import (
	"context"

	"github.com/google/uuid"

	"lexpost/internal/domain"
)

// EventPublisher fans committed changes out to connected dashboards.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.ChangeEvent)
}

// Actor is the verified caller of a service operation.
type Actor struct {
	ID   uint
	Role domain.Role
}

func newEvent(typ string, entityID uint, version int64, ownerID uint, staff bool, payload any) domain.ChangeEvent {
	return domain.ChangeEvent{
		ID:           uuid.NewString(),
		Type:         typ,
		EntityID:     entityID,
		Version:      version,
		OwnerID:      ownerID,
		StaffVisible: staff,
		Payload:      payload,
	}
}

func publish(ctx context.Context, p EventPublisher, ev domain.ChangeEvent) {
	if p == nil {
		return
	}
	p.Publish(ctx, ev)
}
