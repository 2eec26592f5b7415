package service

import (
	"context"
	"fmt"
	"log/slog"

	"lexpost/internal/apperr"
	"lexpost/internal/domain"
	"lexpost/internal/models"
	"lexpost/internal/repository"
)

// NotificationService persists user notices and pushes them over the event stream.
type NotificationService struct {
	repo   *repository.NotificationRepository
	events EventPublisher
	log    *slog.Logger
}

func NewNotificationService(repo *repository.NotificationRepository, events EventPublisher, log *slog.Logger) *NotificationService {
	return &NotificationService{repo: repo, events: events, log: log}
}

// Notify stores n for its user and pushes it on the user's event stream.
func (s *NotificationService) Notify(ctx context.Context, n *models.Notification) error {
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	publish(ctx, s.events, newEvent(domain.EventNotification, n.ID, 1, n.UserID, false, n))
	return nil
}

// notify is for best-effort notices after a commit; failures are logged only.
func (s *NotificationService) notify(ctx context.Context, n *models.Notification) {
	if s == nil {
		return
	}
	if err := s.Notify(ctx, n); err != nil {
		s.log.Warn("failed to store notification", "user_id", n.UserID, "kind", n.Kind, "error", err)
	}
}

func (s *NotificationService) NotifyLetterCompleted(ctx context.Context, l *models.Letter) {
	s.notify(ctx, &models.Notification{
		UserID:   l.UserID,
		Kind:     domain.NotifLetterCompleted,
		Title:    "Letter ready",
		Body:     fmt.Sprintf("Your letter %q is ready.", l.Title),
		LetterID: &l.ID,
	})
}

func (s *NotificationService) NotifyLetterCancelled(ctx context.Context, l *models.Letter) {
	s.notify(ctx, &models.Notification{
		UserID:   l.UserID,
		Kind:     domain.NotifLetterCancelled,
		Title:    "Letter cancelled",
		Body:     fmt.Sprintf("Your letter %q was cancelled.", l.Title),
		LetterID: &l.ID,
	})
}

func (s *NotificationService) NotifyCommissionEarned(ctx context.Context, employeeID uint, commissionCents int64, subscriptionID uint) {
	s.notify(ctx, &models.Notification{
		UserID:         employeeID,
		Kind:           domain.NotifCommissionEarned,
		Title:          "Commission earned",
		Body:           "You earned " + domain.FormatCents(commissionCents) + " from a referral.",
		SubscriptionID: &subscriptionID,
		AmountCents:    commissionCents,
	})
}

func (s *NotificationService) NotifySubscription(ctx context.Context, sub *models.Subscription) {
	s.notify(ctx, &models.Notification{
		UserID:         sub.UserID,
		Kind:           domain.NotifSubscription,
		Title:          "Subscription updated",
		Body:           fmt.Sprintf("Your %s plan is now %s.", sub.PlanType, sub.Status),
		SubscriptionID: &sub.ID,
		AmountCents:    sub.AmountCents,
	})
}

// List returns a page of the user's notifications, newest first, and the unread total.
func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, int64, error) {
	list, err := s.repo.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return list, unread, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	ok, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("notification %d not found", id)
	}
	return nil
}
