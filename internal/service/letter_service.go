package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"lexpost/internal/apperr"
	"lexpost/internal/authz"
	"lexpost/internal/domain"
	"lexpost/internal/models"
	"lexpost/internal/repository"
	"lexpost/pkg/cloudinary"
	"lexpost/pkg/generator"
)

// LetterGenerator drafts a letter body. Implemented by generator.Client.
type LetterGenerator interface {
	GenerateLetter(ctx context.Context, req generator.Request) (string, error)
}

type LetterOptions struct {
	RequireSubscription bool
	AttachmentFolder    string
}

type LetterDeps struct {
	Tx          *repository.TxManager
	Letters     *repository.LetterRepository
	Subs        *repository.SubscriptionRepository
	Authz       *authz.Authorizer
	Generator   LetterGenerator
	Renderer    *Renderer
	Email       EmailSender
	Notifier    *NotificationService
	Events      EventPublisher
	Attachments cloudinary.Client
	Log         *slog.Logger
}

// LetterService owns the letter lifecycle: both status tracks, their history and the
// generation pipeline. Every mutation is version-checked and commits with its history rows.
type LetterService struct {
	LetterDeps
	opts LetterOptions
	now  func() time.Time
}

func NewLetterService(deps LetterDeps, opts LetterOptions) *LetterService {
	return &LetterService{LetterDeps: deps, opts: opts, now: time.Now}
}

// LetterInput is the request-intake form.
type LetterInput struct {
	Title             string          `json:"title"`
	LetterType        string          `json:"letter_type"`
	Description       string          `json:"description"`
	DesiredResolution string          `json:"desired_resolution"`
	SenderName        string          `json:"sender_name"`
	SenderAddress     string          `json:"sender_address"`
	SenderEmail       string          `json:"sender_email"`
	RecipientName     string          `json:"recipient_name"`
	RecipientAddress  string          `json:"recipient_address"`
	RecipientEmail    string          `json:"recipient_email"`
	Priority          domain.Priority `json:"priority"`
}

// normalize trims fields and fills defaults. A draft only needs a title.
func (in *LetterInput) normalize(draft bool) error {
	for _, f := range []*string{
		&in.Title, &in.LetterType, &in.Description, &in.DesiredResolution,
		&in.SenderName, &in.SenderAddress, &in.SenderEmail,
		&in.RecipientName, &in.RecipientAddress, &in.RecipientEmail,
	} {
		*f = strings.TrimSpace(*f)
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if !in.Priority.Valid() {
		return apperr.Validation("unknown priority %q", in.Priority)
	}
	if in.LetterType == "" {
		in.LetterType = domain.LetterTypeGeneral
	}
	if !validLetterType(in.LetterType) {
		return apperr.Validation("unknown letter type %q", in.LetterType)
	}

	var missing []string
	if in.Title == "" {
		missing = append(missing, "title")
	}
	if !draft {
		if in.RecipientName == "" {
			missing = append(missing, "recipient_name")
		}
		if in.RecipientAddress == "" {
			missing = append(missing, "recipient_address")
		}
		if in.SenderName == "" {
			missing = append(missing, "sender_name")
		}
		if in.Description == "" {
			missing = append(missing, "description")
		}
	}
	if len(missing) > 0 {
		return apperr.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func validLetterType(t string) bool {
	for _, lt := range domain.LetterTypes {
		if lt == t {
			return true
		}
	}
	return false
}

func (in *LetterInput) toLetter(userID uint) *models.Letter {
	return &models.Letter{
		UserID:            userID,
		Title:             in.Title,
		LetterType:        in.LetterType,
		Description:       in.Description,
		DesiredResolution: in.DesiredResolution,
		SenderName:        in.SenderName,
		SenderAddress:     in.SenderAddress,
		SenderEmail:       in.SenderEmail,
		RecipientName:     in.RecipientName,
		RecipientAddress:  in.RecipientAddress,
		RecipientEmail:    in.RecipientEmail,
		Priority:          in.Priority,
		TimelineStatus:    domain.TimelineReceived,
	}
}

func inputOf(l *models.Letter) LetterInput {
	return LetterInput{
		Title:             l.Title,
		LetterType:        l.LetterType,
		Description:       l.Description,
		DesiredResolution: l.DesiredResolution,
		SenderName:        l.SenderName,
		SenderAddress:     l.SenderAddress,
		SenderEmail:       l.SenderEmail,
		RecipientName:     l.RecipientName,
		RecipientAddress:  l.RecipientAddress,
		RecipientEmail:    l.RecipientEmail,
		Priority:          l.Priority,
	}
}

// Submit creates a letter already submitted: status submitted, timeline received,
// and one history entry draft -> submitted.
func (s *LetterService) Submit(ctx context.Context, a Actor, in LetterInput) (*models.Letter, error) {
	if err := in.normalize(false); err != nil {
		return nil, err
	}
	l := in.toLetter(a.ID)
	l.Status = domain.StatusSubmitted
	err := s.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.consumeQuota(ctx, a.ID); err != nil {
			return err
		}
		if err := s.Letters.Create(ctx, l); err != nil {
			return err
		}
		return s.Letters.AppendHistory(ctx, &models.StatusHistoryEntry{
			LetterID:  l.ID,
			OldStatus: domain.StatusDraft,
			NewStatus: domain.StatusSubmitted,
			ActorID:   a.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	lettersSubmittedTotal.Inc()
	letterTransitionsTotal.WithLabelValues(string(domain.StatusSubmitted)).Inc()
	s.Log.Info("letter submitted", "letter_id", l.ID, "user_id", a.ID, "letter_type", l.LetterType)
	s.publishLetter(ctx, domain.EventLetterCreated, l)
	return l, nil
}

// SaveDraft stores an incomplete letter. Drafts have no history until submitted.
func (s *LetterService) SaveDraft(ctx context.Context, a Actor, in LetterInput) (*models.Letter, error) {
	if err := in.normalize(true); err != nil {
		return nil, err
	}
	l := in.toLetter(a.ID)
	l.Status = domain.StatusDraft
	if err := s.Letters.Create(ctx, l); err != nil {
		return nil, err
	}
	s.publishLetter(ctx, domain.EventLetterCreated, l)
	return l, nil
}

func (s *LetterService) consumeQuota(ctx context.Context, userID uint) error {
	if !s.opts.RequireSubscription {
		return nil
	}
	sub, err := s.Subs.GetActiveByUser(ctx, userID)
	if err != nil {
		return err
	}
	if sub == nil {
		return apperr.Authorization("an active subscription is required to submit letters")
	}
	ok, err := s.Subs.ConsumeLetter(ctx, sub.ID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Authorization("no letters remaining in the current billing period")
	}
	return nil
}

type letterChange struct {
	fields  map[string]any
	history []models.StatusHistoryEntry
	moved   []domain.LetterStatus
}

func (c *letterChange) status(l *models.Letter, to domain.LetterStatus, actorID uint, note string) {
	c.history = append(c.history, models.StatusHistoryEntry{
		LetterID:  l.ID,
		OldStatus: l.Status,
		NewStatus: to,
		ActorID:   actorID,
		Note:      note,
	})
	c.moved = append(c.moved, to)
	c.fields["status"] = to
	l.Status = to
}

func (c *letterChange) timeline(l *models.Letter, to domain.TimelineStatus) {
	c.fields["timeline_status"] = to
	l.TimelineStatus = to
}

type accessCheck func(l *models.Letter) error

func (s *LetterService) ownerOnly(a Actor) accessCheck {
	return func(l *models.Letter) error {
		if l.UserID != a.ID {
			return apperr.Authorization("only the owner may change letter %d", l.ID)
		}
		return nil
	}
}

func (s *LetterService) ownerOr(a Actor, c authz.Capability) accessCheck {
	return func(l *models.Letter) error {
		if l.UserID == a.ID || s.Authz.Can(a.Role, c) {
			return nil
		}
		return apperr.Authorization("not allowed to change letter %d", l.ID)
	}
}

func (s *LetterService) requires(a Actor, c authz.Capability) accessCheck {
	return func(l *models.Letter) error {
		if s.Authz.Can(a.Role, c) {
			return nil
		}
		return apperr.Authorization("role %s may not %s letters", a.Role, c.Action)
	}
}

// mutate applies fn to a fresh copy of the letter and persists the change with its history
// in one transaction. A concurrent write since the read fails the whole mutation.
func (s *LetterService) mutate(ctx context.Context, id uint, allow accessCheck, fn func(ctx context.Context, l *models.Letter, ch *letterChange) error) (*models.Letter, *letterChange, error) {
	var out *models.Letter
	ch := &letterChange{fields: map[string]any{}}
	err := s.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.Letters.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := allow(l); err != nil {
			return err
		}
		if err := fn(ctx, l, ch); err != nil {
			return err
		}
		if len(ch.fields) == 0 {
			out = l
			return nil
		}
		if err := s.Letters.UpdateVersioned(ctx, l, ch.fields); err != nil {
			if errors.Is(err, repository.ErrStaleVersion) {
				return apperr.InvalidState("letter %d was changed by someone else; reload and retry", id)
			}
			return err
		}
		for i := range ch.history {
			if err := s.Letters.AppendHistory(ctx, &ch.history[i]); err != nil {
				return err
			}
		}
		out, err = s.Letters.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if len(ch.fields) > 0 {
		for _, to := range ch.moved {
			letterTransitionsTotal.WithLabelValues(string(to)).Inc()
		}
		s.publishLetter(ctx, domain.EventLetterUpdated, out)
	}
	return out, ch, nil
}

// SubmitDraft moves the owner's draft to submitted once the required fields are filled.
func (s *LetterService) SubmitDraft(ctx context.Context, a Actor, id uint) (*models.Letter, error) {
	l, _, err := s.mutate(ctx, id, s.ownerOnly(a), func(ctx context.Context, l *models.Letter, ch *letterChange) error {
		if l.Status != domain.StatusDraft {
			return apperr.InvalidState("letter %d is %s, not a draft", l.ID, l.Status)
		}
		in := inputOf(l)
		if err := in.normalize(false); err != nil {
			return err
		}
		if err := s.consumeQuota(ctx, a.ID); err != nil {
			return err
		}
		ch.status(l, domain.StatusSubmitted, a.ID, "")
		return nil
	})
	if err == nil {
		lettersSubmittedTotal.Inc()
	}
	return l, err
}

// AdvanceToReview moves timeline received -> under_review, and status submitted -> in_review
// unless staff already moved the status forward.
func (s *LetterService) AdvanceToReview(ctx context.Context, a Actor, id uint) (*models.Letter, error) {
	l, _, err := s.mutate(ctx, id, s.ownerOr(a, authz.LetterGenerateAny), func(_ context.Context, l *models.Letter, ch *letterChange) error {
		if l.Status.Terminal() {
			return apperr.InvalidState("letter %d is %s", l.ID, l.Status)
		}
		if l.TimelineStatus != domain.TimelineReceived {
			return apperr.InvalidState("letter %d is not awaiting review (timeline %s)", l.ID, l.TimelineStatus)
		}
		switch l.Status {
		case domain.StatusDraft:
			return apperr.InvalidState("letter %d has not been submitted", l.ID)
		case domain.StatusSubmitted:
			ch.status(l, domain.StatusInReview, a.ID, "")
		}
		ch.timeline(l, domain.TimelineUnderReview)
		return nil
	})
	return l, err
}

// BeginGeneration marks the timeline generating. Status is unchanged.
func (s *LetterService) BeginGeneration(ctx context.Context, a Actor, id uint) (*models.Letter, error) {
	l, _, err := s.mutate(ctx, id, s.ownerOr(a, authz.LetterGenerateAny), func(_ context.Context, l *models.Letter, ch *letterChange) error {
		if l.Status.Terminal() {
			return apperr.InvalidState("letter %d is %s", l.ID, l.Status)
		}
		if l.TimelineStatus != domain.TimelineUnderReview {
			return apperr.InvalidState("letter %d cannot start generating from timeline %s", l.ID, l.TimelineStatus)
		}
		ch.timeline(l, domain.TimelineGenerating)
		return nil
	})
	return l, err
}

// CompleteGeneration stores the generated text, walks status forward to completed
// (one history entry per hop) and posts the timeline. Empty text changes nothing.
func (s *LetterService) CompleteGeneration(ctx context.Context, a Actor, id uint, text string) (*models.Letter, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Generation("generated text is empty")
	}
	l, _, err := s.mutate(ctx, id, s.ownerOr(a, authz.LetterGenerateAny), func(_ context.Context, l *models.Letter, ch *letterChange) error {
		if l.Status.Terminal() {
			return apperr.InvalidState("letter %d is %s", l.ID, l.Status)
		}
		if l.TimelineStatus != domain.TimelineGenerating {
			return apperr.InvalidState("letter %d is not generating (timeline %s)", l.ID, l.TimelineStatus)
		}
		hops, ok := domain.PathTo(l.Status, domain.StatusCompleted)
		if !ok {
			return apperr.InvalidState("letter %d cannot be completed from %s", l.ID, l.Status)
		}
		l.AIContent = &text
		html, err := s.Renderer.RenderLetter(l, s.now())
		if err != nil {
			return err
		}
		ch.fields["ai_content"] = text
		ch.fields["archived_html"] = html
		for _, hop := range hops {
			ch.status(l, hop, a.ID, "generation completed")
		}
		ch.timeline(l, domain.TimelinePosted)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("letter completed", "letter_id", l.ID, "user_id", l.UserID)
	s.Notifier.NotifyLetterCompleted(ctx, l)
	return l, nil
}

// Generate runs the pipeline from wherever the letter currently is. A failed AI call leaves
// the letter generating so calling Generate again retries.
func (s *LetterService) Generate(ctx context.Context, a Actor, id uint) (*models.Letter, error) {
	l, err := s.Letters.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ownerOr(a, authz.LetterGenerateAny)(l); err != nil {
		return nil, err
	}
	if l.Status.Terminal() || l.TimelineStatus == domain.TimelinePosted {
		return nil, apperr.InvalidState("letter %d has already been %s", l.ID, l.Status)
	}
	if s.Generator == nil {
		return nil, apperr.Generation("letter generation is not configured")
	}
	if l.TimelineStatus == domain.TimelineReceived {
		if l, err = s.AdvanceToReview(ctx, a, id); err != nil {
			return nil, err
		}
	}
	if l.TimelineStatus == domain.TimelineUnderReview {
		if l, err = s.BeginGeneration(ctx, a, id); err != nil {
			return nil, err
		}
	}

	text, err := s.Generator.GenerateLetter(ctx, generator.Request{
		Title:             l.Title,
		LetterType:        l.LetterType,
		Priority:          string(l.Priority),
		SenderName:        l.SenderName,
		SenderAddress:     l.SenderAddress,
		RecipientName:     l.RecipientName,
		RecipientAddress:  l.RecipientAddress,
		Matter:            l.Description,
		DesiredResolution: l.DesiredResolution,
	})
	if err != nil {
		letterGenerationsTotal.WithLabelValues("error").Inc()
		s.Log.Warn("letter generation failed", "letter_id", id, "error", err)
		return nil, apperr.Generation("letter generation failed; try again").Wrap(err)
	}
	out, err := s.CompleteGeneration(ctx, a, id, text)
	if err != nil {
		letterGenerationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	letterGenerationsTotal.WithLabelValues("ok").Inc()
	return out, nil
}

// Transition applies one allowed status edge on behalf of staff.
func (s *LetterService) Transition(ctx context.Context, a Actor, id uint, to domain.LetterStatus, note string) (*models.Letter, error) {
	if !to.Valid() {
		return nil, apperr.Validation("unknown status %q", to)
	}
	l, _, err := s.mutate(ctx, id, s.requires(a, authz.LetterTransition), func(_ context.Context, l *models.Letter, ch *letterChange) error {
		if !domain.CanTransition(l.Status, to) {
			return apperr.InvalidState("letter %d cannot move from %s to %s", l.ID, l.Status, to)
		}
		ch.status(l, to, a.ID, strings.TrimSpace(note))
		return nil
	})
	if err != nil {
		return nil, err
	}
	switch to {
	case domain.StatusCompleted:
		s.Notifier.NotifyLetterCompleted(ctx, l)
	case domain.StatusCancelled:
		s.Notifier.NotifyLetterCancelled(ctx, l)
	}
	return l, nil
}

// UpdateTimeline advances the customer-facing track by exactly one stage. No history is written.
func (s *LetterService) UpdateTimeline(ctx context.Context, a Actor, id uint, to domain.TimelineStatus) (*models.Letter, error) {
	if !to.Valid() {
		return nil, apperr.Validation("unknown timeline status %q", to)
	}
	l, _, err := s.mutate(ctx, id, s.requires(a, authz.LetterTimeline), func(_ context.Context, l *models.Letter, ch *letterChange) error {
		if !domain.CanAdvanceTimeline(l.TimelineStatus, to) {
			return apperr.InvalidState("letter %d timeline cannot move from %s to %s", l.ID, l.TimelineStatus, to)
		}
		ch.timeline(l, to)
		return nil
	})
	return l, err
}

// ReviewInput holds an admin's edits; nil fields are left unchanged.
type ReviewInput struct {
	FinalContent       *string    `json:"final_content"`
	AdminNotes         *string    `json:"admin_notes"`
	AssignedReviewerID *uint      `json:"assigned_reviewer_id"`
	DueDate            *time.Time `json:"due_date"`
}

func (s *LetterService) Review(ctx context.Context, a Actor, id uint, in ReviewInput) (*models.Letter, error) {
	if in.FinalContent == nil && in.AdminNotes == nil && in.AssignedReviewerID == nil && in.DueDate == nil {
		return nil, apperr.Validation("nothing to update")
	}
	l, _, err := s.mutate(ctx, id, s.requires(a, authz.LetterReview), func(_ context.Context, l *models.Letter, ch *letterChange) error {
		if l.Status == domain.StatusCancelled {
			return apperr.InvalidState("letter %d is cancelled", l.ID)
		}
		if in.AdminNotes != nil {
			ch.fields["admin_notes"] = *in.AdminNotes
		}
		if in.AssignedReviewerID != nil {
			ch.fields["assigned_reviewer_id"] = *in.AssignedReviewerID
		}
		if in.DueDate != nil {
			ch.fields["due_date"] = *in.DueDate
		}
		if in.FinalContent != nil {
			content := strings.TrimSpace(*in.FinalContent)
			l.FinalContent = &content
			ch.fields["final_content"] = content
			html, err := s.Renderer.RenderLetter(l, s.now())
			if err != nil {
				return err
			}
			ch.fields["archived_html"] = html
		}
		return nil
	})
	return l, err
}

// Cancel is allowed from any non-terminal status. The timeline keeps its last stage.
func (s *LetterService) Cancel(ctx context.Context, a Actor, id uint, note string) (*models.Letter, error) {
	l, _, err := s.mutate(ctx, id, s.ownerOr(a, authz.LetterCancelAny), func(_ context.Context, l *models.Letter, ch *letterChange) error {
		if l.Status.Terminal() {
			return apperr.InvalidState("letter %d is already %s", l.ID, l.Status)
		}
		ch.status(l, domain.StatusCancelled, a.ID, strings.TrimSpace(note))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if l.UserID != a.ID {
		s.Notifier.NotifyLetterCancelled(ctx, l)
	}
	return l, nil
}

// Delete removes the owner's letter with its history and attachments.
func (s *LetterService) Delete(ctx context.Context, a Actor, id uint) error {
	var deleted *models.Letter
	var attachments []models.LetterAttachment
	err := s.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.Letters.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.ownerOnly(a)(l); err != nil {
			return err
		}
		if attachments, err = s.Letters.ListAttachments(ctx, id); err != nil {
			return err
		}
		if err := s.Letters.Delete(ctx, id); err != nil {
			return err
		}
		deleted = l
		return nil
	})
	if err != nil {
		return err
	}
	for _, att := range attachments {
		if att.PublicID == "" || s.Attachments == nil {
			continue
		}
		if err := s.Attachments.Delete(ctx, att.PublicID); err != nil {
			s.Log.Warn("failed to delete stored attachment", "letter_id", id, "public_id", att.PublicID, "error", err)
		}
	}
	s.Log.Info("letter deleted", "letter_id", id, "user_id", a.ID)
	publish(ctx, s.Events, newEvent(domain.EventLetterDeleted, id, deleted.Version+1, deleted.UserID, true, map[string]any{"id": id}))
	return nil
}

// Get hides other users' letters behind NotFound unless the caller is staff.
func (s *LetterService) Get(ctx context.Context, a Actor, id uint) (*models.Letter, error) {
	l, err := s.Letters.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.UserID != a.ID && !s.Authz.Can(a.Role, authz.LetterReadAny) {
		return nil, apperr.NotFound("letter %d not found", id)
	}
	return l, nil
}

// List returns the caller's letters; staff see every letter.
func (s *LetterService) List(ctx context.Context, a Actor, status domain.LetterStatus, limit, offset int) ([]models.Letter, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperr.Validation("unknown status %q", status)
	}
	f := repository.LetterFilter{UserID: a.ID, Status: status, Limit: limit, Offset: offset}
	if s.Authz.Can(a.Role, authz.LetterReadAny) {
		f.UserID = 0
	}
	return s.Letters.List(ctx, f)
}

func (s *LetterService) History(ctx context.Context, a Actor, id uint) ([]models.StatusHistoryEntry, error) {
	if _, err := s.Get(ctx, a, id); err != nil {
		return nil, err
	}
	return s.Letters.ListHistory(ctx, id)
}

// RenderHTML returns the archived rendering, or renders the current body when none exists.
func (s *LetterService) RenderHTML(ctx context.Context, a Actor, id uint) (string, error) {
	l, err := s.Get(ctx, a, id)
	if err != nil {
		return "", err
	}
	if l.ArchivedHTML != "" && (l.FinalContent == nil || *l.FinalContent == "") {
		return l.ArchivedHTML, nil
	}
	if l.Body() == "" {
		return "", apperr.InvalidState("letter %d has no content yet", id)
	}
	return s.Renderer.RenderLetter(l, l.UpdatedAt)
}

// SendEmail mails the rendered letter to "to", or to the recipient on file.
func (s *LetterService) SendEmail(ctx context.Context, a Actor, id uint, to string) error {
	l, err := s.Get(ctx, a, id)
	if err != nil {
		return err
	}
	if l.Body() == "" {
		return apperr.InvalidState("letter %d has no content yet", id)
	}
	to = strings.TrimSpace(to)
	if to == "" {
		to = l.RecipientEmail
	}
	if to == "" {
		return apperr.Validation("no recipient email address")
	}
	html, err := s.RenderHTML(ctx, a, id)
	if err != nil {
		return err
	}
	if err := s.Email.Send(ctx, EmailMessage{
		To:       to,
		Subject:  l.Title,
		HTMLBody: html,
		TextBody: l.Body(),
	}); err != nil {
		s.Log.Error("letter email failed", "letter_id", id, "to", to, "error", err)
		return apperr.ExternalService("email delivery failed").Wrap(err)
	}
	s.Log.Info("letter emailed", "letter_id", id, "user_id", a.ID)
	return nil
}

// AddAttachment stores a supporting document for the letter.
func (s *LetterService) AddAttachment(ctx context.Context, a Actor, id uint, fileName string, size int64, file io.Reader) (*models.LetterAttachment, error) {
	l, err := s.Get(ctx, a, id)
	if err != nil {
		return nil, err
	}
	if err := s.ownerOr(a, authz.LetterReview)(l); err != nil {
		return nil, err
	}
	fileName = path.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." || fileName == "/" {
		return nil, apperr.Validation("file name is required")
	}
	publicID := fmt.Sprintf("letter-%d-%s", id, uuid.NewString())
	up, err := s.Attachments.UploadDocument(ctx, file, s.opts.AttachmentFolder, publicID)
	if err != nil {
		if errors.Is(err, cloudinary.ErrNotConfigured) {
			return nil, apperr.ExternalService("attachment storage is not configured").Wrap(err)
		}
		return nil, apperr.ExternalService("attachment upload failed").Wrap(err)
	}
	if up.Bytes == 0 {
		up.Bytes = size
	}
	att := &models.LetterAttachment{
		LetterID:   id,
		UploaderID: a.ID,
		FileName:   fileName,
		URL:        up.URL,
		PublicID:   up.PublicID,
		Bytes:      up.Bytes,
	}
	if err := s.Letters.AddAttachment(ctx, att); err != nil {
		return nil, err
	}
	return att, nil
}

func (s *LetterService) ListAttachments(ctx context.Context, a Actor, id uint) ([]models.LetterAttachment, error) {
	if _, err := s.Get(ctx, a, id); err != nil {
		return nil, err
	}
	return s.Letters.ListAttachments(ctx, id)
}

func (s *LetterService) publishLetter(ctx context.Context, typ string, l *models.Letter) {
	publish(ctx, s.Events, newEvent(typ, l.ID, l.Version, l.UserID, true, l))
}
