package models

import (
	"time"

	"lexpost/internal/domain"
)

type Letter struct {
	ID                 uint                  `gorm:"primaryKey" json:"id"`
	UserID             uint                  `gorm:"not null;index" json:"user_id"`
	Title              string                `gorm:"size:255;not null" json:"title"`
	LetterType         string                `gorm:"size:50;not null;index" json:"letter_type"`
	Description        string                `gorm:"type:text" json:"description"`
	DesiredResolution  string                `gorm:"type:text" json:"desired_resolution"`
	SenderName         string                `gorm:"size:255" json:"sender_name"`
	SenderAddress      string                `gorm:"size:512" json:"sender_address"`
	SenderEmail        string                `gorm:"size:255" json:"sender_email"`
	RecipientName      string                `gorm:"size:255" json:"recipient_name"`
	RecipientAddress   string                `gorm:"size:512" json:"recipient_address"`
	RecipientEmail     string                `gorm:"size:255" json:"recipient_email"`
	Priority           domain.Priority       `gorm:"size:10;not null;default:'medium'" json:"priority"`
	Status             domain.LetterStatus   `gorm:"size:20;not null;index" json:"status"`
	TimelineStatus     domain.TimelineStatus `gorm:"size:20;not null;index" json:"timeline_status"`
	AIContent          *string               `gorm:"type:text" json:"ai_content"`
	FinalContent       *string               `gorm:"type:text" json:"final_content"`
	ArchivedHTML       string                `gorm:"type:text" json:"-"`
	AdminNotes         string                `gorm:"type:text" json:"admin_notes,omitempty"`
	AssignedReviewerID *uint                 `gorm:"index" json:"assigned_reviewer_id,omitempty"`
	DueDate            *time.Time            `json:"due_date,omitempty"`
	Version            int64                 `gorm:"not null;default:1" json:"version"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

func (Letter) TableName() string { return "letters" }

// Body returns the edited content when present, else the generated draft.
func (l *Letter) Body() string {
	if l.FinalContent != nil && *l.FinalContent != "" {
		return *l.FinalContent
	}
	if l.AIContent != nil {
		return *l.AIContent
	}
	return ""
}

// StatusHistoryEntry is append-only: one row per status change.
type StatusHistoryEntry struct {
	ID        uint                `gorm:"primaryKey" json:"id"`
	LetterID  uint                `gorm:"not null;index" json:"letter_id"`
	OldStatus domain.LetterStatus `gorm:"size:20;not null" json:"old_status"`
	NewStatus domain.LetterStatus `gorm:"size:20;not null" json:"new_status"`
	ActorID   uint                `gorm:"not null" json:"actor_id"`
	Note      string              `gorm:"size:1000" json:"note,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

func (StatusHistoryEntry) TableName() string { return "letter_status_history" }

type LetterAttachment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	LetterID   uint      `gorm:"not null;index" json:"letter_id"`
	UploaderID uint      `gorm:"not null" json:"uploader_id"`
	FileName   string    `gorm:"size:255;not null" json:"file_name"`
	URL        string    `gorm:"size:1024;not null" json:"url"`
	PublicID   string    `gorm:"size:255" json:"-"`
	Bytes      int64     `json:"bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

func (LetterAttachment) TableName() string { return "letter_attachments" }
