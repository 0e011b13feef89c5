package models

import "time"

type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TicketID  uint      `gorm:"index;not null" json:"ticket_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func (Comment) TableName() string { return "comments" }

// Attachment is the metadata of a file uploaded to a ticket. The file itself
// lives in the upload directory under StoredName.
type Attachment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TicketID    uint      `gorm:"index;not null" json:"ticket_id"`
	Filename    string    `gorm:"size:255;not null" json:"filename"`
	Description string    `gorm:"size:1000" json:"description"`
	StoredName  string    `gorm:"size:64;not null" json:"-"`
	ContentType string    `gorm:"size:100" json:"content_type"`
	Size        int64     `json:"size"`
	UploadedBy  uint      `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

func (Attachment) TableName() string { return "attachments" }
