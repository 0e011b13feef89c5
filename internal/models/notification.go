package models

import "time"

// Notification is owned by its recipient. TicketID/ProjectID are back-links only.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	TicketID  *uint     `json:"ticket_id"`
	ProjectID *uint     `json:"project_id"`
	IsRead    bool      `gorm:"default:false;index" json:"is_read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
