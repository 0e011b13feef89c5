package models

import "time"

const (
	TicketStatusOpen       = "open"
	TicketStatusInProgress = "in_progress"
	TicketStatusResolved   = "resolved"
	TicketStatusClosed     = "closed"
)

const (
	TicketPriorityLow      = "low"
	TicketPriorityMedium   = "medium"
	TicketPriorityHigh     = "high"
	TicketPriorityCritical = "critical"
)

// Ticket is a trackable issue within a project.
type Ticket struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Status      string    `gorm:"size:20;default:open;index" json:"status"`
	Priority    string    `gorm:"size:20;default:medium" json:"priority"`
	ProjectID   uint      `gorm:"index;not null" json:"project_id"`
	ReportedBy  uint      `gorm:"index;not null" json:"reported_by"`
	AssignedTo  *uint     `gorm:"index" json:"assigned_to"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Ticket) TableName() string { return "tickets" }

// TicketAssignment is the many-users-per-ticket relation. It lives next to
// Ticket.AssignedTo and is not reconciled with it.
type TicketAssignment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TicketID   uint      `gorm:"uniqueIndex:idx_ticket_assignment;not null" json:"ticket_id"`
	UserID     uint      `gorm:"uniqueIndex:idx_ticket_assignment;index;not null" json:"user_id"`
	AssignedBy uint      `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}

func (TicketAssignment) TableName() string { return "ticket_assignments" }

// TicketHistory is an append-only audit row, one per changed property.
type TicketHistory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TicketID  uint      `gorm:"index;not null" json:"ticket_id"`
	Property  string    `gorm:"size:50;not null" json:"property"`
	OldValue  string    `gorm:"type:text" json:"old_value"`
	NewValue  string    `gorm:"type:text" json:"new_value"`
	ChangedBy uint      `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}

func (TicketHistory) TableName() string { return "ticket_history" }
