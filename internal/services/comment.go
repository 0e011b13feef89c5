package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/bugdesk/bugdesk/internal/models"
	"gorm.io/gorm"
)

type CommentService struct {
	db       *gorm.DB
	notifier *NotificationService
}

func NewCommentService(db *gorm.DB, notifier *NotificationService) *CommentService {
	return &CommentService{db: db, notifier: notifier}
}

type CreateCommentRequest struct {
	Text string `json:"text"`
}

type CommentView struct {
	models.Comment
	Username *string `json:"username"`
}

// Create adds a comment and tells the assignee and the reporter, never the
// commenter and never the same person twice.
func (s *CommentService) Create(ticketID, userID uint, text string) (*CommentView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}

	var ticket models.Ticket
	if err := s.db.First(&ticket, ticketID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	comment := models.Comment{
		TicketID:  ticketID,
		UserID:    userID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(&comment).Error; err != nil {
		return nil, err
	}

	var author models.User
	name := fmt.Sprintf("User #%d", userID)
	if err := s.db.Select("username").First(&author, userID).Error; err == nil {
		name = author.Username
	}

	message := fmt.Sprintf("%s commented on ticket: %s", name, ticket.Title)
	if ticket.AssignedTo != nil && *ticket.AssignedTo != userID {
		s.notifier.notifyQuietly(*ticket.AssignedTo, message, &ticket.ID, &ticket.ProjectID)
	}
	if ticket.ReportedBy != userID && (ticket.AssignedTo == nil || *ticket.AssignedTo != ticket.ReportedBy) {
		s.notifier.notifyQuietly(ticket.ReportedBy, message, &ticket.ID, &ticket.ProjectID)
	}

	view := &CommentView{Comment: comment}
	if author.Username != "" {
		view.Username = &author.Username
	}
	return view, nil
}

func (s *CommentService) ListByTicket(ticketID uint) ([]CommentView, error) {
	var count int64
	if err := s.db.Model(&models.Ticket{}).Where("id = ?", ticketID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrTicketNotFound
	}

	items := []CommentView{}
	err := s.db.Table("comments c").
		Select("c.*, u.username AS username").
		Joins("LEFT JOIN users u ON u.id = c.user_id").
		Where("c.ticket_id = ?", ticketID).
		Order("c.created_at ASC, c.id ASC").
		Scan(&items).Error
	return items, err
}
