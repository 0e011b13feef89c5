package services

import (
	"time"

	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/bugdesk/bugdesk/pkg/logger"
	"gorm.io/gorm"
)

// NotificationService is the only writer of notification rows. It carries no
// policy: callers decide who is told what.
type NotificationService struct {
	db  *gorm.DB
	hub *SSEHub
}

func NewNotificationService(db *gorm.DB, hub *SSEHub) *NotificationService {
	return &NotificationService{db: db, hub: hub}
}

// NotificationView is a notification with the titles of what it points at.
type NotificationView struct {
	models.Notification
	TicketTitle *string `json:"ticket_title"`
	ProjectName *string `json:"project_name"`
}

// Notify always inserts one row and pushes it to the recipient's live streams.
func (s *NotificationService) Notify(recipientID uint, message string, ticketID, projectID *uint) (*models.Notification, error) {
	n := &models.Notification{
		UserID:    recipientID,
		Message:   message,
		TicketID:  ticketID,
		ProjectID: projectID,
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(n).Error; err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.Publish(NotificationEvent{
			ID:        n.ID,
			UserID:    n.UserID,
			Message:   n.Message,
			TicketID:  n.TicketID,
			ProjectID: n.ProjectID,
		})
	}
	return n, nil
}

// notifyQuietly is Notify for call sites whose primary write already
// committed: a failure is logged and swallowed.
func (s *NotificationService) notifyQuietly(recipientID uint, message string, ticketID, projectID *uint) {
	if s == nil {
		return
	}
	if _, err := s.Notify(recipientID, message, ticketID, projectID); err != nil {
		logger.Error().Err(err).Uint("recipient", recipientID).Msg("failed to write notification")
	}
}

// ListForUser returns the user's notifications, newest first.
func (s *NotificationService) ListForUser(userID uint, onlyUnread bool) ([]NotificationView, error) {
	query := s.db.Table("notifications n").
		Select("n.*, t.title AS ticket_title, p.name AS project_name").
		Joins("LEFT JOIN tickets t ON t.id = n.ticket_id").
		Joins("LEFT JOIN projects p ON p.id = COALESCE(n.project_id, t.project_id)").
		Where("n.user_id = ?", userID)
	if onlyUnread {
		query = query.Where("n.is_read = ?", false)
	}

	items := []NotificationView{}
	if err := query.Order("n.created_at DESC, n.id DESC").Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// MarkRead flags one notification of userID as read. Another user's
// notification is reported as not found.
func (s *NotificationService) MarkRead(id, userID uint) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}

	if err := s.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true).Error; err != nil {
		return nil, err
	}
	n.IsRead = true
	return &n, nil
}

func (s *NotificationService) MarkAllRead(userID uint) error {
	return s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
}

// ClearAll hard-deletes every notification of the user.
func (s *NotificationService) ClearAll(userID uint) error {
	return s.db.Where("user_id = ?", userID).Delete(&models.Notification{}).Error
}

func (s *NotificationService) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
