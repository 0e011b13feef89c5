package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/bugdesk/bugdesk/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TicketService struct {
	db       *gorm.DB
	notifier *NotificationService
	queue    TaskQueue
	indexer  SearchIndexer
	files    *FileStore
}

func NewTicketService(db *gorm.DB, notifier *NotificationService, queue TaskQueue, indexer SearchIndexer, files *FileStore) *TicketService {
	if indexer == nil {
		indexer = NoopIndexer{}
	}
	return &TicketService{
		db:       db,
		notifier: notifier,
		queue:    queue,
		indexer:  indexer,
		files:    files,
	}
}

// OptionalID tells an absent JSON field apart from an explicit null.
type OptionalID struct {
	Set   bool
	Value *uint
}

func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v uint
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

type CreateTicketRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description"`
	Status      string `json:"status" binding:"omitempty,oneof=open in_progress resolved closed"`
	Priority    string `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	ProjectID   uint   `json:"project_id" binding:"required"`
	AssignedTo  *uint  `json:"assigned_to"`
}

// UpdateTicketRequest changes only the fields present in the body.
// "assigned_to": null unassigns.
type UpdateTicketRequest struct {
	Title       *string    `json:"title" binding:"omitempty,min=1,max=255"`
	Description *string    `json:"description"`
	Status      *string    `json:"status" binding:"omitempty,oneof=open in_progress resolved closed"`
	Priority    *string    `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	AssignedTo  OptionalID `json:"assigned_to"`
}

type AssignTicketRequest struct {
	UserIDs []uint `json:"user_ids" binding:"required,min=1"`
}

// TicketDetail is a ticket with the names of the rows it references. A name is
// null when the referenced row does not exist.
type TicketDetail struct {
	models.Ticket
	ProjectName    *string `json:"project_name"`
	ReportedByName *string `json:"reported_by_name"`
	AssignedToName *string `json:"assigned_to_name"`
}

type HistoryEntry struct {
	models.TicketHistory
	ChangedByName string `json:"changed_by_name"`
}

type AssigneeView struct {
	UserID     uint      `json:"user_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	AssignedBy uint      `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}

func (s *TicketService) detailQuery() *gorm.DB {
	return s.db.Table("tickets t").
		Select("t.*, p.name AS project_name, r.username AS reported_by_name, a.username AS assigned_to_name").
		Joins("LEFT JOIN projects p ON p.id = t.project_id").
		Joins("LEFT JOIN users r ON r.id = t.reported_by").
		Joins("LEFT JOIN users a ON a.id = t.assigned_to")
}

func (s *TicketService) Create(req *CreateTicketRequest, reporterID uint) (*TicketDetail, error) {
	if err := s.requireProject(req.ProjectID); err != nil {
		return nil, err
	}
	if req.AssignedTo != nil {
		if err := s.requireUser(*req.AssignedTo); err != nil {
			return nil, err
		}
	}

	ticket := models.Ticket{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		ProjectID:   req.ProjectID,
		ReportedBy:  reporterID,
		AssignedTo:  req.AssignedTo,
	}
	if ticket.Status == "" {
		ticket.Status = models.TicketStatusOpen
	}
	if ticket.Priority == "" {
		ticket.Priority = models.TicketPriorityMedium
	}

	if err := s.db.Create(&ticket).Error; err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	s.enqueueIndex(TaskTypeIndexTicket, ticket.ID)
	if ticket.AssignedTo != nil {
		s.notifier.notifyQuietly(*ticket.AssignedTo,
			fmt.Sprintf("You have been assigned to ticket: %s", ticket.Title), &ticket.ID, &ticket.ProjectID)
	}

	return s.Get(ticket.ID)
}

func (s *TicketService) Get(id uint) (*TicketDetail, error) {
	var detail TicketDetail
	result := s.detailQuery().Where("t.id = ?", id).Limit(1).Scan(&detail)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrTicketNotFound
	}
	return &detail, nil
}

// Update applies req under a row lock and appends one history row per changed
// property. A new non-null assignee is notified after commit; unassigning and
// other edits notify nobody.
func (s *TicketService) Update(id uint, req *UpdateTicketRequest, changedBy uint) (*TicketDetail, error) {
	var before, after models.Ticket

	err := s.db.Transaction(func(tx *gorm.DB) error {
		locked := tx
		if tx.Dialector.Name() != "sqlite" {
			locked = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := locked.First(&before, id).Error; err != nil {
			if isNotFound(err) {
				return ErrTicketNotFound
			}
			return err
		}
		after = before

		now := time.Now()
		updates := map[string]interface{}{}
		var history []models.TicketHistory
		record := func(property, oldValue, newValue string, column string, value interface{}) {
			if oldValue == newValue {
				return
			}
			updates[column] = value
			history = append(history, models.TicketHistory{
				TicketID:  id,
				Property:  property,
				OldValue:  oldValue,
				NewValue:  newValue,
				ChangedBy: changedBy,
				ChangedAt: now,
			})
		}

		if req.Title != nil {
			after.Title = strings.TrimSpace(*req.Title)
			record("title", before.Title, after.Title, "title", after.Title)
		}
		if req.Description != nil {
			after.Description = *req.Description
			record("description", before.Description, after.Description, "description", after.Description)
		}
		if req.Status != nil {
			after.Status = *req.Status
			record("status", before.Status, after.Status, "status", after.Status)
		}
		if req.Priority != nil {
			after.Priority = *req.Priority
			record("priority", before.Priority, after.Priority, "priority", after.Priority)
		}
		if req.AssignedTo.Set {
			if req.AssignedTo.Value != nil {
				if err := requireUserTx(tx, *req.AssignedTo.Value); err != nil {
					return err
				}
			}
			after.AssignedTo = req.AssignedTo.Value
			record("assigned_to", formatID(before.AssignedTo), formatID(after.AssignedTo), "assigned_to", after.AssignedTo)
		}

		if len(history) == 0 {
			return nil
		}
		updates["updated_at"] = now
		if err := tx.Model(&models.Ticket{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Create(&history).Error
	})
	if err != nil {
		return nil, err
	}

	if !sameID(before.AssignedTo, after.AssignedTo) {
		s.enqueueIndex(TaskTypeIndexTicket, id)
		if after.AssignedTo != nil {
			s.notifier.notifyQuietly(*after.AssignedTo,
				fmt.Sprintf("You have been assigned to ticket: %s", after.Title), &after.ID, &after.ProjectID)
		}
	} else if before.Title != after.Title || before.Description != after.Description {
		s.enqueueIndex(TaskTypeIndexTicket, id)
	}

	return s.Get(id)
}

// AssignMultiple adds users to the multi-assignment relation in input order.
// Users already assigned and repeated ids are skipped; each newly added user is
// notified once.
func (s *TicketService) AssignMultiple(ticketID uint, userIDs []uint, assignedBy uint) ([]models.TicketAssignment, error) {
	ticket, err := s.find(ticketID)
	if err != nil {
		return nil, err
	}

	var existing []uint
	if err := s.db.Model(&models.TicketAssignment{}).Where("ticket_id = ?", ticketID).Pluck("user_id", &existing).Error; err != nil {
		return nil, err
	}
	seen := make(map[uint]bool, len(existing)+len(userIDs))
	for _, id := range existing {
		seen[id] = true
	}

	var toAdd []uint
	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		toAdd = append(toAdd, id)
	}

	created := []models.TicketAssignment{}
	if len(toAdd) == 0 {
		return created, nil
	}

	var found int64
	if err := s.db.Model(&models.User{}).Where("id IN ?", toAdd).Count(&found).Error; err != nil {
		return nil, err
	}
	if found != int64(len(toAdd)) {
		return nil, ErrUserNotFound
	}

	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, userID := range toAdd {
			a := models.TicketAssignment{
				TicketID:   ticketID,
				UserID:     userID,
				AssignedBy: assignedBy,
				AssignedAt: now,
			}
			// A concurrent request may have added the same user in the meantime.
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&a)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				continue
			}
			created = append(created, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, a := range created {
		s.notifier.notifyQuietly(a.UserID,
			fmt.Sprintf("You have been assigned to ticket: %s", ticket.Title), &ticket.ID, &ticket.ProjectID)
	}
	return created, nil
}

func (s *TicketService) ListAssignees(ticketID uint) ([]AssigneeView, error) {
	if _, err := s.find(ticketID); err != nil {
		return nil, err
	}

	items := []AssigneeView{}
	err := s.db.Table("ticket_assignments ta").
		Select("ta.user_id, u.username, u.email, ta.assigned_by, ta.assigned_at").
		Joins("JOIN users u ON u.id = ta.user_id").
		Where("ta.ticket_id = ?", ticketID).
		Order("ta.id ASC").
		Scan(&items).Error
	return items, err
}

func (s *TicketService) Unassign(ticketID, userID uint) error {
	result := s.db.Where("ticket_id = ? AND user_id = ?", ticketID, userID).Delete(&models.TicketAssignment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

// Delete removes the ticket together with its assignments, comments,
// attachments and history, and returns the deleted row.
func (s *TicketService) Delete(id uint) (*models.Ticket, error) {
	var ticket models.Ticket
	var storedNames []string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&ticket, id).Error; err != nil {
			if isNotFound(err) {
				return ErrTicketNotFound
			}
			return err
		}
		if err := tx.Model(&models.Attachment{}).Where("ticket_id = ?", id).Pluck("stored_name", &storedNames).Error; err != nil {
			return err
		}
		for _, model := range []interface{}{&models.TicketAssignment{}, &models.Comment{}, &models.Attachment{}, &models.TicketHistory{}} {
			if err := tx.Where("ticket_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Ticket{}, id).Error
	})
	if err != nil {
		return nil, err
	}

	if s.files != nil {
		for _, name := range storedNames {
			s.files.Remove(name)
		}
	}
	s.enqueueIndex(TaskTypeRemoveTicket, id)
	return &ticket, nil
}

// ListForUser returns tickets the user reported or is the single assignee of.
func (s *TicketService) ListForUser(userID uint) ([]TicketDetail, error) {
	items := []TicketDetail{}
	err := s.detailQuery().
		Where("(t.reported_by = ? OR t.assigned_to = ?)", userID, userID).
		Order("t.updated_at DESC, t.id DESC").
		Scan(&items).Error
	return items, err
}

func (s *TicketService) ListByProject(projectID uint) ([]TicketDetail, error) {
	if err := s.requireProject(projectID); err != nil {
		return nil, err
	}

	items := []TicketDetail{}
	err := s.detailQuery().
		Where("t.project_id = ?", projectID).
		Order("t.created_at DESC, t.id DESC").
		Scan(&items).Error
	return items, err
}

// GetHistory returns audit rows in insertion order.
func (s *TicketService) GetHistory(ticketID uint) ([]HistoryEntry, error) {
	if _, err := s.find(ticketID); err != nil {
		return nil, err
	}

	items := []HistoryEntry{}
	err := s.db.Table("ticket_history h").
		Select("h.*, COALESCE(u.username, 'Unknown') AS changed_by_name").
		Joins("LEFT JOIN users u ON u.id = h.changed_by").
		Where("h.ticket_id = ?", ticketID).
		Order("h.id ASC").
		Scan(&items).Error
	return items, err
}

const searchLimit = 50

// Search uses the external index when it is configured and answers from the
// database when it is not or when the index call fails.
func (s *TicketService) Search(ctx context.Context, term string, orgID *uint) ([]TicketDetail, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []TicketDetail{}, nil
	}

	if s.indexer.Enabled() {
		ids, err := s.indexer.Search(ctx, term, orgID, searchLimit)
		if err == nil {
			return s.byIDs(ids)
		}
		logger.Warn().Err(err).Msg("search index unavailable, using database search")
	}

	like := "%" + strings.ToLower(term) + "%"
	query := s.detailQuery().
		Where("(LOWER(t.title) LIKE ? OR LOWER(t.description) LIKE ?)", like, like)
	if orgID != nil {
		query = query.Where("p.organization_id = ?", *orgID)
	}

	items := []TicketDetail{}
	err := query.Order("t.updated_at DESC, t.id DESC").Limit(searchLimit).Scan(&items).Error
	return items, err
}

// byIDs loads tickets keeping the order of ids.
func (s *TicketService) byIDs(ids []uint) ([]TicketDetail, error) {
	items := []TicketDetail{}
	if len(ids) == 0 {
		return items, nil
	}

	var rows []TicketDetail
	if err := s.detailQuery().Where("t.id IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]TicketDetail, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			items = append(items, r)
		}
	}
	return items, nil
}

func (s *TicketService) enqueueIndex(taskType string, ticketID uint) {
	if s.queue == nil || !s.indexer.Enabled() {
		return
	}
	if err := s.queue.Enqueue(&SideEffectTask{Type: taskType, TicketID: ticketID}); err != nil {
		logger.Error().Err(err).Str("type", taskType).Uint("ticket_id", ticketID).Msg("failed to enqueue search task")
	}
}

func (s *TicketService) find(id uint) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := s.db.First(&ticket, id).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (s *TicketService) requireProject(id uint) error {
	var count int64
	if err := s.db.Model(&models.Project{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (s *TicketService) requireUser(id uint) error {
	return requireUserTx(s.db, id)
}

func requireUserTx(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

func formatID(id *uint) string {
	if id == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*id), 10)
}

func sameID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
