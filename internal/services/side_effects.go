package services

import (
	"context"

	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/bugdesk/bugdesk/pkg/logger"
	"gorm.io/gorm"
)

// SideEffectProcessor executes tasks queued by the request path: search index
// maintenance and outgoing mail.
type SideEffectProcessor struct {
	db      *gorm.DB
	indexer SearchIndexer
	mailer  *EmailService
}

func NewSideEffectProcessor(db *gorm.DB, indexer SearchIndexer, mailer *EmailService) *SideEffectProcessor {
	return &SideEffectProcessor{db: db, indexer: indexer, mailer: mailer}
}

func (p *SideEffectProcessor) Process(ctx context.Context, task *SideEffectTask) error {
	switch task.Type {
	case TaskTypeIndexTicket:
		return p.indexTicket(ctx, task.TicketID)
	case TaskTypeRemoveTicket:
		return p.indexer.Remove(ctx, task.TicketID)
	case TaskTypeSendEmail:
		return p.mailer.Send(task.Email)
	default:
		logger.Warn().Str("type", task.Type).Msg("unknown task type")
		return nil
	}
}

// indexTicket pushes the current state of a ticket. The organization comes from
// the ticket's project; when that lookup fails the ticket is not indexed.
func (p *SideEffectProcessor) indexTicket(ctx context.Context, ticketID uint) error {
	var ticket models.Ticket
	if err := p.db.WithContext(ctx).First(&ticket, ticketID).Error; err != nil {
		if isNotFound(err) {
			logger.Info().Uint("ticket_id", ticketID).Msg("ticket gone before indexing")
			return nil
		}
		return err
	}

	var project models.Project
	if err := p.db.WithContext(ctx).First(&project, ticket.ProjectID).Error; err != nil {
		logger.Warn().Err(err).Uint("ticket_id", ticketID).Uint("project_id", ticket.ProjectID).
			Msg("project lookup failed, ticket not indexed")
		return nil
	}

	return p.indexer.Index(ctx, &TicketDocument{
		ID:             ticket.ID,
		Title:          ticket.Title,
		Description:    ticket.Description,
		ProjectID:      ticket.ProjectID,
		AssignedTo:     ticket.AssignedTo,
		ReportedBy:     ticket.ReportedBy,
		OrganizationID: project.OrganizationID,
	})
}
