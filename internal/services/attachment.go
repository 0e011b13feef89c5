package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/bugdesk/bugdesk/pkg/logger"
	"github.com/bugdesk/bugdesk/pkg/response"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FileStore keeps uploaded files in a flat directory under generated names.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (f *FileStore) Path(storedName string) string {
	return filepath.Join(f.dir, filepath.Base(storedName))
}

// Save copies r into a new file and returns its stored name and size.
func (f *FileStore) Save(r io.Reader, ext string) (string, int64, error) {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return "", 0, err
	}

	name := uuid.NewString() + strings.ToLower(ext)
	out, err := os.Create(f.Path(name))
	if err != nil {
		return "", 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, r)
	if err != nil {
		os.Remove(f.Path(name))
		return "", 0, err
	}
	return name, n, nil
}

func (f *FileStore) Remove(storedName string) {
	if err := os.Remove(f.Path(storedName)); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Str("file", storedName).Msg("failed to remove attachment file")
	}
}

type AttachmentService struct {
	db       *gorm.DB
	files    *FileStore
	maxBytes int64
}

func NewAttachmentService(db *gorm.DB, files *FileStore, maxUploadMB int) *AttachmentService {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &AttachmentService{db: db, files: files, maxBytes: int64(maxUploadMB) << 20}
}

func (s *AttachmentService) Upload(ticketID, userID uint, file *multipart.FileHeader, description string) (*models.Attachment, error) {
	var count int64
	if err := s.db.Model(&models.Ticket{}).Where("id = ?", ticketID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrTicketNotFound
	}
	if file.Size > s.maxBytes {
		return nil, response.NewBadRequest(fmt.Sprintf("file exceeds the %d MB upload limit", s.maxBytes>>20))
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	storedName, size, err := s.files.Save(src, filepath.Ext(file.Filename))
	if err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	att := models.Attachment{
		TicketID:    ticketID,
		Filename:    filepath.Base(file.Filename),
		Description: description,
		StoredName:  storedName,
		ContentType: contentType,
		Size:        size,
		UploadedBy:  userID,
		UploadedAt:  time.Now(),
	}
	if err := s.db.Create(&att).Error; err != nil {
		s.files.Remove(storedName)
		return nil, err
	}
	return &att, nil
}

func (s *AttachmentService) ListByTicket(ticketID uint) ([]models.Attachment, error) {
	items := []models.Attachment{}
	err := s.db.Where("ticket_id = ?", ticketID).Order("uploaded_at ASC, id ASC").Find(&items).Error
	return items, err
}

// Get returns the attachment and the path of its file.
func (s *AttachmentService) Get(id uint) (*models.Attachment, string, error) {
	var att models.Attachment
	if err := s.db.First(&att, id).Error; err != nil {
		if isNotFound(err) {
			return nil, "", ErrAttachmentNotFound
		}
		return nil, "", err
	}
	return &att, s.files.Path(att.StoredName), nil
}

// Delete is allowed to the uploader and to admins.
func (s *AttachmentService) Delete(id uint, actor Principal) error {
	att, _, err := s.Get(id)
	if err != nil {
		return err
	}
	if !actor.CanManage(att.UploadedBy) {
		return response.NewForbidden("only the uploader or an admin can delete this attachment")
	}
	if err := s.db.Delete(&models.Attachment{}, id).Error; err != nil {
		return err
	}
	s.files.Remove(att.StoredName)
	return nil
}
