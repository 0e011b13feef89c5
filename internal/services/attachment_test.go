package services

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/bugdesk/bugdesk/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileHeader builds the header gin hands to handlers for a multipart upload.
func fileHeader(t *testing.T, filename, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["file"][0]
}

func newAttachmentFixture(t *testing.T, maxMB int) (*AttachmentService, *models.Ticket, *models.User, string) {
	t.Helper()
	db := newTestDB(t)
	owner := createUser(t, db, "owner")
	project := createProject(t, db, "Website", owner.ID, nil)
	ticket := newTicket(t, db, project.ID, owner.ID, nil)

	dir := filepath.Join(t.TempDir(), "uploads")
	return NewAttachmentService(db, NewFileStore(dir), maxMB), ticket, owner, dir
}

func TestAttachmentUpload(t *testing.T) {
	svc, ticket, owner, dir := newAttachmentFixture(t, 1)

	att, err := svc.Upload(ticket.ID, owner.ID, fileHeader(t, "../../Screen Shot.PNG", "image/png", []byte("png-bytes")), "login error")
	require.NoError(t, err)

	assert.Equal(t, "Screen Shot.PNG", att.Filename)
	assert.Equal(t, "image/png", att.ContentType)
	assert.EqualValues(t, len("png-bytes"), att.Size)
	assert.Equal(t, ".png", filepath.Ext(att.StoredName))
	assert.NotContains(t, att.StoredName, "Screen")

	stored, err := os.ReadFile(filepath.Join(dir, att.StoredName))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(stored))

	got, path, err := svc.Get(att.ID)
	require.NoError(t, err)
	assert.Equal(t, att.ID, got.ID)
	assert.Equal(t, filepath.Join(dir, att.StoredName), path)

	items, err := svc.ListByTicket(ticket.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestAttachmentUpload_Rejections(t *testing.T) {
	svc, ticket, owner, _ := newAttachmentFixture(t, 1)

	_, err := svc.Upload(9999, owner.ID, fileHeader(t, "a.txt", "text/plain", []byte("x")), "")
	assert.ErrorIs(t, err, ErrTicketNotFound)

	big := bytes.Repeat([]byte("x"), (1<<20)+1)
	_, err = svc.Upload(ticket.ID, owner.ID, fileHeader(t, "big.bin", "", big), "")
	var appErr *response.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.HTTPStatus)
}

func TestAttachmentUpload_DefaultContentType(t *testing.T) {
	svc, ticket, owner, _ := newAttachmentFixture(t, 1)

	att, err := svc.Upload(ticket.ID, owner.ID, fileHeader(t, "notes", "", []byte("x")), "")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", att.ContentType)
}

func TestAttachmentDelete(t *testing.T) {
	svc, ticket, owner, dir := newAttachmentFixture(t, 1)
	att, err := svc.Upload(ticket.ID, owner.ID, fileHeader(t, "log.txt", "text/plain", []byte("trace")), "")
	require.NoError(t, err)

	err = svc.Delete(att.ID, Principal{UserID: owner.ID + 1, Role: models.RoleDeveloper})
	var appErr *response.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 403, appErr.HTTPStatus)

	require.NoError(t, svc.Delete(att.ID, Principal{UserID: owner.ID + 1, Role: models.RoleAdmin}))

	_, statErr := os.Stat(filepath.Join(dir, att.StoredName))
	assert.True(t, os.IsNotExist(statErr))

	_, _, err = svc.Get(att.ID)
	assert.ErrorIs(t, err, ErrAttachmentNotFound)
	assert.ErrorIs(t, svc.Delete(att.ID, Principal{UserID: owner.ID}), ErrAttachmentNotFound)
}
