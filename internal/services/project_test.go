package services

import (
	"errors"
	"net/http"
	"testing"

	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/bugdesk/bugdesk/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectService_CreateInOrganization(t *testing.T) {
	orgs, db := newOrgService(t)
	svc := NewProjectService(db, orgs)
	owner := createUser(t, db, "owner")
	outsider := createUser(t, db, "outsider")

	org, err := orgs.Create("Acme", owner.ID)
	require.NoError(t, err)

	p, err := svc.Create(&CreateProjectRequest{Name: " Api ", OrganizationID: &org.ID}, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Api", p.Name)
	assert.Equal(t, owner.ID, p.UserID)

	_, err = svc.Create(&CreateProjectRequest{Name: "Sneaky", OrganizationID: &org.ID}, outsider.ID)
	assert.ErrorIs(t, err, ErrNotOrgMember)

	missing := uint(999)
	_, err = svc.Create(&CreateProjectRequest{Name: "Nowhere", OrganizationID: &missing}, owner.ID)
	assert.ErrorIs(t, err, ErrOrganizationNotFound)

	list, err := svc.List(&ProjectListRequest{OrganizationID: &org.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 10, list.PageSize)
}

func TestProjectService_UpdateAndDelete(t *testing.T) {
	orgs, db := newOrgService(t)
	svc := NewProjectService(db, orgs)
	owner := createUser(t, db, "owner")
	other := createUser(t, db, "other")
	admin := Principal{UserID: 999, Role: models.RoleAdmin}

	p, err := svc.Create(&CreateProjectRequest{Name: "Web"}, owner.ID)
	require.NoError(t, err)

	name := "Web v2"
	_, err = svc.Update(p.ID, &UpdateProjectRequest{Name: &name}, Principal{UserID: other.ID, Role: models.RoleDeveloper})
	assert.ErrorIs(t, err, ErrNotProjectOwner)

	updated, err := svc.Update(p.ID, &UpdateProjectRequest{Name: &name}, Principal{UserID: owner.ID})
	require.NoError(t, err)
	assert.Equal(t, "Web v2", updated.Name)

	require.NoError(t, db.Create(&models.Ticket{Title: "t", ProjectID: p.ID, ReportedBy: owner.ID}).Error)
	err = svc.Delete(p.ID, admin)
	var appErr *response.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)

	require.NoError(t, db.Where("project_id = ?", p.ID).Delete(&models.Ticket{}).Error)
	require.NoError(t, svc.Delete(p.ID, admin))
	_, err = svc.GetByID(p.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}
