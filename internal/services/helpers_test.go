package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/bugdesk/bugdesk/internal/config"
	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := models.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}, gormlogger.Silent)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Role:     models.RoleDeveloper,
		AuthType: "local",
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createProject(t *testing.T, db *gorm.DB, name string, ownerID uint, orgID *uint) *models.Project {
	t.Helper()
	p := &models.Project{Name: name, UserID: ownerID, OrganizationID: orgID, IsActive: true}
	require.NoError(t, db.Create(p).Error)
	return p
}

func notificationsFor(t *testing.T, db *gorm.DB, userID uint) []models.Notification {
	t.Helper()
	var items []models.Notification
	require.NoError(t, db.Where("user_id = ?", userID).Order("id").Find(&items).Error)
	return items
}

// recordingQueue keeps tasks instead of running them.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []*SideEffectTask
}

func (q *recordingQueue) Enqueue(task *SideEffectTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) IsAsync() bool { return false }

func (q *recordingQueue) Close() error { return nil }

func (q *recordingQueue) types() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, t.Type)
	}
	return out
}

// fakeIndexer is an enabled index kept in memory.
type fakeIndexer struct {
	mu      sync.Mutex
	docs    map[uint]*TicketDocument
	hits    []uint
	failing bool
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{docs: map[uint]*TicketDocument{}}
}

func (f *fakeIndexer) Enabled() bool { return true }

func (f *fakeIndexer) Index(_ context.Context, doc *TicketDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeIndexer) Remove(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	return nil
}

func (f *fakeIndexer) Search(context.Context, string, *uint, int) ([]uint, error) {
	if f.failing {
		return nil, fmt.Errorf("connection refused")
	}
	return f.hits, nil
}

var configMailDisabled = config.MailConfig{Enabled: false}
