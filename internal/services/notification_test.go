package services

import (
	"testing"
	"time"

	"github.com/bugdesk/bugdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotify_PublishesToRecipientOnly(t *testing.T) {
	db := newTestDB(t)
	hub := NewSSEHub()
	svc := NewNotificationService(db, hub)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	aliceCh := hub.Subscribe("alice-tab", alice.ID)
	bobCh := hub.Subscribe("bob-tab", bob.ID)
	defer hub.Unsubscribe("alice-tab")
	defer hub.Unsubscribe("bob-tab")

	n, err := svc.Notify(alice.ID, "hello", nil, nil)
	require.NoError(t, err)
	assert.False(t, n.IsRead)

	select {
	case ev := <-aliceCh:
		assert.Equal(t, n.ID, ev.ID)
		assert.Equal(t, "hello", ev.Message)
	case <-time.After(time.Second):
		t.Fatal("alice did not receive the event")
	}
	select {
	case ev := <-bobCh:
		t.Fatalf("bob received %+v", ev)
	default:
	}
}

func TestNotificationListForUser_Titles(t *testing.T) {
	db := newTestDB(t)
	svc := NewNotificationService(db, nil)
	user := createUser(t, db, "alice")
	project := createProject(t, db, "Mobile", user.ID, nil)
	ticket := models.Ticket{Title: "Crash on start", ProjectID: project.ID, ReportedBy: user.ID}
	require.NoError(t, db.Create(&ticket).Error)

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	rows := []models.Notification{
		{UserID: user.ID, Message: "ticket only", TicketID: &ticket.ID, CreatedAt: base},
		{UserID: user.ID, Message: "project only", ProjectID: &project.ID, CreatedAt: base.Add(time.Minute)},
		{UserID: user.ID, Message: "plain", CreatedAt: base.Add(2 * time.Minute)},
	}
	require.NoError(t, db.Create(&rows).Error)

	items, err := svc.ListForUser(user.ID, false)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "plain", items[0].Message)
	assert.Nil(t, items[0].TicketTitle)
	assert.Nil(t, items[0].ProjectName)

	assert.Equal(t, "project only", items[1].Message)
	require.NotNil(t, items[1].ProjectName)
	assert.Equal(t, "Mobile", *items[1].ProjectName)

	// Project name falls back to the ticket's project.
	assert.Equal(t, "ticket only", items[2].Message)
	require.NotNil(t, items[2].TicketTitle)
	assert.Equal(t, "Crash on start", *items[2].TicketTitle)
	require.NotNil(t, items[2].ProjectName)
	assert.Equal(t, "Mobile", *items[2].ProjectName)
}

func TestNotificationReadState(t *testing.T) {
	db := newTestDB(t)
	svc := NewNotificationService(db, nil)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	first, err := svc.Notify(alice.ID, "one", nil, nil)
	require.NoError(t, err)
	_, err = svc.Notify(alice.ID, "two", nil, nil)
	require.NoError(t, err)
	_, err = svc.Notify(bob.ID, "bob's", nil, nil)
	require.NoError(t, err)

	count, err := svc.UnreadCount(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = svc.MarkRead(first.ID, bob.ID)
	assert.ErrorIs(t, err, ErrNotificationNotFound)

	read, err := svc.MarkRead(first.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	unread, err := svc.ListForUser(alice.ID, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "two", unread[0].Message)

	require.NoError(t, svc.MarkAllRead(alice.ID))
	count, err = svc.UnreadCount(alice.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = svc.UnreadCount(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, svc.ClearAll(alice.ID))
	assert.Empty(t, notificationsFor(t, db, alice.ID))
	assert.Len(t, notificationsFor(t, db, bob.ID), 1)
}

func TestNotifyQuietly_NilService(t *testing.T) {
	var svc *NotificationService
	assert.NotPanics(t, func() { svc.notifyQuietly(1, "ignored", nil, nil) })
}
