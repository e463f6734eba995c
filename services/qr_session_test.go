package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barpos-backend/models"
)

func TestIssueRetiresPreviousSession(t *testing.T) {
	db := setupTestDB(t)
	svc := NewQRSessionService(db)
	table := seedTable(t, db, "T1")

	first, err := svc.Issue(table.ID, nil, "http://localhost:8080")
	require.NoError(t, err)

	second, err := svc.Issue(table.ID, nil, "http://localhost:8080")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	_, err = svc.Validate(first.Token)
	assert.Error(t, err)
	assert.Equal(t, 404, HTTPStatus(err))

	session, err := svc.Validate(second.Token)
	require.NoError(t, err)
	assert.Equal(t, table.ID, session.TableID)
}

func TestIssueEmbedsJoinURL(t *testing.T) {
	db := setupTestDB(t)
	svc := NewQRSessionService(db)
	table := seedTable(t, db, "T1")

	issued, err := svc.Issue(table.ID, nil, "https://bar.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://bar.example.com/join?token="+issued.Token, issued.URL)
	assert.True(t, strings.HasPrefix(issued.Image, "data:image/png;base64,"))
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), issued.ExpiresAt, time.Minute)
}

func TestIssueFailedRenderKeepsCurrentSession(t *testing.T) {
	db := setupTestDB(t)
	svc := NewQRSessionService(db)
	table := seedTable(t, db, "T1")

	first, err := svc.Issue(table.ID, nil, "http://localhost:8080")
	require.NoError(t, err)

	// A join URL beyond QR capacity fails to render; the current session
	// must survive and no new session may be persisted.
	_, err = svc.Issue(table.ID, nil, strings.Repeat("x", 4000))
	require.Error(t, err)

	_, err = svc.Validate(first.Token)
	assert.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.QRSession{}).
		Where("table_id = ?", table.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestValidateExpiredSession(t *testing.T) {
	db := setupTestDB(t)
	svc := NewQRSessionService(db)
	table := seedTable(t, db, "T1")

	session := models.QRSession{
		TableID:   table.ID,
		Token:     "expired-token",
		IsActive:  true,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, db.Create(&session).Error)

	_, err := svc.Validate("expired-token")
	assert.Error(t, err)
	assert.Equal(t, 404, HTTPStatus(err))
}

func TestValidateUnknownToken(t *testing.T) {
	db := setupTestDB(t)
	svc := NewQRSessionService(db)

	_, err := svc.Validate("never-issued")
	assert.Error(t, err)
	assert.Equal(t, 404, HTTPStatus(err))
}

func TestRetireCascadesToGuests(t *testing.T) {
	db := setupTestDB(t)
	qr := NewQRSessionService(db)
	reg := NewGuestRegistryService(db)
	table := seedTable(t, db, "T1")

	guest := seedGuest(t, db, reg, qr, table.ID, "Ana")

	require.NoError(t, qr.Retire(table.ID))

	_, err := reg.ResolveByCredential(guest.SessionToken)
	assert.Error(t, err)
	assert.Equal(t, 401, HTTPStatus(err))

	var stored models.Guest
	require.NoError(t, db.First(&stored, guest.GuestID).Error)
	assert.False(t, stored.IsActive)
	assert.True(t, strings.HasPrefix(stored.SessionKey, "paid:"))
}
