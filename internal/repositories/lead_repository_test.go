package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"reicrm/internal/models"
)

var leadRowColumns = []string{
	"id", "lead_id", "first_name", "last_name", "email", "phone", "property_id",
	"source", "status", "priority", "assigned_to", "notes", "tags",
	"follow_up_date", "last_contacted_at", "estimated_value", "created_by", "created_at", "updated_at",
}

func TestLeadRepositoryGetByIDDecodesNotesAndTags(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM leads WHERE id").WithArgs(int64(5)).WillReturnRows(
		sqlmock.NewRows(leadRowColumns).AddRow(
			5, "LD-0A1B2C3D", "Bob", "Ray", "bob@example.com", "", nil,
			"referral", "contacted", "high", int64(2),
			[]byte(`[{"text":"called","authorId":2,"createdAt":"2024-05-01T09:00:00Z"}]`),
			[]byte(`{hot,"pre foreclosure"}`),
			nil, nil, "185000.00", int64(2), now, now,
		))

	l, err := NewLeadRepository(db).GetByID(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, models.LeadContacted, l.Status)
	require.Len(t, l.Notes, 1)
	require.Equal(t, "called", l.Notes[0].Text)
	require.Equal(t, []string{"hot", "pre foreclosure"}, l.Tags)
	require.NotNil(t, l.EstimatedValue)
	require.InDelta(t, 185000.0, *l.EstimatedValue, 0.001)
	require.Nil(t, l.PropertyID)
}

func TestLeadRepositoryListAgentScope(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	agent := int64(4)
	status := models.LeadNew
	filter := models.LeadFilter{Status: &status, VisibleTo: &agent}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM leads WHERE status = $1 AND (created_by = $2 OR assigned_to = $2)")).
		WithArgs(status, agent).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY CASE priority")).
		WithArgs(status, agent, 20, 0).
		WillReturnRows(sqlmock.NewRows(leadRowColumns))

	leads, total, err := NewLeadRepository(db).List(context.Background(), filter,
		models.Page{Page: 1, Limit: 20}, models.Sort{Column: "priority", Desc: true})
	require.NoError(t, err)
	require.Zero(t, total)
	require.NotNil(t, leads)
	require.Empty(t, leads)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryAppendNote(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("notes = notes || $1::jsonb")).
		WithArgs(sqlmock.AnyArg(), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewLeadRepository(db).AppendNote(context.Background(), 8, models.LeadNote{Text: "left voicemail", AuthorID: 1})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepositoryUpdateStatusMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE leads").WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewLeadRepository(db).UpdateStatus(context.Background(), 99, models.LeadQualified, nil)
	require.ErrorIs(t, err, ErrNotFound)
}
