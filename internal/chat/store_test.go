package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-chat-scheduling/internal/intent"
)

var conversationColumns = []string{"session_id", "state", "draft", "patient_id", "created_at", "updated_at"}

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PgStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgStore(mock)
}

func TestPgStore_GetNotFound(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("FROM conversations").
		WithArgs("s1").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Get(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStore_GetDecodesDraft(t *testing.T) {
	mock, store := newMockStore(t)
	patientID := uuid.New()
	created := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	draft, err := MarshalDraft(&IdentifyDraft{Intent: intent.Lookup})
	require.NoError(t, err)

	mock.ExpectQuery("FROM conversations").
		WithArgs("s1").
		WillReturnRows(pgxmock.NewRows(conversationColumns).
			AddRow("s1", "awaiting_id", draft, &patientID, created, created.Add(time.Minute)))

	c, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingID, c.State)
	assert.Equal(t, &IdentifyDraft{Intent: intent.Lookup}, c.Draft)
	require.NotNil(t, c.PatientID)
	assert.Equal(t, patientID, *c.PatientID)
	assert.True(t, c.UpdatedAt.Equal(created.Add(time.Minute)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStore_GetUnreadableDraftResets(t *testing.T) {
	mock, store := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("FROM conversations").
		WithArgs("s1").
		WillReturnRows(pgxmock.NewRows(conversationColumns).
			AddRow("s1", "confirm", []byte(`{"kind":"mystery","data":{}}`), (*uuid.UUID)(nil), now, now))

	c, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, StateStart, c.State)
	assert.Nil(t, c.Draft)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStore_SaveUpserts(t *testing.T) {
	mock, store := newMockStore(t)
	c := NewConversation("s1", time.Now())
	c.State = StateChooseLocation
	c.Draft = &BookingDraft{}

	mock.ExpectExec("ON CONFLICT \\(session_id\\) DO UPDATE").
		WithArgs("s1", "choose_location", pgxmock.AnyArg(), c.PatientID, c.CreatedAt, c.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Save(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStore_SaveError(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("INSERT INTO conversations").
		WillReturnError(errors.New("connection reset"))

	err := store.Save(context.Background(), NewConversation("s1", time.Now()))
	assert.ErrorContains(t, err, "upsert conversation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStore_DeleteIdle(t *testing.T) {
	mock, store := newMockStore(t)
	cutoff := time.Date(2026, 10, 19, 4, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM conversations").
		WithArgs("done", cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := store.DeleteIdle(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryStore_RoundTripIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	c := NewConversation("s1", time.Now())
	c.Draft = &CancellationContext{AppointmentIDs: []uuid.UUID{uuid.New()}}
	require.NoError(t, s.Save(ctx, c))

	c.Draft.(*CancellationContext).AppointmentIDs[0] = uuid.Nil

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.Draft.(*CancellationContext).AppointmentIDs[0])

	require.NoError(t, s.Delete(ctx, "s1"))
	_, err = s.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestMemoryStore_DeleteIdleKeepsDone(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	old := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	fresh := old.Add(12 * time.Hour)

	stale := NewConversation("stale", old)
	stale.State = StateChooseSlot
	done := NewConversation("done", old)
	done.State = StateDone
	recent := NewConversation("recent", fresh)

	for _, c := range []*Conversation{stale, done, recent} {
		require.NoError(t, s.Save(ctx, c))
	}

	n, err := s.DeleteIdle(ctx, old.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get(ctx, "stale")
	assert.ErrorIs(t, err, ErrConversationNotFound)
	_, err = s.Get(ctx, "done")
	assert.NoError(t, err)
	_, err = s.Get(ctx, "recent")
	assert.NoError(t, err)
}

func TestLoadOrCreate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	c, err := LoadOrCreate(ctx, s, "s1", now)
	require.NoError(t, err)
	assert.Equal(t, StateStart, c.State)
	assert.True(t, c.CreatedAt.Equal(now))

	c.State = StateLookup
	require.NoError(t, s.Save(ctx, c))

	c, err = LoadOrCreate(ctx, s, "s1", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StateLookup, c.State)
}
