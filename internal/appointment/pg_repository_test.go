package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgRepository(mock)
}

func TestPgRepository_FindPatientByNationalID_NotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("FROM patients").
		WithArgs("12345678901").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "national_id", "name", "birth_date", "phone", "email", "insurance_card", "billing", "created_at", "updated_at",
		}))

	_, err := repo.FindPatientByNationalID(context.Background(), "12345678901")
	assert.ErrorIs(t, err, ErrPatientNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_CreatePatient_Duplicate(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO patients").
		WithArgs(pgxmock.AnyArg(), "12345678901", "Maria", pgxmock.AnyArg(), "31999998888",
			pgxmock.AnyArg(), pgxmock.AnyArg(), BillingPrivate).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.CreatePatient(context.Background(), NewPatient{
		NationalID: "12345678901",
		Name:       "Maria",
		BirthDate:  time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC),
		Phone:      "31999998888",
		Billing:    BillingPrivate,
	})
	assert.ErrorIs(t, err, ErrPatientExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_ExistsScheduled(t *testing.T) {
	mock, repo := newMockRepo(t)
	doctorID := uuid.New()
	day := time.Date(2026, 10, 22, 15, 4, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(doctorID, Date(day), "14:30").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := repo.ExistsScheduled(context.Background(), doctorID, day, MustTimeOfDay("14:30"))
	require.NoError(t, err)
	assert.True(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_CreateAppointment_UniqueViolation(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), "09:00", StatusScheduled).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_scheduled_slot_key"})

	_, err := repo.CreateAppointment(context.Background(), NewAppointment{
		PatientID: uuid.New(), DoctorID: uuid.New(), SpecialtyID: uuid.New(), LocationID: uuid.New(),
		Date: time.Now(), Time: MustTimeOfDay("09:00"), Status: StatusScheduled,
	})
	assert.ErrorIs(t, err, ErrDuplicateScheduled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_UpdateAppointmentStatus_GuardMiss(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, StatusScheduled, StatusAttachmentPending).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := repo.UpdateAppointmentStatus(context.Background(), id, StatusAttachmentPending, StatusScheduled)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_SetAttachment_Missing(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SET attachment_name").
		WithArgs(id, "pedido_medico_x", AttachmentKey(id)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := repo.SetAttachment(context.Background(), id, "pedido_medico_x", AttachmentKey(id))
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_ListActiveLocations(t *testing.T) {
	mock, repo := newMockRepo(t)
	id1, id2 := uuid.New(), uuid.New()

	mock.ExpectQuery("FROM locations").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "address", "city", "phone", "active"}).
			AddRow(id1, "Centro", "Rua A, 10", "Belo Horizonte", "3133334444", true).
			AddRow(id2, "Savassi", "Rua B, 20", "Belo Horizonte", "3133335555", true))

	locs, err := repo.ListActiveLocations(context.Background())
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "Centro", locs[0].Name)
	assert.Equal(t, id2, locs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_InsertEvent(t *testing.T) {
	mock, repo := newMockRepo(t)
	apptID := uuid.New()

	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(EventAppointmentCreated, &apptID, []byte(`{}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.InsertEvent(context.Background(), EventLog{
		EventType:     EventAppointmentCreated,
		AppointmentID: &apptID,
		Payload:       []byte(`{}`),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
