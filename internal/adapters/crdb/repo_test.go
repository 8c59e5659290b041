package crdb_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/hotel-booking/internal/adapters/crdb"
	"github.com/robertarktes/hotel-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startCockroach(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp", "8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.Endpoint(ctx, "postgresql")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn+"/defaultdb?sslmode=disable&user=root")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func confirmedRoom(id int64, arrival string) *domain.FlowState {
	d := domain.NewDraft(domain.Room)
	d.LastName = "Ngo"
	d.FirstName = "Alice"
	d.Email = "alice@example.com"
	d.ArrivalDate = arrival
	d.DepartureDate = arrival
	d.Occupants = 2
	d.PaymentMethod = domain.PayOrange
	return &domain.FlowState{
		Record: domain.ReservationRecord{
			ID:        id,
			Kind:      domain.Room,
			UnitID:    7,
			Draft:     d,
			Quote:     domain.Quote{Nights: 2, UnitPrice: 25000, Total: 50000},
			Status:    domain.StatusConfirmed,
			CreatedAt: time.Now(),
		},
		Unit:    domain.BookableUnit{ID: 7, Kind: domain.Room, HotelID: 3, Capacity: 2, Price: 25000},
		Payment: domain.PaymentSuccess,
	}
}

func TestRepository_RecordAndRemind(t *testing.T) {
	pool := startCockroach(t)
	ctx := context.Background()

	repo := crdb.NewRepository(pool)
	require.NoError(t, repo.Migrate(ctx))

	day := time.Now().AddDate(0, 0, 2)
	st := confirmedRoom(42, day.Format("2006-01-02"))

	require.NoError(t, repo.Record(ctx, st, domain.EventReservationConfirmed))
	// a second transition for the same reservation updates the row
	require.NoError(t, repo.Record(ctx, st, domain.EventReservationConfirmed))

	due, err := repo.DueForReminder(ctx, day, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, int64(42), due[0].ReservationID)
	assert.Equal(t, domain.StatusConfirmed, due[0].Status)
	assert.Equal(t, 50000.0, due[0].Total)
	require.NotNil(t, due[0].HotelID)
	assert.EqualValues(t, 3, *due[0].HotelID)

	require.NoError(t, repo.MarkReminded(ctx, due[0], time.Now()))
	err = repo.MarkReminded(ctx, due[0], time.Now())
	assert.True(t, errors.Is(err, domain.ErrConflict))

	due, err = repo.DueForReminder(ctx, day, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	var claimed int
	err = repo.ClaimOutbox(ctx, 10, func(tx pgx.Tx, records []crdb.OutboxRecord) error {
		claimed = len(records)
		for _, rec := range records {
			assert.Equal(t, "room:42", rec.AggregateID)
			if err := repo.MarkPublished(ctx, tx, rec.ID, time.Now()); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, claimed)

	err = repo.ClaimOutbox(ctx, 10, func(tx pgx.Tx, records []crdb.OutboxRecord) error {
		assert.Empty(t, records)
		return nil
	})
	require.NoError(t, err)
}
