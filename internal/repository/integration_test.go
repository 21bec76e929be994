//go:build integration

package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/iliyamo/campus-marketplace/internal/database"
	"github.com/iliyamo/campus-marketplace/internal/model"
	"github.com/iliyamo/campus-marketplace/internal/repository"
	"github.com/iliyamo/campus-marketplace/internal/service"
)

type PostgresSuite struct {
	suite.Suite
	ctx   context.Context
	pg    *postgres.PostgresContainer
	db    *sql.DB
	store *repository.SQLStore
	coord *service.ReservationCoordinator
}

func TestPostgresSuite(t *testing.T) { suite.Run(t, new(PostgresSuite)) }

func (s *PostgresSuite) SetupSuite() {
	s.ctx = context.Background()
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Minute)
	defer cancel()

	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("marketplace"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	s.Require().NoError(err)
	s.pg = pg

	url, err := pg.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)
	s.db, err = database.Open(database.DriverPostgres, url)
	s.Require().NoError(err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.Require().NoError(database.RunMigrations(ctx, s.db, database.DriverPostgres, log))
	// second run must be a no-op
	s.Require().NoError(database.RunMigrations(ctx, s.db, database.DriverPostgres, log))

	s.store = repository.NewSQLStore(s.db, repository.DialectPostgres)
	s.coord = service.NewReservationCoordinator(s.store, nil, log)
}

func (s *PostgresSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.pg != nil {
		_ = s.pg.Terminate(s.ctx)
	}
}

func (s *PostgresSuite) newListing(seller, title string) *model.Listing {
	l := &model.Listing{
		Title:       title,
		Description: "works fine and is ready for pickup",
		Price:       25,
		Category:    model.CategoryElectronics,
		Condition:   model.ConditionUsed,
		Images:      []string{"https://cdn.example.com/1.jpg", "https://cdn.example.com/2.jpg"},
		Tags:        []string{"desk", "cheap"},
		SellerID:    seller,
	}
	_, err := s.store.CreateListing(s.ctx, l)
	s.Require().NoError(err)
	return l
}

func (s *PostgresSuite) TestListingRoundTrip() {
	l := s.newListing("seller-rt", "Monitor stand")

	got, err := s.store.GetListing(s.ctx, l.ID)
	s.Require().NoError(err)
	s.Equal(l.Title, got.Title)
	s.Equal(l.Images, got.Images)
	s.ElementsMatch(l.Tags, got.Tags)
	s.Equal(model.ListingAvailable, got.Status)

	res, total, err := s.store.Search(s.ctx, repository.SearchFilter{Query: "monitor"}.Normalize())
	s.Require().NoError(err)
	s.GreaterOrEqual(total, int64(1))
	s.NotEmpty(res)

	_, err = s.store.GetListing(s.ctx, "00000000-0000-0000-0000-000000000000")
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *PostgresSuite) TestConcurrentConfirmsHaveOneWinner() {
	l := s.newListing("seller-cc", "Bike lock")
	const buyers = 8
	for i := 0; i < buyers; i++ {
		_, err := s.coord.RequestReservation(s.ctx, fmt.Sprintf("buyer-%d", i), l.ID)
		s.Require().NoError(err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.coord.ConfirmReservation(s.ctx, "seller-cc", l.ID, fmt.Sprintf("buyer-%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, repository.ErrConflict):
				conflicts++
			default:
				s.T().Errorf("unexpected confirm error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, wins)
	s.Equal(buyers-1, conflicts)

	got, err := s.store.GetListing(s.ctx, l.ID)
	s.Require().NoError(err)
	s.Equal(model.ListingReserved, got.Status)

	reqs, err := s.store.RequestsByListing(s.ctx, l.ID)
	s.Require().NoError(err)
	confirmed := 0
	for _, r := range reqs {
		if r.IsConfirmed() {
			confirmed++
		}
	}
	s.Equal(1, confirmed)
}

func (s *PostgresSuite) TestSoldLifecycle() {
	l := s.newListing("seller-lc", "Rice cooker")
	_, err := s.coord.RequestReservation(s.ctx, "b1", l.ID)
	s.Require().NoError(err)
	_, err = s.coord.RequestReservation(s.ctx, "b2", l.ID)
	s.Require().NoError(err)
	_, err = s.coord.RequestReservation(s.ctx, "b1", l.ID)
	s.ErrorIs(err, repository.ErrDuplicateRequest)

	s.Require().NoError(s.coord.ConfirmReservation(s.ctx, "seller-lc", l.ID, "b1"))
	s.Require().NoError(s.coord.MarkSold(s.ctx, "seller-lc", l.ID))

	reqs, err := s.store.RequestsByListing(s.ctx, l.ID)
	s.Require().NoError(err)
	s.Empty(reqs)

	got, err := s.store.GetListing(s.ctx, l.ID)
	s.Require().NoError(err)
	s.Equal(model.ListingSold, got.Status)

	_, err = s.coord.RequestReservation(s.ctx, "b1", l.ID)
	s.ErrorIs(err, repository.ErrInvalidState)
	s.ErrorIs(s.coord.CancelReservation(s.ctx, "b1", l.ID, ""), repository.ErrInvalidState)
}
