//go:build integration

package products

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"ProductsAPI/internal/migrate"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	db          *sql.DB
	store       *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()

	var err error
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("products"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(s.T(), err, "run postgres container")

	dsn, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	s.db, err = OpenPostgres(s.ctx, dsn)
	require.NoError(s.T(), err)
	require.NoError(s.T(), migrate.Up(s.db))

	s.store = NewPostgresStore(s.db)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.pgContainer != nil {
		_ = testcontainers.TerminateContainer(s.pgContainer)
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.db.ExecContext(s.ctx, `TRUNCATE products RESTART IDENTITY`)
	require.NoError(s.T(), err)
}

func (s *PostgresStoreSuite) TestPing() {
	assert.NoError(s.T(), s.store.Ping(s.ctx))
}

func (s *PostgresStoreSuite) TestCreateAndGet() {
	created, err := s.store.Create(s.ctx, NewProduct{Name: "New Product", Price: ptr(19.99), Description: ptr("A newly added product")})
	s.Require().NoError(err)
	s.Equal(int64(1), created.ID)

	got, err := s.store.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created, got)

	bare, err := s.store.Create(s.ctx, NewProduct{Name: "Bare"})
	s.Require().NoError(err)
	s.Nil(bare.Price)
	s.Nil(bare.Description)

	_, err = s.store.Get(s.ctx, 9999)
	s.ErrorIs(err, ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateMergesPresentFields() {
	p, err := s.store.Create(s.ctx, NewProduct{Name: "Lamp", Price: ptr(10.0), Description: ptr("desk lamp")})
	s.Require().NoError(err)

	got, err := s.store.Update(s.ctx, p.ID, Patch{Name: ptr("Updated Product"), Price: ptr(29.99)})
	s.Require().NoError(err)
	s.Equal(p.ID, got.ID)
	s.Equal("Updated Product", got.Name)
	s.Equal(29.99, *got.Price)
	s.Equal("desk lamp", *got.Description)

	_, err = s.store.Update(s.ctx, 9999, Patch{Name: ptr("x")})
	s.ErrorIs(err, ErrNotFound)
}

func (s *PostgresStoreSuite) TestRemoveKeepsOrderAndNeverReusesIDs() {
	seeded, err := SeedIfEmpty(s.ctx, s.store, DefaultSeed())
	s.Require().NoError(err)
	s.True(seeded)

	s.Require().NoError(s.store.Remove(s.ctx, 3))
	s.ErrorIs(s.store.Remove(s.ctx, 3), ErrNotFound)

	p, err := s.store.Create(s.ctx, NewProduct{Name: "Webcam"})
	s.Require().NoError(err)
	s.Equal(int64(4), p.ID)

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	ids := make([]int64, 0, len(all))
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	s.Equal([]int64{1, 2, 4}, ids)
}
