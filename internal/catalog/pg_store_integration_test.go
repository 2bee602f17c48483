package catalog

import (
	"context"
	"testing"

	perrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/testutil"
	"github.com/stretchr/testify/suite"
)

// PgStoreSuite runs PgStore against a real PostgreSQL container.
type PgStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *PgStore
	seed  []Product
}

func (s *PgStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.store = NewPgStore(testutil.Postgres(s.T()))
	s.seed = SeedProducts()
	s.seed[1].Sizes = []string{"S", "M"}
	s.seed[1].NutritionalInfo = map[string]string{"Calories": "0kcal"}
	s.Require().NoError(s.store.Seed(s.ctx, s.seed))
}

func TestPgStoreSuite(t *testing.T) {
	testutil.SkipIfDisabled(t)
	suite.Run(t, new(PgStoreSuite))
}

func (s *PgStoreSuite) TestSeedIsUpsert() {
	// given
	updated := SeedProducts()
	updated[0].Stock = 3

	// when
	s.Require().NoError(s.store.Seed(s.ctx, updated))
	p, err := s.store.FindByID(s.ctx, "1")

	// then
	s.Require().NoError(err)
	s.Equal(3, p.Stock)
	s.Require().NoError(s.store.Seed(s.ctx, s.seed))
}

func (s *PgStoreSuite) TestFindAll() {
	// when
	all, err := s.store.FindAll(s.ctx)

	// then
	s.Require().NoError(err)
	s.Require().Len(all, len(s.seed))
	s.Equal("1", all[0].ID)
	s.True(all[0].Price.Equal(s.seed[0].Price))
	s.Require().NotNil(all[0].OriginalPrice)
	s.True(all[0].OriginalPrice.Equal(*s.seed[0].OriginalPrice))
	s.Nil(all[1].OriginalPrice)
}

func (s *PgStoreSuite) TestFindByID() {
	// when
	p, err := s.store.FindByID(s.ctx, "2")

	// then
	s.Require().NoError(err)
	s.Equal("Organic Cotton Scarf", p.Name)
	s.Equal([]string{"S", "M"}, p.Sizes)
	s.Equal("0kcal", p.NutritionalInfo["Calories"])
	s.Equal(5, p.Stock)
}

func (s *PgStoreSuite) TestFindByID_NotFound() {
	// when
	_, err := s.store.FindByID(s.ctx, "missing")

	// then
	s.ErrorIs(err, perrors.ErrProductNotFound)
}
