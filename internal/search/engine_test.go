package search

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/angelmondragon/rentchain-properties/pkg/db/dbtest"
	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
	"github.com/angelmondragon/rentchain-properties/pkg/enums"
)

type seed struct {
	title     string
	city      string
	rent      int64
	rental    enums.RentalType
	lat, lng  *float64
	active    bool
	available bool
}

func seedProperties(t *testing.T, conn *gorm.DB, seeds ...seed) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, s := range seeds {
		p := models.Property{
			Title:        s.title,
			Country:      "France",
			City:         s.city,
			Address:      "1 rue de test",
			Description:  "seeded",
			RentalType:   s.rental,
			RentAmount:   s.rent,
			Latitude:     s.lat,
			Longitude:    s.lng,
			OwnerID:      "owner-1",
			OwnerAddress: "0x0000000000000000000000000000000000000001",
			SyncState:    enums.SyncStateSynced,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, conn.Create(&p).Error)
		// gorm skips zero-valued bools on insert when the column has a default
		require.NoError(t, conn.Model(&p).Updates(map[string]any{"is_active": s.active, "is_available": s.available}).Error)
	}
}

func titles(props []models.Property) []string {
	out := make([]string, 0, len(props))
	for _, p := range props {
		out = append(out, p.Title)
	}
	return out
}

func TestSearchPredicates(t *testing.T) {
	conn := dbtest.Open(t)
	seedProperties(t, conn,
		seed{title: "cheap", city: "Paris", rent: 400, rental: enums.RentalTypeMonthly, active: true, available: true},
		seed{title: "mid", city: "paris", rent: 900, rental: enums.RentalTypeDaily, active: true, available: true},
		seed{title: "dear", city: "Lyon", rent: 2000, rental: enums.RentalTypeMonthly, active: true, available: true},
		seed{title: "delisted", city: "Paris", rent: 900, rental: enums.RentalTypeMonthly, active: false, available: true},
		seed{title: "taken", city: "Paris", rent: 900, rental: enums.RentalTypeMonthly, active: true, available: false},
	)
	engine := NewEngine(conn)
	ctx := context.Background()

	all, err := engine.Search(ctx, Criteria{}, Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"dear", "mid", "cheap"}, titles(all))

	byCity, err := engine.Search(ctx, Criteria{City: ptr("PARIS")}, Page{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cheap", "mid"}, titles(byCity))

	byRent, err := engine.Search(ctx, Criteria{MinRent: ptr(int64(400)), MaxRent: ptr(int64(900))}, Page{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cheap", "mid"}, titles(byRent))

	byType, err := engine.Search(ctx, Criteria{RentalType: ptr(enums.RentalTypeDaily)}, Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"mid"}, titles(byType))

	// a radius alone is ignored
	radiusOnly, err := engine.Search(ctx, Criteria{RadiusKm: ptr(1.0)}, Page{})
	require.NoError(t, err)
	assert.Len(t, radiusOnly, 3)

	paged, err := engine.Search(ctx, Criteria{}, Page{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"mid", "cheap"}, titles(paged))
}

func TestSearchGeoDistance(t *testing.T) {
	conn := dbtest.Open(t)
	seedProperties(t, conn,
		seed{title: "hotel-de-ville", city: "Paris", rent: 1000, rental: enums.RentalTypeMonthly, lat: ptr(48.8566), lng: ptr(2.3522), active: true, available: true},
		seed{title: "versailles", city: "Versailles", rent: 1000, rental: enums.RentalTypeMonthly, lat: ptr(48.8049), lng: ptr(2.1204), active: true, available: true},
		seed{title: "unlocated", city: "Paris", rent: 1000, rental: enums.RentalTypeMonthly, active: true, available: true},
	)
	engine := NewEngine(conn)
	ctx := context.Background()
	eiffel := Criteria{Latitude: ptr(48.8584), Longitude: ptr(2.2945)}

	near := eiffel
	near.RadiusKm = ptr(4.0)
	got, err := engine.Search(ctx, near, Page{})
	require.NoError(t, err)
	assert.Empty(t, got)

	// default radius of 5 km reaches the Hôtel de Ville (about 4.2 km away)
	got, err = engine.Search(ctx, eiffel, Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"hotel-de-ville"}, titles(got))

	wide := eiffel
	wide.RadiusKm = ptr(20.0)
	got, err = engine.Search(ctx, wide, Page{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"hotel-de-ville", "versailles"}, titles(got))

	got, err = engine.Search(ctx, wide, Page{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"hotel-de-ville"}, titles(got))
}

func TestSearchRadiusMonotonic(t *testing.T) {
	conn := dbtest.Open(t)
	var seeds []seed
	for i := 0; i < 24; i++ {
		lat, lng := destination(45.764, 4.8357, float64(i*15), float64(i)*1.7)
		seeds = append(seeds, seed{title: fmt.Sprintf("p%02d", i), city: "Lyon", rent: 700, rental: enums.RentalTypeMonthly, lat: ptr(lat), lng: ptr(lng), active: true, available: true})
	}
	seedProperties(t, conn, seeds...)
	engine := NewEngine(conn)

	prev := map[string]bool{}
	for _, r := range []float64{0.5, 2, 5, 10, 20, 40, 80} {
		got, err := engine.Search(context.Background(), Criteria{Latitude: ptr(45.764), Longitude: ptr(4.8357), RadiusKm: ptr(r)}, Page{})
		require.NoError(t, err)
		current := map[string]bool{}
		for _, p := range got {
			current[p.Title] = true
		}
		for title := range prev {
			assert.True(t, current[title], "radius %v lost %s", r, title)
		}
		prev = current
	}
	assert.Len(t, prev, 24)
}

func TestSearchNarrowingNeverAddsResults(t *testing.T) {
	conn := dbtest.Open(t)
	var seeds []seed
	for i := 0; i < 18; i++ {
		s := seed{title: fmt.Sprintf("p%02d", i), city: "Lyon", rent: int64(300 + i*100), rental: enums.RentalTypeMonthly, active: true, available: true}
		if i%3 != 0 {
			lat, lng := destination(45.764, 4.8357, float64(i*20), float64(i)*0.6)
			s.lat, s.lng = ptr(lat), ptr(lng)
		}
		seeds = append(seeds, s)
	}
	seedProperties(t, conn, seeds...)
	engine := NewEngine(conn)

	located := Criteria{Latitude: ptr(45.764), Longitude: ptr(4.8357), RadiusKm: ptr(6.3)}
	withRent := func(c Criteria, min, max int64) Criteria {
		c.MinRent, c.MaxRent = ptr(min), ptr(max)
		return c
	}
	unlocated := func(c Criteria) Criteria {
		c.Latitude, c.Longitude = nil, nil
		return c
	}

	cases := []struct {
		name          string
		narrow, broad Criteria
	}{
		{"raise min rent", Criteria{MinRent: ptr(int64(900))}, Criteria{MinRent: ptr(int64(500))}},
		{"lower max rent", Criteria{MaxRent: ptr(int64(800))}, Criteria{MaxRent: ptr(int64(1600))}},
		{"tighten both bounds", withRent(Criteria{}, 700, 1100), withRent(Criteria{}, 400, 1800)},
		{"tighten rent with location", withRent(located, 700, 1100), withRent(located, 400, 1800)},
		{"drop location", located, unlocated(located)},
		{"drop location with rent", withRent(located, 500, 1500), unlocated(withRent(located, 500, 1500))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			narrow, err := engine.Search(context.Background(), tc.narrow, Page{})
			require.NoError(t, err)
			broad, err := engine.Search(context.Background(), tc.broad, Page{})
			require.NoError(t, err)

			require.NotEmpty(t, narrow)
			assert.Less(t, len(narrow), len(broad))
			assert.Subset(t, titles(broad), titles(narrow))
		})
	}
}

func TestSearchPostgresPushesDistanceDown(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "properties" WHERE .*LOWER\("city"\) = LOWER\(\$3\).*`+
		regexp.QuoteMeta(`acos(LEAST(1.0, GREATEST(-1.0,`)+`.* < \$8\)? ORDER BY created_at DESC,id`).
		WithArgs(true, true, "Paris", EarthRadiusKm, 48.8584, 48.8584, 2.2945, 5.0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}))

	got, err := NewEngine(conn).Search(context.Background(), Criteria{
		City:      ptr("Paris"),
		Latitude:  ptr(48.8584),
		Longitude: ptr(2.2945),
	}, Page{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
