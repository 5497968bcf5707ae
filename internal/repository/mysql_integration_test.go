//go:build integration

package repository

import (
    "context"
    "database/sql"
    "os"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/seat-inventory/internal/database"
    "github.com/iliyamo/seat-inventory/internal/model"
    "github.com/iliyamo/seat-inventory/internal/tenant"
)

// openTestDB connects with the TEST_DB_* variables and skips when they are
// not set:
//
//	TEST_DB_HOST=127.0.0.1 TEST_DB_USER=root TEST_DB_NAME=inventory_test go test -tags integration ./internal/repository
func openTestDB(t *testing.T) *sql.DB {
    t.Helper()
    host := os.Getenv("TEST_DB_HOST")
    if host == "" {
        t.Skip("TEST_DB_HOST not set")
    }
    port := os.Getenv("TEST_DB_PORT")
    if port == "" {
        port = "3306"
    }
    db, err := database.Open(database.Options{
        User: os.Getenv("TEST_DB_USER"), Pass: os.Getenv("TEST_DB_PASS"),
        Host: host, Port: port, Name: os.Getenv("TEST_DB_NAME"),
    })
    require.NoError(t, err)
    require.NoError(t, database.Migrate(context.Background(), db))
    t.Cleanup(func() { _ = db.Close() })
    return db
}

// seedSeating creates a fresh event seating with the given seats and returns
// its id.  Event ids are time based so runs do not collide.
func seedSeating(t *testing.T, ctx context.Context, cat *Catalog, uids ...string) uint64 {
    t.Helper()
    esid, err := cat.CreateEventSeating(ctx, model.EventSeatingLayout{
        EventID: uint64(time.Now().UnixNano()), LayoutID: 1,
        Status: model.EventSeatingActive, PublishedAt: time.Now().UTC(),
    })
    require.NoError(t, err)
    seats := make([]model.EventSeat, 0, len(uids))
    for _, u := range uids {
        seats = append(seats, model.EventSeat{EventSeatingID: esid, SeatUID: u, Status: model.SeatAvailable})
    }
    require.NoError(t, cat.CreateSeats(ctx, seats))
    return esid
}

func TestTransitionSeatCAS(t *testing.T) {
    db := openTestDB(t)
    ctx := tenant.WithID(context.Background(), 901)
    cat := NewCatalog(db)
    inv := NewInventory(db)
    esid := seedSeating(t, ctx, cat, "A-1-1")

    seats, err := inv.SeatsByUID(ctx, esid, []string{"A-1-1"})
    require.NoError(t, err)
    require.Len(t, seats, 1)
    assert.Equal(t, uint32(1), seats[0].Version)

    sess := "sess-1"
    ok, err := inv.TransitionSeat(ctx, model.SeatTransition{
        EventSeatingID: esid, SeatUID: "A-1-1", ExpectedVersion: 1,
        From: model.SeatAvailable, To: model.SeatHeld, SessionUID: &sess,
    })
    require.NoError(t, err)
    assert.True(t, ok)

    // same expected version again loses
    ok, err = inv.TransitionSeat(ctx, model.SeatTransition{
        EventSeatingID: esid, SeatUID: "A-1-1", ExpectedVersion: 1,
        From: model.SeatAvailable, To: model.SeatHeld, SessionUID: &sess,
    })
    require.NoError(t, err)
    assert.False(t, ok)

    other := "sess-2"
    ok, err = inv.TransitionSeat(ctx, model.SeatTransition{
        EventSeatingID: esid, SeatUID: "A-1-1", ExpectedVersion: 2,
        From: model.SeatHeld, To: model.SeatAvailable, ExpectSession: &other,
    })
    require.NoError(t, err)
    assert.False(t, ok, "session guard")

    seats, err = inv.SeatsByUID(ctx, esid, []string{"A-1-1"})
    require.NoError(t, err)
    assert.True(t, seats[0].HeldBy("sess-1"))
    assert.Equal(t, uint32(2), seats[0].Version)
}

func TestTenantIsolation(t *testing.T) {
    db := openTestDB(t)
    own := tenant.WithID(context.Background(), 902)
    foreign := tenant.WithID(context.Background(), 903)
    cat := NewCatalog(db)
    esid := seedSeating(t, own, cat, "B-1-1")

    seats, err := cat.SeatsByUID(foreign, esid, []string{"B-1-1"})
    require.NoError(t, err)
    assert.Empty(t, seats)

    _, err = cat.EventSeatingByID(foreign, esid)
    assert.ErrorIs(t, err, ErrNotFound)
}

func TestHoldsAndExpiredSweepListing(t *testing.T) {
    db := openTestDB(t)
    ctx := tenant.WithID(context.Background(), 904)
    cat := NewCatalog(db)
    inv := NewInventory(db)
    esid := seedSeating(t, ctx, cat, "C-1-1", "C-1-2")

    past := time.Now().UTC().Add(-time.Minute)
    require.NoError(t, inv.CreateHold(ctx, model.SeatHold{
        EventSeatingID: esid, SeatUID: "C-1-1", SessionUID: "s", HoldToken: NewHoldToken(), ExpiresAt: past,
    }))
    err := inv.CreateHold(ctx, model.SeatHold{
        EventSeatingID: esid, SeatUID: "C-1-1", SessionUID: "s2", HoldToken: NewHoldToken(), ExpiresAt: past,
    })
    assert.ErrorIs(t, err, ErrConflict)

    expired, err := NewAdminRepo(db).ExpiredHolds(context.Background(), time.Now().UTC(), 1000)
    require.NoError(t, err)
    var found bool
    for _, h := range expired {
        if h.EventSeatingID == esid && h.SeatUID == "C-1-1" {
            found = true
            assert.Equal(t, uint64(904), h.TenantID)
        }
    }
    assert.True(t, found)

    require.NoError(t, inv.DeleteHold(ctx, esid, "C-1-1"))
    holds, err := inv.HoldsBySeat(ctx, esid, []string{"C-1-1"})
    require.NoError(t, err)
    assert.Empty(t, holds)
}

func TestWithinTxRollsBack(t *testing.T) {
    db := openTestDB(t)
    ctx := tenant.WithID(context.Background(), 905)
    cat := NewCatalog(db)
    esid := seedSeating(t, ctx, cat, "D-1-1")

    sentinel := assert.AnError
    err := cat.WithinTx(ctx, func(ctx context.Context) error {
        ok, err := cat.TransitionSeat(ctx, model.SeatTransition{
            EventSeatingID: esid, SeatUID: "D-1-1", ExpectedVersion: 1,
            From: model.SeatAvailable, To: model.SeatBlocked,
        })
        require.NoError(t, err)
        require.True(t, ok)
        return sentinel
    })
    assert.ErrorIs(t, err, sentinel)

    seats, err := cat.SeatsByUID(ctx, esid, []string{"D-1-1"})
    require.NoError(t, err)
    assert.Equal(t, model.SeatAvailable, seats[0].Status)
    assert.Equal(t, uint32(1), seats[0].Version)
}

func TestLockSessionHoldsSerializesSession(t *testing.T) {
    db := openTestDB(t)
    ctx := tenant.WithID(context.Background(), 906)
    cat := NewCatalog(db)
    inv := NewInventory(db)
    esid := seedSeating(t, ctx, cat, "E-1-1", "E-1-2")

    locked := make(chan struct{})
    firstDone := make(chan error, 1)
    go func() {
        firstDone <- inv.WithinTx(ctx, func(ctx context.Context) error {
            if err := inv.LockSessionHolds(ctx, esid, "s1"); err != nil {
                return err
            }
            close(locked)
            time.Sleep(200 * time.Millisecond)
            return inv.CreateHold(ctx, model.SeatHold{
                EventSeatingID: esid, SeatUID: "E-1-1", SessionUID: "s1",
                HoldToken: NewHoldToken(), ExpiresAt: time.Now().UTC().Add(time.Hour),
            })
        })
    }()

    <-locked
    var seen int
    err := inv.WithinTx(ctx, func(ctx context.Context) error {
        if err := inv.LockSessionHolds(ctx, esid, "s1"); err != nil {
            return err
        }
        var err error
        seen, err = inv.CountActiveHolds(ctx, esid, "s1", time.Now().UTC())
        return err
    })
    require.NoError(t, err)
    require.NoError(t, <-firstDone)
    assert.Equal(t, 1, seen, "second transaction waits for the first and sees its hold")

    n, err := NewAdminRepo(db).PurgeSessionLocks(context.Background(), time.Now().UTC().Add(time.Minute))
    require.NoError(t, err)
    assert.GreaterOrEqual(t, n, int64(1))
}
