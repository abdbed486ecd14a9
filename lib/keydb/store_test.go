package keydb

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/Fabbi/autoshift/lib/telemetry"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"
)

func setup(t testing.TB) (Store, func()) {
	cleanup := telemetry.SetupForTesting(t, "test:lib/keydb")

	sqlite, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	_, err = sqlite.Exec(Schema)
	if err != nil {
		t.Fatal(err)
	}

	return NewStore(sqlite), cleanup
}

func TestStore(t *testing.T) {
	store, cleanup := setup(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	seed := []*Code{
		{Description: "5 Golden Keys", Code: "11111-11111-11111-11111-11111", Platform: PlatformSteam, Game: GameBL3},
		{Description: "Maya's head", Code: "22222-22222-22222-22222-22222", Platform: PlatformPSN, Game: GameBL2},
		{Description: "3 Golden Keys", Code: "33333-33333-33333-33333-33333", Platform: PlatformUniversal, Game: GameBL3},
		{Description: "Golden Key", Code: "44444-44444-44444-44444-44444", Platform: PlatformSteam, Game: GameBL3, Redeemed: true},
	}
	for _, c := range seed {
		inserted, err := store.Insert(ctx, c)
		require.NoError(t, err)
		require.True(t, inserted)
		require.NotZero(t, c.ID)
	}

	// duplicate identity is a no-op
	inserted, err := store.Insert(ctx, &Code{
		Description: "5 golden keys (repost)",
		Code:        "11111-11111-11111-11111-11111",
		Platform:    PlatformSteam,
		Game:        GameBL3,
	})
	require.NoError(t, err)
	require.False(t, inserted)

	{
		// a platform filter picks up universal records too,
		// redeemed records are skipped by default
		codes, err := store.Query(ctx, PlatformSteam, GameBL3, false)
		require.NoError(t, err)
		require.Len(t, codes, 2)
		require.Equal(t, "11111-11111-11111-11111-11111", codes[0].Code)
		require.Equal(t, PlatformUniversal, codes[1].Platform)
	}
	{
		codes, err := store.Query(ctx, PlatformSteam, GameBL3, true)
		require.NoError(t, err)
		require.Len(t, codes, 3)
	}
	{
		// unfiltered query returns everything in insertion order
		codes, err := store.Query(ctx, "", "", true)
		require.NoError(t, err)
		require.Len(t, codes, len(seed))
		for i, c := range seed {
			require.Equal(t, c.Code, codes[i].Code)
		}
	}
}

func TestStoreSetRedeemed(t *testing.T) {
	store, cleanup := setup(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	code := &Code{
		Description: "Golden Key",
		Code:        "55555-55555-55555-55555-55555",
		Platform:    PlatformEpic,
		Game:        GameBL3,
	}
	_, err := store.Insert(ctx, code)
	require.NoError(t, err)

	code.SetNote("already redeemed on this account")
	require.True(t, code.Dirty())
	err = store.SetRedeemed(ctx, code)
	require.NoError(t, err)
	require.False(t, code.Dirty())

	codes, err := store.Query(ctx, PlatformEpic, GameBL3, false)
	require.NoError(t, err)
	require.Empty(t, codes)

	codes, err = store.Query(ctx, PlatformEpic, GameBL3, true)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	require.True(t, codes[0].Redeemed)
	require.Equal(t, "already redeemed on this account", codes[0].Note)
}
