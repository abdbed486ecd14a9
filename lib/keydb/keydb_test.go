package keydb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollectionInsertDedup(t *testing.T) {
	col := NewCollection()

	ok := col.Insert(&Code{
		Description: "5 Golden Keys",
		Code:        "aaaaa-bbbbb-ccccc-ddddd-eeeee",
		Platform:    PlatformSteam,
		Game:        GameBL3,
	})
	require.True(t, ok)

	// same identity, different metadata
	ok = col.Insert(&Code{
		Description: "five golden keys (reposted)",
		Code:        "AAAAA-BBBBB-CCCCC-DDDDD-EEEEE",
		Platform:    PlatformSteam,
		Game:        GameBL3,
		Expires:     "2026-01-01",
		Note:        "from another feed",
	})
	require.False(t, ok)
	require.Equal(t, 1, col.Len())

	got, found := col.Get(Key{
		Code:     "AAAAA-BBBBB-CCCCC-DDDDD-EEEEE",
		Platform: PlatformSteam,
		Game:     GameBL3,
	})
	require.True(t, found)
	require.Equal(t, "5 Golden Keys", got.Description)
	require.Equal(t, "", got.Expires)

	// different platform is a different record
	ok = col.Insert(&Code{
		Code:     "aaaaa-bbbbb-ccccc-ddddd-eeeee",
		Platform: PlatformEpic,
		Game:     GameBL3,
	})
	require.True(t, ok)
	require.Equal(t, 2, col.Len())
}

func TestCollectionOrder(t *testing.T) {
	col := NewCollection()
	codes := []string{"ccccc", "aaaaa", "bbbbb"}
	for _, c := range codes {
		col.Insert(&Code{Code: c, Platform: PlatformSteam, Game: GameBL2})
	}

	all := col.All()
	require.Len(t, all, 3)
	for i, c := range codes {
		require.Equal(t, normalizeCode(c), all[i].Code)
	}
}

func TestGoldenKeys(t *testing.T) {
	testCases := []struct {
		description string
		expected    int
	}{
		{"5 Golden Keys", 5},
		{"Golden Key", 1},
		{"3 gold keys", 3},
		{"10 Skeleton Keys (bl3 event)", 10},
		{"Maya's head skin", 0},
		{"", 0},
		{"75 golden keys!!", 75},
	}
	for _, tc := range testCases {
		c := &Code{Description: tc.description}
		require.Equal(t, tc.expected, c.GoldenKeys(), "description: %q", tc.description)
	}
}

func TestParsePlatform(t *testing.T) {
	for _, s := range []string{"steam", "Steam", " steam "} {
		p, err := ParsePlatform(s)
		require.NoError(t, err)
		require.Equal(t, PlatformSteam, p)
	}
	p, err := ParsePlatform("playstation")
	require.NoError(t, err)
	require.Equal(t, PlatformPSN, p)

	_, err = ParsePlatform("dreamcast")
	require.Error(t, err)
}

func TestParseGame(t *testing.T) {
	g, err := ParseGame("bl3")
	require.NoError(t, err)
	require.Equal(t, GameBL3, g)

	g, err = ParseGame("Borderlands 2")
	require.NoError(t, err)
	require.Equal(t, GameBL2, g)

	_, err = ParseGame("halflife3")
	require.Error(t, err)
}
