package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/klip/internal/entry"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleEntries() []entry.Entry {
	created := time.Date(2026, 3, 1, 12, 30, 45, 123456789, time.UTC)
	used := created.Add(time.Hour)
	return []entry.Entry{
		{
			ID:         "01J0000000000000000000000C",
			Kind:       entry.KindRichText,
			Text:       "Hello world",
			Formatted:  "<b>Hello</b> world",
			Preview:    "Hello world",
			SizeBytes:  29,
			CreatedAt:  created,
			LastUsedAt: &used,
			UsageCount: 3,
			Favorite:   true,
			Tags:       []string{"greeting", "Work"},
		},
		{
			ID:   "01J0000000000000000000000B",
			Kind: entry.KindImage,
			Image: &entry.ImageMeta{
				Path: "/data/images/B.png", Format: "png", Width: 640, Height: 480, Checksum: "00ff00ff00ff00ff",
			},
			Preview:   "Image 640x480",
			SizeBytes: 4096,
			CreatedAt: created.Add(-time.Minute),
			Assets: []entry.AssetRef{
				{Role: entry.RoleImage, Path: "/data/images/B.png"},
				{Role: entry.RoleThumbnail, Path: "/data/previews/B.png"},
			},
		},
		{
			ID:        "01J0000000000000000000000A",
			Kind:      entry.KindFileList,
			Files:     &entry.FileListMeta{Paths: []string{"/home/u/a.txt", "/home/u/dir"}, Directories: 1},
			Preview:   "a.txt, dir",
			SizeBytes: 12,
			CreatedAt: created.Add(-2 * time.Minute),
		},
	}
}

func TestSaveAndLoadEntries_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	want := sampleEntries()

	require.NoError(t, SaveEntries(ctx, db, want))

	got, err := LoadEntries(ctx, db)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSaveEntries_ReplacesPreviousSnapshot(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	all := sampleEntries()

	require.NoError(t, SaveEntries(ctx, db, all))
	require.NoError(t, SaveEntries(ctx, db, all[1:2]))

	n, err := CountEntries(ctx, db)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := LoadEntries(ctx, db)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, all[1].ID, got[0].ID)
}

func TestSaveEntries_Empty(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, SaveEntries(ctx, db, sampleEntries()))
	require.NoError(t, SaveEntries(ctx, db, nil))

	got, err := LoadEntries(ctx, db)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSaveEntries_DuplicateIDRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	all := sampleEntries()
	require.NoError(t, SaveEntries(ctx, db, all))

	dup := []entry.Entry{all[0], all[0]}
	require.Error(t, SaveEntries(ctx, db, dup))

	// The failed transaction leaves the previous snapshot intact.
	n, err := CountEntries(ctx, db)
	require.NoError(t, err)
	require.Equal(t, len(all), n)
}

func TestLoadEntries_PreservesNilOptionals(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	e := entry.Entry{
		ID:        "01J0000000000000000000000Z",
		Kind:      entry.KindText,
		Text:      "plain",
		Preview:   "plain",
		SizeBytes: 5,
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, SaveEntries(ctx, db, []entry.Entry{e}))

	got, err := LoadEntries(ctx, db)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Nil(t, got[0].LastUsedAt)
	require.Nil(t, got[0].Image)
	require.Nil(t, got[0].Files)
	require.Nil(t, got[0].Tags)
	require.Nil(t, got[0].Assets)
	require.False(t, got[0].Favorite)
}
