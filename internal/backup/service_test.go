package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sermady/stockdata-core/internal/database"
)

func TestCreateAndUpload_NoClientConfiguredIsAnError(t *testing.T) {
	svc := New(map[string]*database.DB{}, t.TempDir(), nil, zerolog.Nop())
	err := svc.CreateAndUpload(context.Background())
	assert.Error(t, err)
}

func TestSnapshotOne_VacuumIntoProducesVerifiableFile(t *testing.T) {
	dir := t.TempDir()
	db, err := database.New(database.Config{
		Path: filepath.Join(dir, "stockdata.db"), Profile: database.ProfileStandard, Name: "stockdata",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := New(map[string]*database.DB{"stockdata": db}, dir, nil, zerolog.Nop())

	dst := filepath.Join(dir, "snapshot.db")
	require.NoError(t, svc.snapshotOne(context.Background(), "stockdata", dst))
	require.NoError(t, verifyIntegrity(dst))

	checksum, err := checksumFile(dst)
	require.NoError(t, err)
	assert.Contains(t, checksum, "sha256:")
}

func TestCreateArchive_BundlesFilesAndMetadata(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stockdata.db"), []byte("fake db contents"), 0644))
	require.NoError(t, writeMetadata(filepath.Join(dir, "backup-metadata.json"), Metadata{
		Databases: []DBMetadata{{Name: "stockdata", Filename: "stockdata.db"}},
	}))

	archivePath := filepath.Join(dir, "out.tar.gz")
	require.NoError(t, createArchive(archivePath, dir, []string{"stockdata", "backup-metadata"}))

	info, err := os.Stat(archivePath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
