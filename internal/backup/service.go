// Package backup implements nightly off-box archival of the SQLite
// databases: a VACUUM INTO snapshot per database, bundled into a
// checksummed tar.gz and uploaded to S3-compatible object storage, with
// rotation keeping a minimum of 3 backups regardless of age.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sermady/stockdata-core/internal/database"
)

// minBackupsToKeep is the floor RotateOldBackups never deletes below,
// regardless of how old the remaining backups are.
const minBackupsToKeep = 3

// Metadata describes one backup archive's contents.
type Metadata struct {
	Timestamp time.Time      `json:"timestamp"`
	Databases []DBMetadata   `json:"databases"`
}

// DBMetadata describes one database file inside an archive.
type DBMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// Info describes one backup archive already in object storage.
type Info struct {
	Filename  string
	Timestamp time.Time
	SizeBytes int64
	AgeHours  int64
}

// Service snapshots the given databases and ships them to S3-compatible
// storage. client may be nil, in which case CreateAndUpload returns an
// error rather than silently skipping the upload - backup is meant to
// run unattended off a scheduler tick and a misconfigured destination
// should be loud.
type Service struct {
	databases map[string]*database.DB
	dataDir   string
	client    *S3Client
	log       zerolog.Logger
}

// New builds a Service over the given named databases (e.g. "stockdata",
// "cache" - matching database.DB.Name()).
func New(databases map[string]*database.DB, dataDir string, client *S3Client, log zerolog.Logger) *Service {
	return &Service{
		databases: databases,
		dataDir:   dataDir,
		client:    client,
		log:       log.With().Str("component", "backup").Logger(),
	}
}

// CreateAndUpload snapshots every database via VACUUM INTO, archives
// them with a metadata manifest into one tar.gz, and uploads it.
func (s *Service) CreateAndUpload(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("backup: no object storage destination configured")
	}

	started := time.Now()
	staging := filepath.Join(s.dataDir, "backup-staging")
	if err := os.MkdirAll(staging, 0755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	meta := Metadata{Timestamp: started.UTC()}
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dst := filepath.Join(staging, name+".db")
		if err := s.snapshotOne(ctx, name, dst); err != nil {
			return fmt.Errorf("snapshot %s: %w", name, err)
		}
		if err := verifyIntegrity(dst); err != nil {
			return fmt.Errorf("verify %s backup: %w", name, err)
		}

		info, err := os.Stat(dst)
		if err != nil {
			return fmt.Errorf("stat %s backup: %w", name, err)
		}
		checksum, err := checksumFile(dst)
		if err != nil {
			return fmt.Errorf("checksum %s backup: %w", name, err)
		}
		meta.Databases = append(meta.Databases, DBMetadata{
			Name: name, Filename: name + ".db", SizeBytes: info.Size(), Checksum: checksum,
		})
	}

	metaPath := filepath.Join(staging, "backup-metadata.json")
	if err := writeMetadata(metaPath, meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	archiveName := fmt.Sprintf("stockdata-backup-%s.tar.gz", started.Format("2006-01-02-150405"))
	archivePath := filepath.Join(staging, archiveName)
	if err := createArchive(archivePath, staging, append(names, "backup-metadata")); err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.client.Upload(ctx, archiveName, archiveFile, archiveInfo.Size()); err != nil {
		return fmt.Errorf("upload archive: %w", err)
	}

	s.log.Info().
		Dur("elapsed_ms", time.Since(started)).
		Str("archive", archiveName).
		Int64("size_kb", archiveInfo.Size()/1024).
		Msg("backup uploaded")
	return nil
}

// snapshotOne runs VACUUM INTO against the live database connection, an
// atomic way to snapshot a WAL-mode SQLite database without stopping
// writers.
func (s *Service) snapshotOne(ctx context.Context, name, dst string) error {
	db, ok := s.databases[name]
	if !ok {
		return fmt.Errorf("no such database %q", name)
	}
	_, err := db.Conn().ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", dst))
	return err
}

// verifyIntegrity opens the freshly written snapshot file independently
// and runs PRAGMA integrity_check, catching a truncated or corrupt
// VACUUM INTO before it is ever uploaded.
func verifyIntegrity(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// ListBackups lists every backup archive in object storage, newest first.
func (s *Service) ListBackups(ctx context.Context) ([]Info, error) {
	objects, err := s.client.List(ctx, "stockdata-backup-")
	if err != nil {
		return nil, err
	}

	out := make([]Info, 0, len(objects))
	now := time.Now()
	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, "stockdata-backup-") || !strings.HasSuffix(obj.Key, ".tar.gz") {
			continue
		}
		ts := strings.TrimSuffix(strings.TrimPrefix(obj.Key, "stockdata-backup-"), ".tar.gz")
		timestamp, err := time.Parse("2006-01-02-150405", ts)
		if err != nil {
			s.log.Warn().Str("filename", obj.Key).Msg("skipping backup with unparseable timestamp")
			continue
		}
		out = append(out, Info{
			Filename: obj.Key, Timestamp: timestamp, SizeBytes: obj.Size,
			AgeHours: int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// RotateOldBackups deletes archives older than retentionDays, always
// keeping at least minBackupsToKeep regardless of age. retentionDays of
// 0 means keep everything beyond the minimum.
func (s *Service) RotateOldBackups(ctx context.Context, retentionDays int) error {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	if len(backups) <= minBackupsToKeep {
		return nil
	}

	var cutoff time.Time
	if retentionDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -retentionDays)
	}

	deleted := 0
	for i, b := range backups {
		if i < minBackupsToKeep || retentionDays == 0 {
			continue
		}
		if b.Timestamp.Before(cutoff) {
			if err := s.client.Delete(ctx, b.Filename); err != nil {
				s.log.Error().Err(err).Str("filename", b.Filename).Msg("failed to delete old backup")
				continue
			}
			deleted++
		}
	}
	s.log.Info().Int("deleted", deleted).Int("remaining", len(backups)-deleted).Msg("backup rotation finished")
	return nil
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil)), nil
}

func writeMetadata(path string, meta Metadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func createArchive(archivePath, sourceDir string, basenames []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer archiveFile.Close()

	gw := gzip.NewWriter(archiveFile)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	for _, basename := range basenames {
		filename := basename + ".db"
		if basename == "backup-metadata" {
			filename = "backup-metadata.json"
		}
		if err := addFile(tw, filepath.Join(sourceDir, filename), filename); err != nil {
			return fmt.Errorf("add %s: %w", filename, err)
		}
	}
	return nil
}

func addFile(tw *tar.Writer, path, nameInArchive string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	if err := tw.WriteHeader(&tar.Header{
		Name: nameInArchive, Size: info.Size(), Mode: int64(info.Mode()), ModTime: info.ModTime(),
	}); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
