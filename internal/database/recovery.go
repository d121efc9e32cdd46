package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	backupPrefix = "plantops-"
	backupLayout = "20060102-150405"
)

// backupName names a backup taken at t. Names sort chronologically.
func backupName(t time.Time) string {
	return backupPrefix + t.UTC().Format(backupLayout) + ".db"
}

// backupTime recovers the timestamp from a name produced by backupName.
func backupTime(name string) (time.Time, bool) {
	stamp, ok := strings.CutPrefix(name, backupPrefix)
	if !ok {
		return time.Time{}, false
	}
	stamp, ok = strings.CutSuffix(stamp, ".db")
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(backupLayout, stamp)
	return t, err == nil
}

// RecoveryResult indicates the outcome of a recovery attempt.
type RecoveryResult int

const (
	// RecoverySuccess means the database was healthy or recovered in place.
	RecoverySuccess RecoveryResult = iota
	// RecoveryFromBackup means the database was replaced by a backup.
	RecoveryFromBackup
	// RecoveryFailed means every phase failed.
	RecoveryFailed
)

func (r RecoveryResult) String() string {
	switch r {
	case RecoverySuccess:
		return "success"
	case RecoveryFromBackup:
		return "restored_from_backup"
	case RecoveryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RecoveryReport describes what AttemptRecovery did.
type RecoveryReport struct {
	Result       RecoveryResult
	DatabasePath string
	BackupUsed   string
	Preserved    string
	WALRecovered bool
	Steps        []RecoveryStep
}

// RecoveryStep is one phase of a recovery attempt.
type RecoveryStep struct {
	Name      string
	Succeeded bool
	Message   string
	Duration  time.Duration
}

func (r *RecoveryReport) run(name string, fn func() (string, error)) bool {
	start := time.Now()
	msg, err := fn()

	step := RecoveryStep{Name: name, Succeeded: err == nil, Message: msg, Duration: time.Since(start)}
	if err != nil {
		step.Message = err.Error()
	}
	r.Steps = append(r.Steps, step)
	return step.Succeeded
}

// AttemptRecovery checks the database at dbPath before it is opened. A file
// failing the integrity check is first replayed from its WAL, then replaced
// by the newest backup in backupDir that passes the check. The damaged file
// is kept next to the original. A missing file is a first run.
func AttemptRecovery(ctx context.Context, dbPath, backupDir string) (*RecoveryReport, error) {
	report := &RecoveryReport{DatabasePath: dbPath}

	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		report.Steps = append(report.Steps, RecoveryStep{
			Name: "check_exists", Succeeded: true, Message: "database does not exist (first run)",
		})
		return report, nil
	}

	if report.run("integrity_check", func() (string, error) { return checkIntegrity(ctx, dbPath) }) {
		return report, nil
	}
	slog.Warn("database integrity check failed", "path", dbPath, "error", report.Steps[len(report.Steps)-1].Message)

	if _, err := os.Stat(dbPath + "-wal"); err == nil {
		if report.run("wal_recovery", func() (string, error) { return replayWAL(ctx, dbPath) }) &&
			report.run("post_wal_integrity", func() (string, error) { return checkIntegrity(ctx, dbPath) }) {
			report.WALRecovered = true
			slog.Info("database recovered via WAL replay", "path", dbPath)
			return report, nil
		}
	}

	if backupDir != "" {
		var backup string
		ok := report.run("backup_restoration", func() (string, error) {
			var err error
			backup, report.Preserved, err = restoreFromBackup(ctx, dbPath, backupDir)
			return backup, err
		})
		if ok {
			report.Result = RecoveryFromBackup
			report.BackupUsed = backup
			slog.Warn("database restored from backup", "path", dbPath, "backup", backup, "preserved", report.Preserved)
			return report, nil
		}
	}

	report.Result = RecoveryFailed
	return report, errors.New("all recovery attempts failed")
}

// checkIntegrity runs PRAGMA integrity_check on a read-only connection.
func checkIntegrity(ctx context.Context, path string) (string, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return "", fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return "", fmt.Errorf("running integrity check: %w", err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return "", fmt.Errorf("scanning integrity result: %w", err)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading integrity result: %w", err)
	}
	if len(problems) > 0 {
		return "", fmt.Errorf("integrity check failed: %s", strings.Join(problems, "; "))
	}
	return "ok", nil
}

// replayWAL opens the database read-write so SQLite replays the WAL, then
// folds it into the main file.
func replayWAL(ctx context.Context, path string) (string, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_txlock=immediate", path))
	if err != nil {
		return "", fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(RESTART)"); err != nil {
		return "", fmt.Errorf("WAL checkpoint: %w", err)
	}
	return "WAL checkpoint complete", nil
}

// restoreFromBackup copies the newest healthy backup over dbPath and returns
// the backup used and where the damaged file was moved.
func restoreFromBackup(ctx context.Context, dbPath, backupDir string) (backup, preserved string, err error) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return "", "", fmt.Errorf("reading backup directory: %w", err)
	}

	type candidate struct {
		path  string
		taken time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if t, ok := backupTime(e.Name()); ok {
			candidates = append(candidates, candidate{filepath.Join(backupDir, e.Name()), t})
		}
	}
	if len(candidates) == 0 {
		return "", "", errors.New("no backup files found")
	}

	slices.SortFunc(candidates, func(a, b candidate) int { return b.taken.Compare(a.taken) })

	for _, c := range candidates {
		if _, err := checkIntegrity(ctx, c.path); err != nil {
			slog.Debug("skipping damaged backup", "path", c.path, "error", err)
			continue
		}

		preserved = dbPath + ".corrupted." + time.Now().UTC().Format(backupLayout)
		if err := moveFile(dbPath, preserved); err != nil {
			slog.Warn("failed to preserve damaged database", "path", dbPath, "error", err)
			preserved = ""
		}
		os.Remove(dbPath + "-wal")
		os.Remove(dbPath + "-shm")

		if err := copyFile(c.path, dbPath); err != nil {
			return "", preserved, fmt.Errorf("copying backup: %w", err)
		}
		return c.path, preserved, nil
	}

	return "", "", errors.New("no healthy backup found")
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stating source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return out.Sync()
}
