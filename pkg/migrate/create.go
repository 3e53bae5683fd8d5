package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

// maxVersionBumps bounds the search for a free version when several
// migrations are created within the same second.
const maxVersionBumps = 60

var unsafeNameRe = regexp.MustCompile(`[^a-z0-9_]+`)

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes an empty Up/Down migration named after the
// current UTC second and returns its path.
func CreateSQLMigration(dir, name string) (string, error) {
	return createAt(dir, name, time.Now().UTC())
}

func createAt(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", errors.New("dir is required")
	}
	slug := slugify(name)
	if slug == "" {
		return "", fmt.Errorf("name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	version, err := freeVersion(dir, now)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, version+"_"+slug+".sql")
	// O_EXCL: never overwrite an existing migration
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", path, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, migrationTemplate, slug); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}

// freeVersion returns the first timestamp at or after now that no existing
// migration in dir uses.
func freeVersion(dir string, now time.Time) (string, error) {
	taken := map[string]bool{}
	matches, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if v, _, ok := strings.Cut(filepath.Base(m), "_"); ok {
			taken[v] = true
		}
	}
	for i := 0; i < maxVersionBumps; i++ {
		if v := now.Add(time.Duration(i) * time.Second).Format(versionLayout); !taken[v] {
			return v, nil
		}
	}
	return "", fmt.Errorf("no free migration version near %s", now.Format(versionLayout))
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = unsafeNameRe.ReplaceAllString(slug, "_")
	return strings.Trim(slug, "_")
}
