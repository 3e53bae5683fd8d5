package migrate

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir checks the migrations in a directory on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	return validateFS(os.DirFS(dir), ".")
}

// ValidateEmbedded checks the migrations compiled into the binary.
func ValidateEmbedded() error {
	return validateFS(embedded, embeddedDir)
}

// validateFS reports every problem found, not just the first.
func validateFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	var errs error
	versions := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			errs = multierr.Append(errs, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name))
			continue
		}
		if prev, dup := versions[m[1]]; dup {
			errs = multierr.Append(errs, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name))
		}
		versions[m[1]] = name

		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("read file %q: %w", name, err))
			continue
		}
		errs = multierr.Append(errs, checkAnnotations(name, body))
	}
	return errs
}

// checkAnnotations requires one Up section before one Down section and balanced
// StatementBegin/StatementEnd pairs.
func checkAnnotations(name string, body []byte) error {
	var (
		up, down, open int
		errs           error
	)
	sc := bufio.NewScanner(bytes.NewReader(body))
	for line := 1; sc.Scan(); line++ {
		directive, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "-- +goose ")
		if !ok {
			continue
		}
		switch strings.Fields(directive + " ")[0] {
		case "Up":
			up++
			if down > 0 {
				errs = multierr.Append(errs, fmt.Errorf("migration %q line %d: Up after Down", name, line))
			}
		case "Down":
			down++
		case "StatementBegin":
			if open > 0 {
				errs = multierr.Append(errs, fmt.Errorf("migration %q line %d: nested StatementBegin", name, line))
			}
			open++
		case "StatementEnd":
			if open == 0 {
				errs = multierr.Append(errs, fmt.Errorf("migration %q line %d: StatementEnd without StatementBegin", name, line))
				continue
			}
			open--
		}
	}
	if up != 1 {
		errs = multierr.Append(errs, fmt.Errorf("migration %q needs exactly one \"-- +goose Up\", found %d", name, up))
	}
	if down != 1 {
		errs = multierr.Append(errs, fmt.Errorf("migration %q needs exactly one \"-- +goose Down\", found %d", name, down))
	}
	if open != 0 {
		errs = multierr.Append(errs, fmt.Errorf("migration %q has an unterminated StatementBegin", name))
	}
	return errs
}
