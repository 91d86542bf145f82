package db

import (
	"database/sql"
	"embed"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/strata/errors"
)

//go:embed sqlite/migrations/*.sql
var migrations embed.FS

const migrationsDir = "sqlite/migrations"

// bootstrapVersion creates schema_migrations itself, so it runs before anything is recorded
const bootstrapVersion = "000"

// migration is one embedded NNN_description.sql file
type migration struct {
	version string
	file    string
}

// loadMigrations returns the embedded migrations in version order.
// Versions must be unique; the bootstrap migration must be present.
func loadMigrations() ([]migration, error) {
	entries, err := migrations.ReadDir(migrationsDir)
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}

	seen := make(map[string]string, len(entries))
	var out []migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		version, _, ok := strings.Cut(name, "_")
		if !ok || version == "" {
			return nil, errors.Newf("migration %s is not named NNN_description.sql", name)
		}
		if prev, dup := seen[version]; dup {
			return nil, errors.Newf("migrations %s and %s share version %s", prev, name, version)
		}
		seen[version] = name
		out = append(out, migration{version: version, file: name})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	if len(out) == 0 || out[0].version != bootstrapVersion {
		return nil, errors.Newf("bootstrap migration %s is missing", bootstrapVersion)
	}
	return out, nil
}

// appliedVersions reads schema_migrations. A database that has never been
// migrated has no table yet and reports nothing applied.
func appliedVersions(db *sql.DB) (map[string]bool, error) {
	var tables int
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'",
	).Scan(&tables); err != nil {
		return nil, errors.Wrap(err, "check schema_migrations")
	}
	applied := make(map[string]bool)
	if tables == 0 {
		return applied, nil
	}

	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, errors.Wrap(err, "read schema_migrations")
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan schema_migrations")
		}
		applied[v] = true
	}
	return applied, errors.Wrap(rows.Err(), "read schema_migrations")
}

// Migrate brings the entity, attribute and relationship tables up to date.
// Each pending migration runs in its own transaction together with its
// schema_migrations row, so a failed file leaves no partial record.
// A nil logger migrates silently.
func Migrate(db *sql.DB, logger *zap.SugaredLogger) error {
	all, err := loadMigrations()
	if err != nil {
		return err
	}
	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	var ran int
	for _, m := range all {
		if applied[m.version] {
			continue
		}
		body, err := migrations.ReadFile(path.Join(migrationsDir, m.file))
		if err != nil {
			return errors.Wrapf(err, "read %s", m.file)
		}

		if logger != nil {
			logger.Infow("Applying strata schema migration",
				"migration", m.file,
				"version", m.version,
			)
		}
		if err := apply(db, m, string(body)); err != nil {
			return err
		}
		ran++
	}

	if logger != nil {
		logger.Infow("Strata schema up to date",
			"schema_version", all[len(all)-1].version,
			"applied", ran,
			"total_migrations", len(all),
		)
	}
	return nil
}

func apply(db *sql.DB, m migration, body string) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrapf(err, "begin tx for %s", m.file)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(body); err != nil {
		return errors.Wrapf(err, "execute %s", m.file)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
		return errors.Wrapf(err, "record %s", m.file)
	}
	return errors.Wrapf(tx.Commit(), "commit %s", m.file)
}
