package main

import (
	"context"
	"crypto/sha256"
	"embed"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// Pattern to match migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

func main() {
	v := config.NewViper()
	var (
		projectID   = flag.String("project", v.GetString("server.project"), "GCP project ID (or FINANCE_SERVER_PROJECT)")
		datasetID   = flag.String("dataset", v.GetString("server.dataset"), "BigQuery dataset ID (one per account)")
		ledgerTable = flag.String("ledger-table", v.GetString("server.ledger_table"), "Ledger table name")
		location    = flag.String("location", v.GetString("server.location"), "BigQuery location")
		appliedBy   = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		dryRun      = flag.Bool("dry-run", false, "List pending migrations without applying them")
	)
	flag.Parse()

	log, err := logger.New(v.GetString("logging.level"), v.GetString("logging.format"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *projectID == "" {
		log.Fatal().Msg("-project flag is required. Please specify your GCP project ID.")
	}
	for _, name := range []string{*datasetID, *ledgerTable} {
		if !domain.ValidTableName(name) {
			log.Fatal().Str("name", name).Msg("Invalid dataset or table name")
		}
	}

	ctx := context.Background()

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()
	client.Location = *location

	if err := ensureDataset(ctx, client, *datasetID, *location); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure dataset")
	}

	m := &migrator{
		client:    client,
		project:   *projectID,
		dataset:   *datasetID,
		appliedBy: *appliedBy,
		log:       log.With().Str("project", *projectID).Str("dataset", *datasetID).Logger(),
	}

	migrations, err := readMigrations(embedded, placeholders(*projectID, *datasetID, *ledgerTable))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	if err := m.run(ctx, migrations, *dryRun); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}

func placeholders(project, dataset, ledger string) map[string]string {
	return map[string]string{
		"{{PROJECT_ID}}":   project,
		"{{DATASET_ID}}":   dataset,
		"{{LEDGER_TABLE}}": ledger,
	}
}

// ensureDataset creates the account dataset when it does not exist yet.
func ensureDataset(ctx context.Context, client *bigquery.Client, dataset, location string) error {
	ds := client.Dataset(dataset)
	if _, err := ds.Metadata(ctx); err == nil {
		return nil
	}
	if err := ds.Create(ctx, &bigquery.DatasetMetadata{Location: location}); err != nil {
		return fmt.Errorf("ensureDataset: creating %s: %w", dataset, err)
	}
	return nil
}

type migrator struct {
	client    *bigquery.Client
	project   string
	dataset   string
	appliedBy string
	log       zerolog.Logger
}

func (m *migrator) table() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", m.project, m.dataset)
}

func (m *migrator) run(ctx context.Context, migrations []Migration, dryRun bool) error {
	m.log.Info().Int("count", len(migrations)).Msg("Found migration files")

	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	m.log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	pending, err := pendingMigrations(migrations, applied)
	if err != nil {
		return err
	}
	for _, mig := range pending {
		name := fmt.Sprintf("%04d_%s", mig.Version, mig.Name)
		if dryRun {
			m.log.Info().Str("migration", name).Msg("Pending")
			continue
		}
		m.log.Info().Str("migration", name).Msg("Applying")
		if err := m.exec(ctx, m.client.Query(mig.SQL)); err != nil {
			return fmt.Errorf("executing %s: %w", name, err)
		}
		if err := m.record(ctx, mig); err != nil {
			return fmt.Errorf("recording %s: %w", name, err)
		}
		m.log.Info().Str("migration", name).Msg("Applied")
	}

	if len(pending) == 0 {
		m.log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	} else if !dryRun {
		m.log.Info().Int("count", len(pending)).Msg("Successfully applied migrations")
	}
	return nil
}

// readMigrations reads all migration files from fsys, substituting vars.
func readMigrations(fsys fs.FS, vars map[string]string) ([]Migration, error) {
	files, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("readMigrations: listing migrations: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, path := range files {
		filename := path[strings.LastIndex(path, "/")+1:]
		matches := migrationPattern.FindStringSubmatch(filename)
		if matches == nil {
			return nil, fmt.Errorf("readMigrations: invalid migration filename %s", filename)
		}
		version, _ := strconv.Atoi(matches[1])
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("readMigrations: version %04d used by %s and %s", version, prev, filename)
		}
		seen[version] = filename

		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("readMigrations: reading %s: %w", filename, err)
		}

		// The checksum covers the file before substitution, so the same
		// migration applied to two datasets records the same value.
		sql := string(content)
		for k, v := range vars {
			sql = strings.ReplaceAll(sql, k, v)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: filename,
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// pendingMigrations returns the migrations not yet applied. An applied
// migration whose file changed since is an error.
func pendingMigrations(all []Migration, applied []AppliedMigration) ([]Migration, error) {
	done := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		done[am.Version] = am
	}

	var pending []Migration
	for _, mig := range all {
		am, ok := done[mig.Version]
		if !ok {
			pending = append(pending, mig)
			continue
		}
		if am.Checksum != "" && am.Checksum != mig.Checksum {
			return nil, fmt.Errorf("migration %04d_%s changed after it was applied", mig.Version, mig.Name)
		}
	}
	return pending, nil
}

// applied retrieves the list of already applied migrations. A missing
// schema_migrations table means nothing has been applied.
func (m *migrator) applied(ctx context.Context) ([]AppliedMigration, error) {
	q := m.client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, m.table()))
	it, err := q.Read(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "Not found") {
			return []AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64               `bigquery:"version"`
			Name      string              `bigquery:"name"`
			AppliedAt time.Time           `bigquery:"applied_at"`
			Checksum  bigquery.NullString `bigquery:"checksum"`
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}
		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

func (m *migrator) record(ctx context.Context, mig Migration) error {
	q := m.client.Query(fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, m.table()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: mig.Version},
		{Name: "name", Value: mig.Name},
		{Name: "checksum", Value: mig.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	}
	return m.exec(ctx, q)
}

func (m *migrator) exec(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
