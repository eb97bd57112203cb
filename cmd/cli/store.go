package cli

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/topodraw/internal/db"
)

const timeFormat = "2006-01-02 15:04"

var runsLimit int

// runsCmd represents the runs command.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs saved in the database",
	Long:  `Runs lists the most recent runs saved with render --store, scan --store or the API.`,
	Example: `  topodraw runs
  topodraw runs --limit 50`,
	RunE: runRuns,
}

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long:  `Migrate applies pending schema migrations to the configured database.`,
	Example: `  topodraw migrate
  topodraw migrate status`,
	RunE: runMigrateUp,
}

// migrateStatusCmd represents the migrate status command.
var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE:  runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateStatusCmd)

	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to show")
}

func runRuns(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	d, err := setup(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer d.Close()

	runs, err := d.store.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}
	return displayRunsTable(cmd.OutOrStdout(), runs)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	// connectDatabase applies pending migrations.
	database, err := connectDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	cmd.Println("Database schema is up to date")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	database, err := db.Connect(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	statuses, err := db.NewMigrator(database.DB).Status(ctx)
	if err != nil {
		return err
	}
	return displayMigrationsTable(cmd.OutOrStdout(), statuses)
}

func displayRunsTable(w io.Writer, runs []db.Run) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Source", "Hosts", "Services", "Created")

	for _, r := range runs {
		if err := table.Append([]string{
			r.ID.String(),
			r.Source,
			strconv.Itoa(r.HostCount),
			strconv.Itoa(r.ServiceCount),
			r.CreatedAt.Local().Format(timeFormat),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func displayMigrationsTable(w io.Writer, statuses []db.MigrationStatus) error {
	table := tablewriter.NewWriter(w)
	table.Header("Migration", "Status", "Applied")

	for _, st := range statuses {
		status, applied := "pending", "-"
		if st.Applied {
			status = "applied"
			applied = st.AppliedAt.Local().Format(timeFormat)
		}
		if err := table.Append([]string{st.Name, status, applied}); err != nil {
			return err
		}
	}
	return table.Render()
}
