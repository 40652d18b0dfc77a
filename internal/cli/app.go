// Package cli implements schedulectl, the operator tool for the scheduling engine.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-scheduling-api/internal/service"
	"github.com/noah-isme/lms-scheduling-api/pkg/config"
	"github.com/noah-isme/lms-scheduling-api/pkg/database"
	"github.com/noah-isme/lms-scheduling-api/pkg/logger"
)

var (
	// Version is set at build time
	Version = "dev"
	// Commit is set at build time
	Commit = "none"
)

// App holds the CLI application state.
type App struct {
	catalog *service.SlotCatalog
	root    *cobra.Command
	noColor bool
}

// NewApp builds the command tree. A nil catalog uses the default slot grid.
func NewApp(catalog *service.SlotCatalog) *App {
	if catalog == nil {
		catalog = service.DefaultSlotCatalog()
	}
	a := &App{catalog: catalog}

	a.root = &cobra.Command{
		Use:           "schedulectl",
		Short:         "Operate the lecture scheduling engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if a.noColor {
				DisableColor()
			}
		},
	}
	a.root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	a.root.AddCommand(a.versionCmd())
	a.root.AddCommand(a.slotsCmd())
	a.root.AddCommand(a.previewCmd())
	a.root.AddCommand(a.migrateCmd())

	return a
}

// Root exposes the root command, mainly for tests.
func (a *App) Root() *cobra.Command {
	return a.root
}

// Execute runs the CLI application.
func (a *App) Execute() error {
	return a.root.Execute()
}

func (a *App) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "schedulectl %s (commit: %s)\n", Version, Commit)
		},
	}
}

func (a *App) slotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "List the daily time slots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			PrintSlots(cmd.OutOrStdout(), a.catalog.ListSlots())
			return nil
		},
	}
}

func (a *App) previewCmd() *cobra.Command {
	var (
		coursePath string
		timezone   string
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Expand a course file into its dated lecture schedule",
		Long: `Reads a TOML course description (course, scheduling and modules tables)
and prints the occurrences the generator would materialise, week by week.
Nothing is written to the database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := time.LoadLocation(timezone)
			if err != nil {
				return fmt.Errorf("loading timezone: %w", err)
			}
			course, err := LoadCourseFixture(coursePath)
			if err != nil {
				return err
			}
			occs, err := service.NewScheduleGenerator(a.catalog, loc).Generate(course, course.Scheduling)
			if err != nil {
				return fmt.Errorf("generating schedule: %w", err)
			}
			PrintPreview(cmd.OutOrStdout(), course, occs, a.catalog)
			return nil
		},
	}
	cmd.Flags().StringVarP(&coursePath, "course", "c", "", "Path to the TOML course file")
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "IANA timezone used to place slots on the clock")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

func (a *App) migrateCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logr.Sync() //nolint:errcheck

			db, err := database.NewPostgres(cfg.Database)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer db.Close()

			if args[0] == "down" {
				err = database.RollbackMigrations(db.DB, steps, logr)
			} else {
				err = database.RunMigrations(db.DB, logr)
			}
			if err != nil {
				logr.Error("migration failed", zap.String("direction", args[0]), zap.Error(err))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: %s\n", args[0], formatOK("done"))
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back with down")
	return cmd
}
