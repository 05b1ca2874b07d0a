// Package cli implements the petcarectl operator commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/petcare/internal/app"
	"github.com/odyssey-erp/petcare/internal/platform/db"
)

// Migrations is the subset of db.Migrator used by the CLI.
type Migrations interface {
	Up() error
	Steps(n int) error
	Version() (uint, bool, error)
	Close() error
}

// Jobs is the subset of JobsCLI used by the CLI.
type Jobs interface {
	Trigger(ctx context.Context, name string, opts TriggerOptions) (*asynq.TaskInfo, error)
	InspectQueue() (QueueStats, error)
	ListScheduled(size int) ([]*asynq.TaskInfo, error)
	Close() error
}

// Deps lets tests replace the Postgres and Redis backed collaborators.
type Deps struct {
	LoadConfig   func() (*app.Config, error)
	OpenMigrator func(dsn string) (Migrations, error)
	OpenJobs     func(redisAddr string) Jobs
}

// DefaultDeps wires the real migrator and asynq client.
func DefaultDeps() Deps {
	return Deps{
		LoadConfig:   app.LoadConfig,
		OpenMigrator: func(dsn string) (Migrations, error) { return db.NewMigrator(dsn) },
		OpenJobs:     func(addr string) Jobs { return NewJobsCLI(addr) },
	}
}

// NewRootCommand assembles the petcarectl command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "petcarectl",
		Short:         "Operator commands for the pet-care purchasing back office",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCommand(deps), newJobsCommand(deps))
	return root
}

func newMigrateCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Manage the database schema"}

	withMigrator := func(fn func(m Migrations, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}
			m, err := deps.OpenMigrator(cfg.PGDSN)
			if err != nil {
				return err
			}
			defer m.Close()
			return fn(m, cmd.OutOrStdout())
		}
	}

	printVersion := func(m Migrations, out io.Writer) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		catalog := "unavailable"
		if db.RequireVersion(version, dirty, db.SupplierCatalogVersion) == nil {
			catalog = "available"
		}
		_, err = fmt.Fprintf(out, "version=%d dirty=%t supplier_catalog=%s\n", version, dirty, catalog)
		return err
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(m Migrations, out io.Writer) error {
			if err := m.Up(); err != nil {
				return err
			}
			return printVersion(m, out)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(printVersion),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations, or roll back when N is negative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n == 0 {
				return fmt.Errorf("steps: %q is not a non-zero integer", args[0])
			}
			return withMigrator(func(m Migrations, out io.Writer) error {
				if err := m.Steps(n); err != nil {
					return err
				}
				return printVersion(m, out)
			})(cmd, args)
		},
	})
	return cmd
}

func newJobsCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Inspect and trigger background jobs"}

	withJobs := func(fn func(ctx context.Context, j Jobs, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}
			j := deps.OpenJobs(cfg.RedisAddr)
			defer j.Close()
			return fn(cmd.Context(), j, cmd.OutOrStdout())
		}
	}

	var retention time.Duration
	trigger := &cobra.Command{
		Use:   "trigger JOB",
		Short: "Enqueue a job now (purchasing:summary_warm, purchasing:idempotency_cleanup)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobs(func(ctx context.Context, j Jobs, out io.Writer) error {
				info, err := j.Trigger(ctx, args[0], TriggerOptions{Retention: retention})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "enqueued %s id=%s queue=%s\n", args[0], info.ID, info.Queue)
				return err
			})(cmd, args)
		},
	}
	trigger.Flags().DurationVar(&retention, "retention", 0, "key retention for the idempotency cleanup job")

	var size int
	scheduled := &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: withJobs(func(_ context.Context, j Jobs, out io.Writer) error {
			tasks, err := j.ListScheduled(size)
			if err != nil {
				return err
			}
			for _, task := range tasks {
				if _, err := fmt.Fprintf(out, "%s\t%s\t%s\n", task.ID, task.Type, task.NextProcessAt.Format(time.RFC3339)); err != nil {
					return err
				}
			}
			return nil
		}),
	}
	scheduled.Flags().IntVar(&size, "size", 10, "page size")

	cmd.AddCommand(trigger, scheduled, &cobra.Command{
		Use:   "stats",
		Short: "Show default queue depth",
		Args:  cobra.NoArgs,
		RunE: withJobs(func(_ context.Context, j Jobs, out io.Writer) error {
			stats, err := j.InspectQueue()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
			return err
		}),
	})
	return cmd
}
