package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/smis-school/smis/internal/app/migrations"
	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/bootstrap"
	"github.com/smis-school/smis/internal/config"
	"github.com/smis-school/smis/internal/db"
	"github.com/smis-school/smis/internal/pkg/apperrors"
	"github.com/smis-school/smis/internal/pkg/cache"
	"github.com/smis-school/smis/internal/pkg/validation"
	"github.com/smis-school/smis/internal/seed"
	schemafiles "github.com/smis-school/smis/migrations"
)

func loadConfig(c *cli.Context) (*config.Config, zerolog.Logger, error) {
	return bootstrap.LoadConfigAndSetupLogger(c.String("config"))
}

// withDatabase connects without applying migrations or seeding.
func withDatabase(c *cli.Context, fn func(cfg *config.Config, lgr zerolog.Logger, database *db.PostgresDB) error) error {
	cfg, lgr, err := loadConfig(c)
	if err != nil {
		return err
	}
	database, err := db.NewPostgresDB(c.Context, cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	return fn(cfg, lgr, database)
}

// withDependencies builds the service layer over an in-memory cache.
func withDependencies(c *cli.Context, fn func(deps *bootstrap.Dependencies) error) error {
	return withDatabase(c, func(cfg *config.Config, lgr zerolog.Logger, database *db.PostgresDB) error {
		store := cache.NewMemoryStore()
		defer store.Close()
		deps, err := bootstrap.BuildDependencies(cfg, database, store, lgr)
		if err != nil {
			return err
		}
		return fn(deps)
	})
}

func validateRequest(req interface{}) error {
	if err := validation.RegisterGinRules(); err != nil {
		return err
	}
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return cli.Exit(dto.HandleValidationError(err).Message, 2)
	}
	return nil
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply pending database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "only list pending migrations"},
		},
		Action: func(c *cli.Context) error {
			return withDatabase(c, func(_ *config.Config, lgr zerolog.Logger, database *db.PostgresDB) error {
				if c.Bool("dry-run") {
					pending, err := migrations.NewMigrator(database.Pool, lgr).Pending(c.Context, schemafiles.FS)
					if err != nil {
						return err
					}
					if len(pending) == 0 {
						fmt.Fprintln(c.App.Writer, "database is up to date")
					}
					for _, name := range pending {
						fmt.Fprintln(c.App.Writer, "pending:", name)
					}
					return nil
				}
				applied, err := bootstrap.RunMigrations(c.Context, database.Pool, lgr)
				for _, name := range applied {
					fmt.Fprintln(c.App.Writer, "applied:", name)
				}
				return err
			})
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "create default departments and the admin user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "admin-email", EnvVars: []string{"SEED_ADMIN_EMAIL"}},
			&cli.StringFlag{Name: "admin-password", EnvVars: []string{"SEED_ADMIN_PASSWORD"}},
		},
		Action: func(c *cli.Context) error {
			return withDatabase(c, func(cfg *config.Config, lgr zerolog.Logger, database *db.PostgresDB) error {
				opts := bootstrap.SeedOptions(cfg)
				if v := c.String("admin-email"); v != "" {
					opts.AdminEmail = v
				}
				if v := c.String("admin-password"); v != "" {
					opts.AdminPassword = v
				}
				res, err := seed.CreateDefaultData(c.Context, database.Pool, opts, lgr)
				fmt.Fprintf(c.App.Writer, "departments created: %d, admin created: %t\n", res.DepartmentsCreated, res.AdminCreated)
				return err
			})
		},
	}
}

func createUserCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-user",
		Usage: "create a user of any role",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
			&cli.StringFlag{Name: "first-name", Required: true},
			&cli.StringFlag{Name: "last-name", Required: true},
			&cli.StringFlag{Name: "role", Required: true, Usage: "STUDENT, TEACHER, HOD, FINANCE or ADMIN"},
			&cli.Int64Flag{Name: "department-id"},
			&cli.StringFlag{Name: "student-number"},
			&cli.Int64Flag{Name: "class-id"},
		},
		Action: func(c *cli.Context) error {
			req := &dto.CreateUserRequest{
				Email:         strings.TrimSpace(c.String("email")),
				Password:      c.String("password"),
				FirstName:     c.String("first-name"),
				LastName:      c.String("last-name"),
				Role:          models.RoleType(strings.ToUpper(c.String("role"))),
				StudentNumber: c.String("student-number"),
			}
			if c.IsSet("department-id") {
				id := c.Int64("department-id")
				req.DepartmentID = &id
			}
			if c.IsSet("class-id") {
				id := c.Int64("class-id")
				req.ClassID = &id
			}
			if err := validateRequest(req); err != nil {
				return err
			}
			return withDependencies(c, func(deps *bootstrap.Dependencies) error {
				user, err := deps.UserService.CreateUser(c.Context, nil, req)
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(c.App.Writer, "created user %d (%s, %s)\n", user.ID, user.Email, user.Role)
				return nil
			})
		},
	}
}

func resetPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset-password",
		Usage: "set a new password and revoke the user's sessions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
		},
		Action: func(c *cli.Context) error {
			if !validation.IsStrongPassword(c.String("password")) {
				return cli.Exit("password must contain at least 8 characters with letters and digits", 2)
			}
			return withDependencies(c, func(deps *bootstrap.Dependencies) error {
				if err := deps.UserService.ResetPassword(c.Context, c.String("email"), c.String("password")); err != nil {
					return describe(err)
				}
				fmt.Fprintln(c.App.Writer, "password updated")
				return nil
			})
		},
	}
}

func runJobCommand() *cli.Command {
	return &cli.Command{
		Name:      "run-job",
		Usage:     "run a maintenance job once",
		ArgsUsage: "<job>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "list", Usage: "list job names"},
			&cli.DurationFlag{Name: "timeout", Value: 10 * time.Minute},
		},
		Action: func(c *cli.Context) error {
			name := c.Args().First()
			if name == "" && !c.Bool("list") {
				return cli.Exit("job name required, see --list", 2)
			}
			return withDependencies(c, func(deps *bootstrap.Dependencies) error {
				jobs := bootstrap.MaintenanceJobs(deps.Config, deps, deps.Logger)
				if c.Bool("list") {
					names := make([]string, 0, len(jobs))
					for _, j := range jobs {
						names = append(names, j.Name)
					}
					sort.Strings(names)
					fmt.Fprintln(c.App.Writer, strings.Join(names, "\n"))
					return nil
				}
				for _, j := range jobs {
					if j.Name != name {
						continue
					}
					ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
					defer cancel()
					start := time.Now()
					if err := j.Run(ctx); err != nil {
						return fmt.Errorf("job %s: %w", name, err)
					}
					fmt.Fprintf(c.App.Writer, "job %s finished in %s\n", name, time.Since(start).Round(time.Millisecond))
					return nil
				}
				return cli.Exit(fmt.Sprintf("unknown job %q", name), 2)
			})
		},
	}
}

// describe turns domain errors into a user-facing exit error.
func describe(err error) error {
	if msg := apperrors.Message(err); msg != "" {
		return cli.Exit(msg, 1)
	}
	return err
}
