// Command smisctl runs maintenance tasks against an SMIS installation:
// migrations, seeding, user management, scheduled jobs and activity tailing.
package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/smis-school/smis/internal/bootstrap"
	"github.com/smis-school/smis/internal/pkg/logger"
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "smisctl",
		Usage:   "SMIS administration tool",
		Version: bootstrap.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				EnvVars: []string{"CONFIG_PATH"},
				Value:   bootstrap.DefaultConfigPath,
			},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			seedCommand(),
			createUserCommand(),
			resetPasswordCommand(),
			runJobCommand(),
			activitiesCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("smisctl failed")
		os.Exit(1)
	}
}
