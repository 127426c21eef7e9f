// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create a config file, initialize the database and run migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   defaultConfigPath,
			},
		},
		Action: r.Setup,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the NutriVision API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on (overrides config)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "First port to try (overrides config and PORT)",
				Value:   -1,
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "SQLite database path (overrides config and DATABASE_PATH)",
			},
		},
		Action: r.Serve,
	}
}

func healthCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check that the backend is reachable",
		Flags:  []cli.Flag{jsonFlag()},
		Action: r.Health,
	}
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the signed-in session",
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Create an account and sign in",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Display name", Required: true},
					&cli.StringFlag{Name: "email", Usage: "Email address", Required: true},
					&cli.StringFlag{Name: "password", Usage: "Password", Sources: cli.EnvVars("NUTRIVISION_PASSWORD"), Required: true},
				},
				Action: r.AuthRegister,
			},
			{
				Name:  "login",
				Usage: "Sign in with email and password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "Email address", Required: true},
					&cli.StringFlag{Name: "password", Usage: "Password", Sources: cli.EnvVars("NUTRIVISION_PASSWORD"), Required: true},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored session",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show the signed-in user",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.AuthStatus,
			},
			{
				Name:   "google",
				Usage:  "Sign in with Google in the browser",
				Action: r.AuthGoogle,
			},
			{
				Name:   "apple",
				Usage:  "Sign in with Apple in the browser",
				Action: r.AuthApple,
			},
		},
	}
}

func mealsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "meals",
		Usage: "Log and review meals",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Log a meal",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Meal name", Required: true},
					&cli.FloatFlag{Name: "calories", Usage: "Calories"},
					&cli.StringFlag{Name: "details", Usage: "Extra details as a JSON object"},
					jsonFlag(),
				},
				Action: r.MealsAdd,
			},
			{
				Name:   "history",
				Usage:  "List logged meals",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.MealsHistory,
			},
			{
				Name:   "stats",
				Usage:  "Show meal totals",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.MealsStats,
			},
		},
	}
}

func chatCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Talk to the nutrition assistant",
		Commands: []*cli.Command{
			{
				Name:      "send",
				Usage:     "Send a message",
				Arguments: []cli.Argument{&cli.StringArg{Name: "message"}},
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.ChatSend,
			},
			{
				Name:   "suggestions",
				Usage:  "List suggested questions",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.ChatSuggestions,
			},
		},
	}
}

func analyzeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Analyze a food photo",
		Arguments: []cli.Argument{&cli.StringArg{Name: "image"}},
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "mock", Usage: "Request a canned analysis without uploading"},
			&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print output", Value: true},
		},
		Action: r.Analyze,
	}
}
