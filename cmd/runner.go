package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nutrivision/internal/oauth"
	"github.com/desertthunder/nutrivision/internal/services"
	"github.com/desertthunder/nutrivision/internal/session"
	"github.com/desertthunder/nutrivision/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	session    *session.Store
	client     *services.Client
	bridge     *oauth.Bridge
	google     oauth.Provider
	apple      oauth.Provider
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Session    *session.Store
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer

	// Google and Apple default to the browser based loopback providers.
	Google oauth.Provider
	Apple  oauth.Provider
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Config.Client.Timeout()}
	}
	if opts.Session == nil {
		opts.Session = session.NewStore(session.StoreOpts{Logger: opts.Logger})
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		session:    opts.Session,
		google:     opts.Google,
		apple:      opts.Apple,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
	r.wire()

	if r.google == nil {
		r.google = r.loopbackGoogle()
	}
	if r.apple == nil {
		r.apple = r.loopbackApple()
	}
	return r
}

// wire builds the client and bridge. Their child loggers copy the level at creation,
// so wire runs again whenever the level changes.
func (r *Runner) wire() {
	dispatcher := services.NewDispatcher(services.DispatcherOpts{
		BaseURL:    r.config.Client.BaseURL,
		HTTPClient: r.httpClient,
		Session:    r.session,
		Logger:     shared.WithLogger(r.logger, "component", "dispatcher"),
		RateLimit:  r.config.Client.RateLimit,
	})
	r.client = services.NewClient(dispatcher, r.session)
	r.bridge = oauth.NewBridge(oauth.BridgeOpts{Exchanger: dispatcher, Session: r.session, Logger: r.logger})
}

// app returns the root command.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "nutrivision",
		Usage:   "Log meals, talk to the nutrition assistant and run the NutriVision API",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level: debug, info, warn, error (overrides config log_level)",
				Sources: cli.EnvVars("NUTRIVISION_LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Shorthand for --log-level debug",
			},
		},
		Before:   r.configureLogging,
		Commands: r.register(),
	}
}

// configureLogging applies the log level from flags, falling back to the config file.
func (r *Runner) configureLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	level := r.config.LogLevel
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	if cmd.Bool("verbose") {
		level = "debug"
	}
	if level == "" {
		return ctx, nil
	}

	parsed, err := log.ParseLevel(level)
	if err != nil {
		return ctx, fmt.Errorf("%w: log level %q", shared.ErrInvalidConfig, level)
	}
	shared.SetLogLevel(r.logger, parsed)
	r.wire()
	return ctx, nil
}

func (r *Runner) loopbackGoogle() oauth.Provider {
	creds := r.config.Credentials.Google
	sdk := oauth.NewLoopbackGoogle(oauth.LoopbackOpts{
		ClientSecret: creds.ClientSecret,
		RedirectURI:  creds.RedirectURI,
		Logger:       r.logger,
		Notify:       r.printConsentURL,
	})
	return oauth.NewGoogleProvider(sdk, creds.ClientID)
}

func (r *Runner) loopbackApple() oauth.Provider {
	creds := r.config.Credentials.Apple
	sdk := oauth.NewLoopbackApple(oauth.LoopbackOpts{
		RedirectURI: creds.RedirectURI,
		Logger:      r.logger,
		Notify:      r.printConsentURL,
	})
	return oauth.NewAppleProvider(sdk, creds.ClientID, creds.RedirectURI)
}

func (r *Runner) printConsentURL(authURL string) {
	r.writePlainln("⚠ Could not open browser automatically.")
	r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, healthCommand, authCommand, mealsCommand, chatCommand, analyzeCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// explain prints the user-facing hint for err, if any, and returns err unchanged.
func (r *Runner) explain(err error) error {
	var terr *shared.TransportError
	var aerr *shared.AuthError
	switch {
	case errors.As(err, &terr):
		if hint := terr.Hint(); hint != "" {
			r.writePlain("✗ %s\n", hint)
		}
	case errors.As(err, &aerr):
		r.writePlain("✗ %s\n", aerr.Message)
		if errors.Is(err, shared.ErrSessionExpired) || errors.Is(err, shared.ErrMissingToken) {
			r.writePlain("Run 'nutrivision auth login' to sign in.\n")
		}
	}
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
