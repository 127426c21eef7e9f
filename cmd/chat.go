package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/nutrivision/internal/models"
	"github.com/desertthunder/nutrivision/internal/shared"
	"github.com/urfave/cli/v3"
)

// ChatSend sends a message to the nutrition assistant.
func (r *Runner) ChatSend(ctx context.Context, cmd *cli.Command) error {
	message := strings.TrimSpace(cmd.StringArg("message"))
	if message == "" {
		return fmt.Errorf("%w: message", shared.ErrMissingArgument)
	}

	env, err := r.client.SendMessage(ctx, message, nil)
	if err != nil {
		return r.explain(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(env, true)
	}

	var reply struct {
		Response string `json:"response"`
		Message  string `json:"message"`
	}
	if len(env.Data) > 0 && json.Unmarshal(env.Data, &reply) == nil {
		switch {
		case reply.Response != "":
			return r.writePlainln("%s", reply.Response)
		case reply.Message != "":
			return r.writePlainln("%s", reply.Message)
		}
	}
	return r.writeJSON(env.Data, true)
}

// ChatSuggestions lists suggested questions.
func (r *Runner) ChatSuggestions(ctx context.Context, cmd *cli.Command) error {
	env, err := r.client.Suggestions(ctx)
	if err != nil {
		return r.explain(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(env, true)
	}

	var suggestions []string
	if err := env.Decode(&suggestions); err != nil {
		return r.writeJSON(env.Data, true)
	}
	for _, s := range suggestions {
		r.writePlain("• %s\n", s)
	}
	return nil
}

// Analyze uploads a food photo, or requests the canned analysis with --mock.
func (r *Runner) Analyze(ctx context.Context, cmd *cli.Command) error {
	var (
		env *models.Envelope
		err error
	)

	if cmd.Bool("mock") {
		env, err = r.client.AnalyzeMock(ctx)
	} else {
		path := cmd.StringArg("image")
		if path == "" {
			return fmt.Errorf("%w: image", shared.ErrMissingArgument)
		}

		f, openErr := os.Open(path)
		if openErr != nil {
			return fmt.Errorf("failed to open image: %w", openErr)
		}
		defer f.Close()

		env, err = r.client.Analyze(ctx, filepath.Base(path), f)
	}
	if err != nil {
		return r.explain(err)
	}

	return r.writeJSON(env, cmd.Bool("pretty"))
}
