// Command placectl inspects and maintains a user's saved parking places
// from the terminal, against the same backend the server is configured for.
//
//	placectl --email ana@example.com list
//	placectl --owner cq1v2... delete cq1v3... --yes
//	placectl --email ana@example.com export --format yaml > places.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/park-places/internal/apperror"
	"github.com/sakif/park-places/internal/auth"
	"github.com/sakif/park-places/internal/backend"
	"github.com/sakif/park-places/internal/config"
	"github.com/sakif/park-places/internal/repository"
	"github.com/sakif/park-places/internal/repository/sqlite"
	"github.com/sakif/park-places/internal/service"
)

var (
	envFile     string
	backendName string
	ownerID     string
	ownerEmail  string
)

// app holds what every subcommand needs once the root command has run.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sqlite.DB
	places   *backend.Backend
	owner    string
	sessions *service.Sessions
}

var current *app

var rootCmd = &cobra.Command{
	Use:   "placectl",
	Short: "Manage saved parking places",
	Long: `placectl reads the server's configuration (.env and environment) and
works on one user's places in the configured backend.

Pick the user with --owner (the user id) or --email.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current != nil {
			current.Close()
			current = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file to load before the environment")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "", "override PLACE_BACKEND (local, sqlite, redis, postgres)")
	rootCmd.PersistentFlags().StringVar(&ownerID, "owner", "", "user id whose places to use")
	rootCmd.PersistentFlags().StringVar(&ownerEmail, "email", "", "email of the user whose places to use")
	rootCmd.MarkFlagsMutuallyExclusive("owner", "email")

	rootCmd.AddCommand(listCmd, deleteCmd, exportCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func openApp(ctx context.Context) (*app, error) {
	if backendName != "" {
		os.Setenv("PLACE_BACKEND", backendName)
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger(os.Stderr)

	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, db: db}

	a.owner, err = resolveOwner(ctx, db, ownerID, ownerEmail)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.places, err = backend.Open(ctx, cfg, db, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.sessions = service.NewSessions(service.SessionsConfig{
		Stores:   a.places.Stores,
		Gate:     auth.ContextGate{},
		Location: cfg.DisplayTimezone,
	}, logger)
	return a, nil
}

// resolveOwner turns --owner / --email into a user id.
func resolveOwner(ctx context.Context, users repository.UserRepository, id, email string) (string, error) {
	switch {
	case id != "":
		return id, nil
	case email != "":
		u, err := users.GetUserByEmail(ctx, email)
		if errors.Is(err, apperror.ErrNotFound) {
			return "", fmt.Errorf("no user with email %s", email)
		}
		if err != nil {
			return "", err
		}
		return u.ID, nil
	default:
		return "", errors.New("one of --owner or --email is required")
	}
}

// session returns the owner's session and a context signed in as the owner.
func (a *app) session(ctx context.Context) (*service.Session, context.Context, error) {
	sess, err := a.sessions.For(a.owner)
	if err != nil {
		return nil, nil, err
	}
	return sess, auth.WithUserID(ctx, a.owner), nil
}

func (a *app) Close() {
	if a.places != nil {
		if err := a.places.Close(); err != nil {
			a.logger.Warn("closing place backend", slog.String("error", err.Error()))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
