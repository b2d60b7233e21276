package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/doffice/internal/api"
	"github.com/joseph-ayodele/doffice/internal/channel"
	"github.com/joseph-ayodele/doffice/internal/common"
	"github.com/joseph-ayodele/doffice/internal/history"
	"github.com/joseph-ayodele/doffice/internal/repository"
	"github.com/joseph-ayodele/doffice/internal/session"
	"github.com/joseph-ayodele/doffice/internal/tracker"
)

// app carries the wiring shared by every subcommand.
type app struct {
	cfg      *common.Config
	logger   *slog.Logger
	client   *api.Client
	sessions *session.Manager

	db      *repository.DB
	history *history.Service
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	root := a.rootCmd()
	err := root.ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, session.ErrNoSession) {
			fmt.Fprintln(os.Stderr, "  sign in with: doffice login --email you@example.com")
		}
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "doffice",
		Short:         "Convert images and audio to text with the doffice backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(verbose)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log requests and channel activity to stderr")

	root.AddCommand(
		a.loginCmd(),
		a.signupCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.guestCmd(),
		a.submitCmd(),
		a.watchCmd(),
		a.jobsCmd(),
		a.historyCmd(),
	)
	return root
}

func (a *app) init(verbose bool) error {
	if err := common.LoadDotEnv(); err != nil {
		return err
	}
	a.cfg = common.LoadConfig()
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelWarn
	if verbose {
		level = a.cfg.Log.LogLevel()
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	a.client = api.NewClient(api.Config{BaseURL: a.cfg.Backend.APIURL, Timeout: a.cfg.Backend.HTTPTimeout}, a.logger)
	a.sessions = session.NewManager(
		session.APIBackend{Client: a.client},
		session.NewFileTokenStore(a.cfg.Storage.DataDir),
		a.logger,
	)
	return nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close(a.logger)
		a.db = nil
	}
}

// historyService opens the local history database on first use.
func (a *app) historyService(ctx context.Context) (*history.Service, error) {
	if a.history != nil {
		return a.history, nil
	}
	db, err := repository.Open(ctx, repository.Config{
		DSN:         a.cfg.Storage.HistoryDSN,
		MaxConns:    4,
		DialTimeout: 3 * time.Second,
	}, a.logger)
	if err != nil {
		return nil, common.WrapError(err, "open history database")
	}
	a.db = db
	a.history = history.NewService(repository.NewHistoryRepository(db, a.logger), a.logger)
	return a.history, nil
}

// currentSession restores the saved session. A missing one falls back to guest when
// allowGuest is set.
func (a *app) currentSession(ctx context.Context, allowGuest bool) (*session.Session, error) {
	s, err := a.sessions.Load(ctx)
	if err == nil {
		return s, nil
	}
	if allowGuest && errors.Is(err, session.ErrNoSession) {
		return a.sessions.EnterGuest()
	}
	return nil, err
}

func (a *app) newTracker(s *session.Session) *tracker.Tracker {
	dialer := channel.NewWSDialer(a.cfg.Backend.WSURL, s, a.cfg.Backend.DialTimeout, a.logger)
	return tracker.New(a.client.WithAuth(s), dialer, tracker.WithLogger(a.logger), tracker.WithInitialPending())
}
