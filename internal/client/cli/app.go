package cli

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dmitrijs2005/medkeeper/internal/client/client"
	"github.com/dmitrijs2005/medkeeper/internal/client/config"
	"github.com/dmitrijs2005/medkeeper/internal/client/services"
)

type App struct {
	config *config.Config
	reader *bufio.Reader
	out    io.Writer

	dial   func(addr string) (client.Client, error)
	openDB func(ctx context.Context, dsn string) (*sql.DB, error)

	client      client.Client
	authService services.AuthService
	db          *sql.DB
}

func NewApp(c *config.Config) *App {
	return &App{
		config: c,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		dial: func(addr string) (client.Client, error) {
			return client.NewGRPCClient(addr)
		},
		openDB: client.InitDatabase,
	}
}

// Run executes the command line in args and releases the connection and the
// session cache afterwards.
func (a *App) Run(ctx context.Context, args []string) error {
	root := a.RootCommand()
	root.SetArgs(args)
	root.SetOut(a.out)
	root.SetErr(a.out)
	defer a.close(ctx)
	return root.ExecuteContext(ctx)
}

// connect opens the session cache and the API client once per invocation.
func (a *App) connect(ctx context.Context) error {
	if a.client != nil {
		return nil
	}

	db, err := a.openDB(ctx, a.config.SessionDB)
	if err != nil {
		return fmt.Errorf("error initializing session cache: %w", err)
	}

	c, err := a.dial(a.config.ServerEndpointAddr)
	if err != nil {
		_ = db.Close()
		return err
	}

	a.db = db
	a.client = c
	a.authService = services.NewAuthService(c, db)
	return nil
}

func (a *App) close(ctx context.Context) {
	if a.authService != nil {
		_ = a.authService.Close(ctx)
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// session connects and attaches the cached patient session.
func (a *App) session(ctx context.Context) error {
	if err := a.connect(ctx); err != nil {
		return err
	}
	_, err := a.authService.Restore(ctx)
	return err
}

// admin connects and attaches a freshly minted admin token.
func (a *App) admin(ctx context.Context) error {
	if err := a.connect(ctx); err != nil {
		return err
	}
	_, err := a.authService.UseAdmin(a.config.AdminSecret)
	return err
}

// sessionOrAdmin attaches an admin token when asAdmin is set and the cached
// session otherwise.
func (a *App) sessionOrAdmin(ctx context.Context, asAdmin bool) error {
	if asAdmin {
		return a.admin(ctx)
	}
	return a.session(ctx)
}

// withTimeout bounds a single request by the configured timeout.
func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

func (a *App) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(b))
	return err
}

func (a *App) table(header string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	return tw
}
