// Command authctl drives an auth session from the terminal, acting as one tab.
//
// The refresh token of a tab outlives the process only with STORAGE_DRIVER=redis;
// set TAB_ID to resume the same tab across invocations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/broadcast"
	"github.com/jrsteele09/go-auth-client/broadcast/memchannel"
	"github.com/jrsteele09/go-auth-client/broadcast/redischannel"
	"github.com/jrsteele09/go-auth-client/gateway"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/logger"
	"github.com/jrsteele09/go-auth-client/metrics"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/jrsteele09/go-auth-client/token/refresh"
	"github.com/jrsteele09/go-auth-client/token/refresh/memrepo"
	"github.com/jrsteele09/go-auth-client/token/refresh/redisrepo"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const usage = `usage: authctl <command> [flags]

commands:
  login -email <email> -password <password> [-remember]
  whoami
  refresh
  logout
  logout-all
  reset-password -email <email>
  watch      print session changes caused by other tabs until interrupted
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "authctl: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := config.Load(ctx)
	if err != nil {
		return err
	}
	l := logger.New(logger.Options{Level: c.GetLogLevel(), Pretty: c.GetLogPretty()})

	a, err := newApp(ctx, c, l)
	if err != nil {
		return err
	}
	defer a.close()

	switch command {
	case "login":
		return a.login(ctx, args)
	case "whoami":
		return a.whoami(ctx)
	case "refresh":
		return a.refresh(ctx)
	case "logout":
		return a.logout(ctx, false)
	case "logout-all":
		return a.logout(ctx, true)
	case "reset-password":
		return a.resetPassword(ctx, args)
	case "watch":
		return a.watch(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return errors.Errorf("unknown command %q", command)
	}
}

type app struct {
	config      config.Config
	coordinator *auth.Coordinator
	redis       *redis.Client
}

func newApp(ctx context.Context, c config.Config, l zerolog.Logger) (*app, error) {
	a := &app{config: c}
	m := metrics.New(nil)

	if c.GetStorageDriver() == config.DriverRedis || c.GetBroadcastDriver() == config.DriverRedis {
		a.redis = redis.NewClient(&redis.Options{Addr: c.GetRedisAddr(), DB: c.GetRedisDB()})
	}

	gw, err := gateway.New(c, gateway.WithLogger(l), gateway.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	var repo refresh.Repo
	switch c.GetStorageDriver() {
	case config.DriverMemory:
		repo = memrepo.New()
	case config.DriverRedis:
		repo = redisrepo.New(a.redis, c.GetTabID(), c.GetRefreshTokenTTL())
	default:
		return nil, errors.Errorf("[newApp] unknown storage driver %q", c.GetStorageDriver())
	}

	var open broadcast.Opener
	switch c.GetBroadcastDriver() {
	case config.DriverMemory:
		open = memchannel.NewHub().Open
	case config.DriverRedis:
		open = redischannel.Opener(ctx, a.redis, redischannel.WithOrigin(c.GetTabID()), redischannel.WithLogger(l))
	case config.DriverNone:
	default:
		return nil, errors.Errorf("[newApp] unknown broadcast driver %q", c.GetBroadcastDriver())
	}

	a.coordinator, err = auth.NewCoordinator(auth.Deps{
		Gateway: gw,
		Tokens: token.NewStore(repo,
			token.WithRefreshTokenKey(c.GetRefreshTokenKey()),
			token.WithExpiryBuffer(c.GetExpiryBuffer()),
			token.WithLogger(l),
		),
		Session: sessions.NewState(),
		Broadcaster: broadcast.New(open,
			broadcast.WithChannelName(c.GetChannelName()),
			broadcast.WithLogger(l),
			broadcast.WithMetrics(m),
		),
	},
		auth.WithLogger(l),
		auth.WithMetrics(m),
		auth.WithNavigator(auth.NavigatorFunc(func() { fmt.Println("Signed out. Run `authctl login` to sign in again.") })),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	_ = a.coordinator.Close()
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	remember := fs.Bool("remember", false, "ask for a long lived refresh token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	displayAppname(a.config.GetAppName())
	resp, err := a.coordinator.Login(ctx, authmodel.LoginCredentials{Email: *email, Password: *password, RememberMe: *remember})
	if err != nil {
		return errors.New(a.coordinator.Error())
	}
	fmt.Printf("Signed in as %s (%s)\n", resp.User.Profile().FullName, resp.User.Email)
	fmt.Printf("Tab: %s\n", a.config.GetTabID())
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	if err := a.coordinator.Initialize(ctx); err != nil {
		return err
	}
	printSession(a.coordinator.Session().Snapshot())
	if exp, ok := a.coordinator.Tokens().Expiration(); ok {
		fmt.Printf("Access token expires: %s\n", exp.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}

func (a *app) refresh(ctx context.Context) error {
	if !a.coordinator.Tokens().HasRefreshToken(ctx) {
		return errors.New("no refresh token stored for this tab")
	}
	if _, err := a.coordinator.RefreshToken(ctx); err != nil {
		return err
	}
	fmt.Printf("Access token refreshed, valid for %s\n", a.coordinator.Tokens().TimeUntilExpiration())
	return nil
}

func (a *app) logout(ctx context.Context, everywhere bool) error {
	if err := a.coordinator.Initialize(ctx); err != nil {
		return err
	}
	if everywhere {
		a.coordinator.LogoutAll(ctx)
		return nil
	}
	a.coordinator.Logout(ctx)
	return nil
}

func (a *app) resetPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.coordinator.RequestPasswordReset(ctx, authmodel.PasswordResetRequest{Email: *email}); err != nil {
		return errors.New(a.coordinator.Error())
	}
	fmt.Println("If the email exists, a reset link has been sent")
	return nil
}

func (a *app) watch(ctx context.Context) error {
	if err := a.coordinator.Initialize(ctx); err != nil {
		fmt.Printf("Session restore failed: %v\n", err)
	}
	printSession(a.coordinator.Session().Snapshot())

	unsubscribe := a.coordinator.Session().Subscribe(printSession)
	defer unsubscribe()

	<-ctx.Done()
	return nil
}

func printSession(snap sessions.Snapshot) {
	switch {
	case snap.IsInitializing:
		fmt.Println("Restoring session...")
	case snap.User == nil:
		fmt.Println("Anonymous")
	default:
		fmt.Printf("Signed in as %s (%s) roles=%v\n", snap.User.Profile().FullName, snap.User.Email, snap.User.Roles)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
