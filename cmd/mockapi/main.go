package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/logger"
	"github.com/jrsteele09/go-auth-client/server"
	fakeuserrepo "github.com/jrsteele09/go-auth-client/users/repofake"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running mock API")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Mock API stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load(context.Background())
	if err != nil {
		return err
	}
	l := logger.New(logger.Options{Level: c.GetLogLevel(), Pretty: c.GetLogPretty()})
	log.Logger = l

	displayAppname(c.GetAppName() + " API")
	srv, err := server.New(c, fakeuserrepo.NewFakeUserRepo(),
		server.WithEnv(c.GetEnv()),
		server.WithLogger(l),
		server.WithMetricsHandler(promhttp.Handler()),
	)
	if err != nil {
		return err
	}

	go listenAndServe(srv, c.GetMockAPIPort(), l)
	waitForStopSignal()
	return shutdown(srv)
}

func listenAndServe(srv *server.Server, addr string, l zerolog.Logger) {
	l.Info().Msgf("Mock API listening on %s", addr)
	if err := srv.Start(addr); err != nil {
		l.Error().Err(err).Msg("server.Start")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(srv *server.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
