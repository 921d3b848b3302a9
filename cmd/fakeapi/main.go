// cmd/fakeapi/main.go
//
// Runs the in-memory evaluation backend for local development. Settings come
// from FAKEAPI_* environment variables; -addr overrides host and port.

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kingrea/report-evaluator/internal/fakeapi"
)

func main() {
	addr := flag.String("addr", "", "listen address (host:port), overrides FAKEAPI_HOST and FAKEAPI_PORT")
	verbose := flag.Bool("v", false, "log every request")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if !*verbose {
		logger.SetLevel(logrus.WarnLevel)
	}

	settings := fakeapi.SettingsFromEnv()
	if *addr != "" {
		host, port, err := splitAddr(*addr)
		if err != nil {
			die("invalid -addr: %v", err)
		}
		settings.Host, settings.Port = host, port
	}

	server, err := fakeapi.NewServer(settings, fakeapi.WithLogger(logger.WithField("component", "fakeapi")))
	if err != nil {
		die("create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		die("start server: %v", err)
	}
	fmt.Printf("Evaluation API listening on %s (login %s / %s)\n", server.APIURL(), settings.Username, settings.Password)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		die("shutdown: %v", err)
	}
	fmt.Println("Stopped.")
}

func splitAddr(addr string) (string, int, error) {
	host, rawPort, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil {
		return "", 0, fmt.Errorf("port %q: %w", rawPort, err)
	}
	return host, port, nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
