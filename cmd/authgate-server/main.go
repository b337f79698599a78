// Package main runs the payment-authentication gateway as an HTTP service.
//
// Configuration is flag driven; -redis-addr empty falls back to the
// REDIS_ADDR env var and then to an embedded miniredis, so the server can be
// exercised locally with no infrastructure:
//
//	go run ./cmd/authgate-server -provider-url http://localhost:9090
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	authgate "github.com/altairpay/authgate"
	"github.com/altairpay/authgate/httpapi"
	"github.com/altairpay/authgate/instrument"
	promexport "github.com/altairpay/authgate/metrics/export/prometheus"
	"github.com/altairpay/authgate/payerauth"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		listenAddr  = flag.String("listen", ":8080", "HTTP listen address")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or embedded miniredis")
		providerURL = flag.String("provider-url", "", "authentication provider base URL")
		providerKey = flag.String("provider-key", "", "authentication provider API key")
		catalogURL  = flag.String("catalog-url", "", "payment instrument catalog base URL; defaults to provider-url")
		callbackURL = flag.String("callback-url", "", "externally reachable base URL for challenge callbacks")
		jwtSecret   = flag.String("jwt-secret", "", "HMAC secret for caller bearer tokens; empty disables token auth")
		flights     = flag.String("flights", "", "comma-separated flight names enabled for every request")
	)
	flag.Parse()

	if *providerURL == "" {
		fmt.Fprintln(os.Stderr, "provider-url is required")
		os.Exit(2)
	}
	if *catalogURL == "" {
		*catalogURL = *providerURL
	}

	client, cleanup, err := redisClient(*redisAddr)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	cfg := authgate.DefaultConfig()
	cfg.Provider.NotificationBaseURL = *callbackURL

	builder := authgate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithInstrumentStore(instrument.NewHTTPStore(*catalogURL, instrument.WithAPIKey(*providerKey))).
		WithProvider(payerauth.NewHTTPClient(*providerURL, payerauth.WithAPIKey(*providerKey))).
		WithAuditSink(logSink{})
	if *flights != "" {
		builder = builder.WithPolicyResolver(authgate.StaticPolicyResolver(splitFlights(*flights)))
	}

	gateway, err := builder.Build()
	if err != nil {
		log.Fatal(err)
	}
	defer gateway.Close()

	var opts []httpapi.Option
	if *jwtSecret != "" {
		opts = append(opts, httpapi.WithTokenVerifier(httpapi.NewTokenVerifier([]byte(*jwtSecret), "")))
	}
	router := httpapi.NewServer(gateway, opts...).Router()
	router.Handle("/metrics", promexport.NewPrometheusExporter(gateway).Handler()).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              *listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", *listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func redisClient(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	log.Printf("no redis configured, using embedded store at %s", mr.Addr())
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func splitFlights(raw string) []string {
	var out []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// logSink writes audit events to the process log.
type logSink struct{}

func (logSink) Emit(_ context.Context, event authgate.AuditEvent) {
	log.Printf("audit %s account=%s session=%s status=%s ok=%t %s",
		event.Type, event.AccountID, event.SessionID, event.Status, event.Success, event.Error)
}
