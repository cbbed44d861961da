package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/boltdb/bolt"
	"github.com/go-kit/kit/auth/basic"
	"github.com/go-kit/kit/log"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/micromdm/go4/env"
	"github.com/micromdm/go4/version"
	"github.com/pkg/errors"

	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/pipeline"
	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/pkg/httputil"
	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/platform/history"
	historybuiltin "github.com/RzMY/IOS-AntiRevoke-DNS-Rules/platform/history/builtin"
	"github.com/RzMY/IOS-AntiRevoke-DNS-Rules/pubsub"
)

const homePage = `<!doctype html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<title>RevokeGuard</title>
	<style>
		body {
			font-family: -apple-system, BlinkMacSystemFont, sans-serif;
		}
	</style>
</head>
<body>
	<h3>RevokeGuard Auto-Sync</h3>
	<p><a href="profile.mobileconfig">Install the anti-revoke profile</a></p>
	<p><a href="artifacts/">Browse rule files</a></p>
</body>
</html>
`

func serve(args []string) error {
	flagset := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg := buildFlags(flagset)
	var (
		flConfigPath = flagset.String("config-path", "/var/db/antirevoke", "path to configuration directory")
		flAPIKey     = flagset.String("api-key", env.String("ANTIREVOKE_API_KEY", ""), "API token guarding the v1 endpoints")
		flHTTPAddr   = flagset.String("http-addr", ":8080", "http listen address")
		flTLSCert    = flagset.String("tls-cert", "", "path to TLS certificate")
		flTLSKey     = flagset.String("tls-key", "", "path to TLS private key")
		flInterval   = flagset.Duration("rebuild-interval", 6*time.Hour, "how often to re-scrape and rebuild, 0 disables")
		flHomePage   = flagset.Bool("homepage", true, "hosts a simple built-in webpage at the / address")
	)
	flagset.Usage = usageFor(flagset, "antirevoke serve [flags]")
	if err := flagset.Parse(args); err != nil {
		return err
	}

	logger := log.NewLogfmtLogger(os.Stderr)
	stdlog.SetOutput(log.NewStdlibAdapter(logger)) // force structured logs
	mainLogger := log.With(logger, "component", "main")
	mainLogger.Log("msg", "started")

	if err := os.MkdirAll(*flConfigPath, 0755); err != nil {
		return errors.Wrapf(err, "creating config directory %s", *flConfigPath)
	}
	db, err := bolt.Open(filepath.Join(*flConfigPath, "antirevoke.db"), 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return errors.Wrap(err, "opening boltdb")
	}
	historyDB, err := historybuiltin.NewDB(db)
	if err != nil {
		return errors.Wrap(err, "setting up history store")
	}

	ctx := context.Background()
	pubclient := pubsub.NewInmemPubsub()

	// the worker must be subscribed before the first rebuild publishes
	historyWorker, err := history.NewWorker(ctx, historyDB, pubclient, log.With(logger, "component", "history"))
	if err != nil {
		return err
	}
	go historyWorker.Run(ctx)

	rebuild := func() {
		out, _, err := runBuild(ctx, cfg, logger)
		if err != nil {
			mainLogger.Log("msg", "pipeline run failed", "err", err)
			return
		}
		ev := pipeline.Event{Time: time.Now().UTC(), Report: out.Report}
		msg, err := pipeline.MarshalEvent(&ev)
		if err != nil {
			mainLogger.Log("msg", "publish build event", "err", err)
			return
		}
		if err := pubclient.Publish(ctx, pipeline.BuildTopic, msg); err != nil {
			mainLogger.Log("msg", "publish build event", "err", err)
		}
	}

	// first build happens at startup; failures are tolerated because
	// the server can still serve the previous run's artifacts
	go rebuild()

	if *flInterval > 0 {
		go func() {
			ticker := time.NewTicker(*flInterval)
			defer ticker.Stop()
			for range ticker.C {
				rebuild()
			}
		}()
	}

	r := mux.NewRouter()
	if *flHomePage {
		r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, homePage)
		}).Methods("GET")
	}
	r.Handle("/version", version.Handler())
	r.HandleFunc("/profile.mobileconfig", serveProfile(cfg.OutputDir)).Methods("GET")
	r.PathPrefix("/artifacts/").Handler(
		http.StripPrefix("/artifacts/", http.FileServer(http.Dir(cfg.OutputDir))),
	)

	httpLogger := log.With(logger, "transport", "http")
	options := []httptransport.ServerOption{
		httptransport.ServerErrorLogger(httpLogger),
	}

	if *flAPIKey != "" {
		basicAuthEndpointMiddleware := basic.AuthMiddleware("antirevoke", *flAPIKey, "antirevoke")

		historysvc := history.New(historyDB)
		historyEndpoints := history.MakeServerEndpoints(historysvc, basicAuthEndpointMiddleware)
		history.RegisterHTTPHandlers(r, historyEndpoints, options...)

		triggerBuild := func(w http.ResponseWriter, _ *http.Request) {
			go rebuild()
			w.WriteHeader(http.StatusAccepted)
		}
		r.HandleFunc("/v1/build", httputil.RequireBasicAuth(triggerBuild, "antirevoke", *flAPIKey, "antirevoke")).Methods("POST")
	} else {
		mainLogger.Log("msg", "no api key specified, v1 endpoints disabled")
	}

	var handler http.Handler = r
	handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(handler)
	handler = handlers.CombinedLoggingHandler(os.Stderr, handler)

	srv := &http.Server{
		Addr:              *flHTTPAddr,
		Handler:           handler,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       10 * time.Minute,
	}

	errs := make(chan error, 2)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errs <- fmt.Errorf("%s", <-c)
	}()

	go func() {
		httpLogger.Log("addr", srv.Addr)
		if *flTLSCert != "" && *flTLSKey != "" {
			errs <- srv.ListenAndServeTLS(*flTLSCert, *flTLSKey)
			return
		}
		errs <- srv.ListenAndServe()
	}()

	mainLogger.Log("terminated", <-errs)
	return nil
}

func serveProfile(outputDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		signed := filepath.Join(outputDir, signedProfileName)
		if _, err := os.Stat(signed); err == nil {
			w.Header().Set("Content-Type", "application/x-apple-aspen-config")
			http.ServeFile(w, r, signed)
			return
		}
		// fall back to the unsigned plist; the distinct name keeps the
		// artifact clearly labeled as unsigned
		unsigned := filepath.Join(outputDir, unsignedProfileName)
		if _, err := os.Stat(unsigned); err == nil {
			w.Header().Set("Content-Type", "application/x-apple-aspen-config")
			http.ServeFile(w, r, unsigned)
			return
		}
		http.Error(w, "no profile has been built yet", http.StatusNotFound)
	}
}
