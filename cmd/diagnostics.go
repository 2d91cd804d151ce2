// Package cmd wires the subscription core into a runnable process: CLI flags,
// config loading, and the diagnostics HTTP server's start/stop lifecycle.
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gorilla/mux"
	"github.com/project-nan/opcua-subs/apis"
	"github.com/project-nan/opcua-subs/common"
	"github.com/project-nan/opcua-subs/registry"
	"github.com/urfave/cli/v2"
)

// DiagnosticsCLIArgs are the flag-bound parameters for the diagnostics server.
type DiagnosticsCLIArgs struct {
	ServerPort int    `validate:"required,gt=0,lt=65536"`
	ListenOn   string `validate:"required,ip"`
	PathPrefix string `validate:"required"`
}

// GetDiagnosticsCLIFlags returns the CLI flags for the diagnostics server,
// bound into args.
func GetDiagnosticsCLIFlags(args *DiagnosticsCLIArgs) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "diagnostics-server-port",
			Usage:       "Diagnostics server port",
			Aliases:     []string{"dsp"},
			EnvVars:     []string{"DIAGNOSTICS_SERVER_PORT"},
			Value:       8080,
			DefaultText: "8080",
			Destination: &args.ServerPort,
			Required:    false,
		},
		&cli.StringFlag{
			Name:        "diagnostics-server-listen-on",
			Usage:       "Diagnostics server listening interface",
			Aliases:     []string{"dsl"},
			EnvVars:     []string{"DIAGNOSTICS_SERVER_LISTEN_ON"},
			Value:       "0.0.0.0",
			DefaultText: "0.0.0.0",
			Destination: &args.ListenOn,
			Required:    false,
		},
		&cli.StringFlag{
			Name:        "diagnostics-server-path-prefix",
			Usage:       "Set the endpoint path prefix for the diagnostics API",
			Aliases:     []string{"dspp"},
			EnvVars:     []string{"DIAGNOSTICS_SERVER_PATH_PREFIX"},
			Value:       "/",
			DefaultText: "/",
			Destination: &args.PathPrefix,
			Required:    false,
		},
	}
}

// RunDiagnosticsServer starts the read-only diagnostics HTTP server fronting
// reg, and blocks until runtimeContext is cancelled, at which point it drains
// in-flight requests and returns.
func RunDiagnosticsServer(
	params DiagnosticsCLIArgs,
	reg registry.ServerRegistry,
	loggingConfig common.HTTPRequestLogging,
	runtimeContext context.Context,
) error {
	logTags := log.Fields{
		"module": "cmd", "component": "diagnostics",
	}

	httpHandler, err := apis.GetDiagnosticsHandler(reg, &loggingConfig)
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to define diagnostics HTTP handler")
		return err
	}

	router := mux.NewRouter()
	mainRouter := apis.RegisterPathPrefix(router, params.PathPrefix, nil)

	subAPIRouter := apis.RegisterPathPrefix(
		mainRouter, "/v1/subscriptions", map[string]http.HandlerFunc{
			"get": httpHandler.GetAllSubscriptionsHandler(),
		},
	)
	_ = apis.RegisterPathPrefix(subAPIRouter, "/{subscriptionID}", map[string]http.HandlerFunc{
		"get": httpHandler.GetSubscriptionHandler(),
	})
	_ = apis.RegisterPathPrefix(mainRouter, "/v1/alive", map[string]http.HandlerFunc{
		"get": httpHandler.AliveHandler(),
	})

	serverListen := fmt.Sprintf("%s:%d", params.ListenOn, params.ServerPort)
	httpSrv := &http.Server{
		Addr:         serverListen,
		WriteTimeout: time.Second * 60,
		ReadTimeout:  time.Second * 60,
		Handler:      router,
	}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).WithFields(logTags).Error("Diagnostics HTTP server failure")
		}
	}()

	log.WithFields(logTags).Infof("Started diagnostics HTTP server on http://%s", serverListen)

	<-runtimeContext.Done()

	{
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failure during diagnostics HTTP shutdown")
		}
	}

	return nil
}
