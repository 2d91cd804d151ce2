package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/apex/log"
	apexJSON "github.com/apex/log/handlers/json"
	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/project-nan/opcua-subs/cmd"
	"github.com/project-nan/opcua-subs/common"
	"github.com/project-nan/opcua-subs/manager"
	"github.com/project-nan/opcua-subs/namespace"
	"github.com/project-nan/opcua-subs/registry"
	"github.com/project-nan/opcua-subs/uatypes"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

type cliArgs struct {
	JSONLog    bool
	LogLevel   string `validate:"required,oneof=debug info warn error"`
	ConfigFile string `validate:"omitempty,file"`
	SessionCt  int    `validate:"gte=1"`
	Hostname   string
}

var cmdArgs cliArgs

var logTags log.Fields

func main() {
	hostname, err := os.Hostname()
	if err != nil {
		log.WithError(err).Fatal("Unable to read hostname")
	}
	cmdArgs.Hostname = hostname
	logTags = log.Fields{
		"module": "main", "component": "main", "instance": hostname,
	}

	common.InstallDefaultConfigValues()

	app := &cli.App{
		Version:     "v0.1.0",
		Usage:       "application entrypoint",
		Description: "OPC UA subscription core demo server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json-log",
				Usage:       "Whether to log in JSON format",
				Aliases:     []string{"j"},
				EnvVars:     []string{"LOG_AS_JSON"},
				Value:       false,
				DefaultText: "false",
				Destination: &cmdArgs.JSONLog,
				Required:    false,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Logging level: [debug info warn error]",
				Aliases:     []string{"l"},
				EnvVars:     []string{"LOG_LEVEL"},
				Value:       "warn",
				DefaultText: "warn",
				Destination: &cmdArgs.LogLevel,
				Required:    false,
			},
			&cli.StringFlag{
				Name:        "config-file",
				Usage:       "Application config file. Use DEFAULT if not specified.",
				Aliases:     []string{"c"},
				EnvVars:     []string{"CONFIG_FILE"},
				Value:       "",
				DefaultText: "",
				Destination: &cmdArgs.ConfigFile,
				Required:    false,
			},
			&cli.IntFlag{
				Name:        "demo-session-count",
				Usage:       "Number of simulated sessions to spin up SubscriptionManagers for",
				Aliases:     []string{"n"},
				EnvVars:     []string{"DEMO_SESSION_COUNT"},
				Value:       2,
				DefaultText: "2",
				Destination: &cmdArgs.SessionCt,
				Required:    false,
			},
		},
		Commands: []*cli.Command{
			{
				Name:        "serve",
				Usage:       "Run the diagnostics server and simulated demo sessions",
				Description: "Wires a SubscriptionManager per simulated session and serves read-only diagnostics over HTTP",
				Flags:       cmd.GetDiagnosticsCLIFlags(&diagnosticsArgs),
				Action:      startServe,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).WithFields(logTags).Fatal("Program shutdown")
	}
}

var diagnosticsArgs cmd.DiagnosticsCLIArgs

func setupLogging() {
	if cmdArgs.JSONLog {
		log.SetHandler(apexJSON.New(os.Stderr))
	}
	switch cmdArgs.LogLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.ErrorLevel)
	}
}

func initialCmdArgsProcessing() (*common.SystemConfig, error) {
	validate := validator.New()
	if err := validate.Struct(&cmdArgs); err != nil {
		log.WithError(err).WithFields(logTags).Error("Invalid CMD args")
		return nil, err
	}
	setupLogging()
	tmp, err := json.MarshalIndent(&cmdArgs, "", "  ")
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Failed to marshal args")
		return nil, err
	}
	log.Debugf("Starting params\n%s", tmp)

	if len(cmdArgs.ConfigFile) > 0 {
		viper.SetConfigFile(cmdArgs.ConfigFile)
		if err := viper.ReadInConfig(); err != nil {
			log.WithError(err).WithFields(logTags).Errorf(
				"Failed to read config file %s", cmdArgs.ConfigFile,
			)
			return nil, err
		}
	}
	var config common.SystemConfig
	if err := viper.Unmarshal(&config); err != nil {
		log.WithError(err).WithFields(logTags).Errorf(
			"Failed to parse config file %s", cmdArgs.ConfigFile,
		)
		return nil, err
	}
	if err := validate.Struct(&config); err != nil {
		log.WithError(err).WithFields(logTags).Error("Invalid config file content")
		return nil, err
	}
	return &config, nil
}

// connectEventBus optionally dials the configured NATS server for
// StatusChangeNotification broadcast; a nil return with nil error means the
// event bus is disabled and the registry runs without one.
func connectEventBus(config common.EventBusConfig) (*nats.Conn, error) {
	if !config.Enabled {
		return nil, nil
	}
	return nats.Connect(
		config.ServerURI,
		nats.Timeout(time.Second*time.Duration(config.ConnectTimeoutSec)),
		nats.DisconnectErrHandler(func(_ *nats.Conn, e error) {
			log.WithError(e).WithFields(logTags).Error("Event bus disconnected")
		}),
	)
}

func defineControlVars() (*sync.WaitGroup, context.Context, context.CancelFunc) {
	runTimeContext, rtCancel := context.WithCancel(context.Background())
	return &sync.WaitGroup{}, runTimeContext, rtCancel
}

func signalRecvSetup(wg *sync.WaitGroup, ctxtCancel context.CancelFunc) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		cc := make(chan os.Signal, 1)
		signal.Notify(cc, os.Interrupt)
		<-cc
		ctxtCancel()
	}()
}

// startServe wires a SubscriptionManager per simulated session, a shared
// ServerRegistry, and the read-only diagnostics HTTP server, then runs until
// interrupted.
func startServe(c *cli.Context) error {
	config, err := initialCmdArgsProcessing()
	if err != nil {
		return err
	}
	if config.Diagnostics == nil {
		return fmt.Errorf("diagnostics server can't start without its configuration")
	}

	wg, runTimeContext, rtCancel := defineControlVars()
	defer wg.Wait()
	defer rtCancel()

	eventBus, err := connectEventBus(config.EventBus)
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Failed to connect event bus")
		return err
	}

	reg := registry.New(eventBus, config.EventBus.Subject)
	ns := namespace.NewInMemory()
	ns.RegisterNode(
		uatypes.NodeID{NamespaceIndex: 1, Identifier: "demo.temperature"},
		namespace.NodeInfo{MinSamplingInterval: 100},
	)
	ns.RegisterNode(
		uatypes.NodeID{NamespaceIndex: 1, Identifier: "demo.alarms"},
		namespace.NodeInfo{MinSamplingInterval: 100},
	)

	for i := 0; i < cmdArgs.SessionCt; i++ {
		sessionID := fmt.Sprintf("demo-session-%d", i)
		mgr, err := manager.New(sessionID, config.Limits, ns, reg, runTimeContext, wg)
		if err != nil {
			log.WithError(err).WithFields(logTags).Errorf(
				"Failed to construct SubscriptionManager for %s", sessionID,
			)
			return err
		}
		if err := mgr.Start(); err != nil {
			log.WithError(err).WithFields(logTags).Errorf(
				"Failed to start SubscriptionManager for %s", sessionID,
			)
			return err
		}
		log.WithFields(logTags).Infof("Started SubscriptionManager for %s", sessionID)
	}

	signalRecvSetup(wg, rtCancel)

	return cmd.RunDiagnosticsServer(diagnosticsArgs, reg, config.Diagnostics.Logging, runTimeContext)
}
