package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/ondus-bridge/internal/pkg/handlers"
	"github.com/jake-scott/ondus-bridge/internal/pkg/logging"
	"github.com/jake-scott/ondus-bridge/internal/pkg/notifications"
	"github.com/jake-scott/ondus-bridge/internal/pkg/ondusapi"
	"github.com/jake-scott/ondus-bridge/pkg/middlewares"
)

const correlationHeader = "X-Correlation-ID"

var _serverCmdOpts struct {
	httpPort        uint16
	tlsCertPath     string
	tlsKeyPath      string
	corsOrigins     []string
	gracefulTimeout time.Duration
	readTimeout     time.Duration
	writeTimeout    time.Duration
	dataWindow      time.Duration
	groupBy         string
	logRequests     bool
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the local HTTP API",

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doServer(); err != nil {
			return err
		}

		return nil
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags(ondusRequiredFlags...)
	},
}

func init() {
	serverCmd.Flags().Uint16Var(&_serverCmdOpts.httpPort, "http-port", 8080, "HTTP port number")
	serverCmd.Flags().StringVar(&_serverCmdOpts.tlsCertPath, "tls-cert", "", "TLS certificate file (serve plain HTTP if unset)")
	serverCmd.Flags().StringVar(&_serverCmdOpts.tlsKeyPath, "tls-key", "", "TLS key file")
	serverCmd.Flags().StringSliceVar(&_serverCmdOpts.corsOrigins, "cors-origin", nil, "origins allowed to call the API from a browser")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.gracefulTimeout, "graceful-timeout", time.Second*15, "duration to wait for server to finish, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.readTimeout, "read-timeout", time.Second*15, "duration to wait for request read, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.writeTimeout, "write-timeout", time.Second*60, "duration to wait for request write, eg. 1m or 10s")
	serverCmd.Flags().DurationVar(&_serverCmdOpts.dataWindow, "data-window", time.Hour*24, "default aggregated data window of a report")
	serverCmd.Flags().StringVar(&_serverCmdOpts.groupBy, "group-by", string(ondusapi.GroupByHour), "default aggregated data bucket")
	serverCmd.Flags().BoolVar(&_serverCmdOpts.logRequests, "log-requests", false, "log requests and responses (only in debug mode)")

	errPanic(viper.GetViper().BindPFlag("http.port", serverCmd.Flags().Lookup("http-port")))
	errPanic(viper.GetViper().BindPFlag("http.cert", serverCmd.Flags().Lookup("tls-cert")))
	errPanic(viper.GetViper().BindPFlag("http.key", serverCmd.Flags().Lookup("tls-key")))
	errPanic(viper.GetViper().BindPFlag("http.cors-origins", serverCmd.Flags().Lookup("cors-origin")))
	errPanic(viper.GetViper().BindPFlag("http.graceful-timeout", serverCmd.Flags().Lookup("graceful-timeout")))
	errPanic(viper.GetViper().BindPFlag("http.read-timeout", serverCmd.Flags().Lookup("read-timeout")))
	errPanic(viper.GetViper().BindPFlag("http.write-timeout", serverCmd.Flags().Lookup("write-timeout")))
	errPanic(viper.GetViper().BindPFlag("http.data-window", serverCmd.Flags().Lookup("data-window")))
	errPanic(viper.GetViper().BindPFlag("http.group-by", serverCmd.Flags().Lookup("group-by")))
	errPanic(viper.GetViper().BindPFlag("logging.log-requests", serverCmd.Flags().Lookup("log-requests")))

	rootCmd.AddCommand(serverCmd)
}

func doServer() error {
	wait := viper.GetDuration("http.graceful-timeout")
	port := viper.GetUint("http.port")
	certFile := viper.GetString("http.cert")
	keyFile := viper.GetString("http.key")
	groupBy := ondusapi.GroupBy(viper.GetString("http.group-by"))

	if err := groupBy.Validate(nil); err != nil {
		return err
	}
	if (certFile == "") != (keyFile == "") {
		return fmt.Errorf("both http.cert and http.key are needed for TLS")
	}

	var logRequests bool
	if viper.GetBool("logging.log-requests") {
		if logrus.IsLevelEnabled(logrus.DebugLevel) {
			logRequests = true
		} else {
			logging.Logger(nil).Warn("log-requests ignored when not in debug mode")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, err := connectLocation(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	poller, err := newPoller(l)
	if err != nil {
		return err
	}

	sinks, err := connectSinks(ctx)
	if err != nil {
		return err
	}
	defer sinks.Close()

	catalog, err := notifications.FromConfig(viper.GetViper(), "notifications.categories")
	if err != nil {
		return err
	}

	ah := handlers.NewApplianceHandler(poller, sinks, viper.GetDuration("http.data-window"), groupBy)

	r := mux.NewRouter()
	if origins := viper.GetStringSlice("http.cors-origins"); len(origins) > 0 {
		r.Use(middlewares.NewCorsMw(middlewares.CorsOptions(origins, correlationHeader)))
	}
	r.Use(middlewares.NewCorrelationMw(correlationHeader))
	r.Use(middlewares.NewLoggingMw(logRequests, "/healthz"))
	r.Use(middlewares.NewRecoveryMw())
	r.Handle("/healthz", handlers.NewHealthHandler(l)).Methods(http.MethodGet)
	r.Handle("/rooms/{room}/appliances/{appliance}", ah.Report()).Methods(http.MethodGet)
	r.Handle("/rooms/{room}/appliances/{appliance}/command", ah.Command()).Methods(http.MethodPost, http.MethodOptions)
	r.Handle("/notifications/{category}/{type}", handlers.NewNotificationHandler(catalog)).Methods(http.MethodGet)

	s := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		ReadTimeout:  viper.GetDuration("http.read-timeout"),
		WriteTimeout: viper.GetDuration("http.write-timeout"),
		IdleTimeout:  time.Second * 60,
		Handler:      r,
	}

	logging.Logger(nil).Infof("Serving on port %d", port)
	go func() {
		var err error
		if certFile != "" {
			err = s.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = s.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logging.Logger(nil).WithError(err).Error("running server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	// Block until we receive a signal
	<-c

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), wait)
	defer shutdownCancel()
	logging.Logger(nil).Info("shutting down")
	if err := s.Shutdown(shutdownCtx); err != nil {
		logging.Logger(nil).WithError(err).Errorf("shutting down")
	}
	logging.Logger(nil).Info("exiting")
	return nil
}
