package cmd

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jake-scott/ondus-bridge/internal/pkg/logging"
	"github.com/jake-scott/ondus-bridge/internal/pkg/monitor"
	"github.com/jake-scott/ondus-bridge/internal/pkg/notifications"
	"github.com/jake-scott/ondus-bridge/internal/pkg/ondusapi"
	"github.com/jake-scott/ondus-bridge/internal/pkg/ondusauth"
	"github.com/jake-scott/ondus-bridge/internal/pkg/sink"
)

// Settings shared by the poll and server commands
var _ondusOpts struct {
	username      string
	password      string
	location      string
	baseURL       string
	apiTimeout    time.Duration
	maxConcurrent int

	mqttBroker   string
	mqttClientID string
	mqttUsername string
	mqttPassword string
	mqttPrefix   string
	mqttQoS      uint8
	mqttRetain   bool

	influxURL    string
	influxToken  string
	influxOrg    string
	influxBucket string
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&_ondusOpts.username, "username", "", "Ondus account e-mail address")
	pf.StringVar(&_ondusOpts.password, "password", "", "Ondus account password")
	pf.StringVar(&_ondusOpts.location, "location", "", "name of the Ondus location to bridge")
	pf.StringVar(&_ondusOpts.baseURL, "base-url", ondusapi.DefaultBaseURL, "Ondus cloud base URL")
	pf.DurationVar(&_ondusOpts.apiTimeout, "api-timeout", time.Second*15, "maximum duration of an Ondus API call, eg. 1m or 10s")
	pf.IntVar(&_ondusOpts.maxConcurrent, "max-concurrent", 3, "maximum Ondus API calls in flight per poll")

	pf.StringVar(&_ondusOpts.mqttBroker, "mqtt-broker", "", "MQTT broker URL, eg. tcp://localhost:1883 (disabled if empty)")
	pf.StringVar(&_ondusOpts.mqttClientID, "mqtt-clientid", "ondus-bridge", "MQTT client ID")
	pf.StringVar(&_ondusOpts.mqttUsername, "mqtt-username", "", "MQTT username")
	pf.StringVar(&_ondusOpts.mqttPassword, "mqtt-password", "", "MQTT password")
	pf.StringVar(&_ondusOpts.mqttPrefix, "mqtt-prefix", "ondus", "MQTT topic prefix")
	pf.Uint8Var(&_ondusOpts.mqttQoS, "mqtt-qos", 1, "MQTT publish QoS (0-2)")
	pf.BoolVar(&_ondusOpts.mqttRetain, "mqtt-retain", true, "publish reports as retained messages")

	pf.StringVar(&_ondusOpts.influxURL, "influxdb-url", "", "InfluxDB URL, eg. http://localhost:8086 (disabled if empty)")
	pf.StringVar(&_ondusOpts.influxToken, "influxdb-token", "", "InfluxDB API token")
	pf.StringVar(&_ondusOpts.influxOrg, "influxdb-org", "", "InfluxDB organisation")
	pf.StringVar(&_ondusOpts.influxBucket, "influxdb-bucket", "ondus", "InfluxDB bucket")

	errPanic(viper.GetViper().BindPFlag("ondus.username", pf.Lookup("username")))
	errPanic(viper.GetViper().BindPFlag("ondus.password", pf.Lookup("password")))
	errPanic(viper.GetViper().BindPFlag("ondus.location", pf.Lookup("location")))
	errPanic(viper.GetViper().BindPFlag("ondus.base-url", pf.Lookup("base-url")))
	errPanic(viper.GetViper().BindPFlag("ondus.api-timeout", pf.Lookup("api-timeout")))
	errPanic(viper.GetViper().BindPFlag("poll.max-concurrent", pf.Lookup("max-concurrent")))

	errPanic(viper.GetViper().BindPFlag("mqtt.broker", pf.Lookup("mqtt-broker")))
	errPanic(viper.GetViper().BindPFlag("mqtt.client-id", pf.Lookup("mqtt-clientid")))
	errPanic(viper.GetViper().BindPFlag("mqtt.username", pf.Lookup("mqtt-username")))
	errPanic(viper.GetViper().BindPFlag("mqtt.password", pf.Lookup("mqtt-password")))
	errPanic(viper.GetViper().BindPFlag("mqtt.topic-prefix", pf.Lookup("mqtt-prefix")))
	errPanic(viper.GetViper().BindPFlag("mqtt.qos", pf.Lookup("mqtt-qos")))
	errPanic(viper.GetViper().BindPFlag("mqtt.retain", pf.Lookup("mqtt-retain")))

	errPanic(viper.GetViper().BindPFlag("influxdb.url", pf.Lookup("influxdb-url")))
	errPanic(viper.GetViper().BindPFlag("influxdb.token", pf.Lookup("influxdb-token")))
	errPanic(viper.GetViper().BindPFlag("influxdb.org", pf.Lookup("influxdb-org")))
	errPanic(viper.GetViper().BindPFlag("influxdb.bucket", pf.Lookup("influxdb-bucket")))
}

var ondusRequiredFlags = []string{"ondus.username", "ondus.password", "ondus.location"}

// connectLocation logs in and loads the configured location.  The
// location's state changes are logged for the life of the process.
func connectLocation(ctx context.Context) (*monitor.Location, error) {
	auth := ondusauth.NewAuthenticator().
		WithBaseURL(viper.GetString("ondus.base-url")).
		WithTimeout(viper.GetDuration("ondus.api-timeout"))

	l := monitor.NewLocation(viper.GetString("ondus.location"), auth)
	l.Subscribe(func(ev monitor.Event) {
		ctxLogger := logging.Logger(logging.WithLocation(ctx, l.Name()))
		if ev.Err != nil {
			ctxLogger.WithError(ev.Err).Warnf("location state: %s", ev.State)
		} else {
			ctxLogger.Infof("location state: %s", ev.State)
		}
	})

	if err := l.Connect(ctx, viper.GetString("ondus.username"), viper.GetString("ondus.password")); err != nil {
		return nil, errors.Wrapf(err, "connecting to location %s", l.Name())
	}

	return l, nil
}

func newPoller(l *monitor.Location) (*monitor.Poller, error) {
	catalog, err := notifications.FromConfig(viper.GetViper(), "notifications.categories")
	if err != nil {
		return nil, err
	}

	return monitor.NewPoller(l, catalog).WithMaxConcurrent(viper.GetInt("poll.max-concurrent")), nil
}

// connectSinks connects to whichever of MQTT and InfluxDB are configured
func connectSinks(ctx context.Context) (sink.Multi, error) {
	var sinks sink.Multi

	if broker := viper.GetString("mqtt.broker"); broker != "" {
		m, err := sink.ConnectMQTT(sink.MQTTConfig{
			Broker:      broker,
			ClientID:    viper.GetString("mqtt.client-id"),
			Username:    viper.GetString("mqtt.username"),
			Password:    viper.GetString("mqtt.password"),
			TopicPrefix: viper.GetString("mqtt.topic-prefix"),
			QoS:         byte(viper.GetUint("mqtt.qos")),
			Retain:      viper.GetBool("mqtt.retain"),
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, m)
	}

	if url := viper.GetString("influxdb.url"); url != "" {
		i, err := sink.ConnectInflux(ctx, sink.InfluxConfig{
			URL:    url,
			Token:  viper.GetString("influxdb.token"),
			Org:    viper.GetString("influxdb.org"),
			Bucket: viper.GetString("influxdb.bucket"),
		})
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, i)
	}

	if len(sinks) == 0 {
		logging.Logger(ctx).Warn("no MQTT broker or InfluxDB configured, reports will only be logged")
	}

	return sinks, nil
}
