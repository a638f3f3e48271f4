package sink

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"

	"github.com/jake-scott/ondus-bridge/internal/pkg/logging"
	"github.com/jake-scott/ondus-bridge/internal/pkg/monitor"
	"github.com/jake-scott/ondus-bridge/internal/pkg/telemetry"
)

const (
	MeasurementSamples       = "ondus_measurement"
	MeasurementWithdrawals   = "ondus_withdrawals"
	MeasurementStatus        = "ondus_status"
	MeasurementNotifications = "ondus_notifications"

	defaultInfluxTimeout = 10 * time.Second
)

type InfluxConfig struct {
	URL     string
	Token   string
	Org     string
	Bucket  string
	Timeout time.Duration
}

// pointWriter is the part of api.WriteAPIBlocking used here
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Influx writes report contents as points, one series per measurement
type Influx struct {
	client influxdb2.Client
	writer pointWriter
}

// ConnectInflux creates a client and checks the server is up
func ConnectInflux(ctx context.Context, cfg InfluxConfig) (*Influx, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultInfluxTimeout
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPRequestTimeout(uint(timeout.Seconds())))

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, errors.Wrapf(ErrConnectionFailed, "InfluxDB ping %s: %v", cfg.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, errors.Wrapf(ErrConnectionFailed, "InfluxDB at %s not healthy", cfg.URL)
	}

	logging.Logger(ctx).Infof("connected to InfluxDB %s, bucket %s", cfg.URL, cfg.Bucket)

	return &Influx{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

func (i *Influx) Publish(ctx context.Context, report *monitor.Report) error {
	points := Points(report)
	if len(points) == 0 {
		return nil
	}

	if err := i.writer.WritePoint(ctx, points...); err != nil {
		return errors.Wrapf(ErrPublishFailed, "writing %d points: %v", len(points), err)
	}

	logging.Logger(ctx).Debugf("wrote %d points for %s/%s", len(points), report.Room, report.Appliance)
	return nil
}

func (i *Influx) Close() error {
	if i.client != nil {
		i.client.Close()
	}
	return nil
}

func reportTags(report *monitor.Report) map[string]string {
	return map[string]string{
		"location":  report.Location,
		"room":      report.Room,
		"appliance": report.Appliance,
		"type":      report.Type,
	}
}

func withTags(base map[string]string, extra map[string]string) map[string]string {
	tags := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		tags[k] = v
	}
	for k, v := range extra {
		tags[k] = v
	}
	return tags
}

func addOptional(fields map[string]interface{}, name string, v *float64) {
	if v != nil {
		fields[name] = *v
	}
}

// Points converts a report to InfluxDB points
func Points(report *monitor.Report) []*write.Point {
	tags := reportTags(report)
	var points []*write.Point

	if len(report.Status) > 0 {
		fields := make(map[string]interface{}, len(report.Status))
		for k, v := range report.Status {
			switch v.(type) {
			case float64, bool, string:
				fields[k] = v
			}
		}
		if len(fields) > 0 {
			points = append(points, write.NewPoint(MeasurementStatus, tags, fields, report.FetchedAt))
		}
	}

	for _, n := range report.Notifications {
		ts := report.FetchedAt
		if parsed, err := telemetry.ParseTimestamp(n.Notification.Timestamp); err == nil {
			ts = parsed.Time
		}

		points = append(points, write.NewPoint(MeasurementNotifications,
			withTags(tags, map[string]string{"category": n.Category, "severity": n.Severity.String()}),
			map[string]interface{}{
				"id":      n.Notification.ID,
				"type":    n.Type,
				"message": n.Message,
				"alarm":   n.Alarm,
				"shutoff": n.Shutoff,
			}, ts))
	}

	if report.Data == nil {
		return points
	}

	for _, s := range report.Data.Data.Measurement {
		fields := map[string]interface{}{}
		addOptional(fields, "temperature", s.Temperature)
		addOptional(fields, "temperature_guard", s.TemperatureGuard)
		addOptional(fields, "humidity", s.Humidity)
		addOptional(fields, "flowrate", s.Flowrate)
		addOptional(fields, "pressure", s.Pressure)
		if len(fields) == 0 {
			continue
		}
		points = append(points, write.NewPoint(MeasurementSamples, tags, fields, s.Date.Time))
	}

	for _, w := range report.Data.Data.Withdrawals {
		fields := map[string]interface{}{
			"waterconsumption": w.WaterConsumption,
			"water_cost":       w.WaterCost,
			"energy_cost":      w.EnergyCost,
			"hotwater_share":   w.HotwaterShare,
		}
		addOptional(fields, "maxflowrate", w.MaxFlowrate)
		points = append(points, write.NewPoint(MeasurementWithdrawals, tags, fields, w.Date.Time))
	}

	return points
}
