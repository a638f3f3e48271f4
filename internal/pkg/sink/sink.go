// Package sink forwards appliance reports to MQTT and InfluxDB
package sink

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jake-scott/ondus-bridge/internal/pkg/logging"
	"github.com/jake-scott/ondus-bridge/internal/pkg/monitor"
)

var (
	ErrNotConnected     = errors.New("sink not connected")
	ErrConnectionFailed = errors.New("sink connection failed")
	ErrPublishFailed    = errors.New("sink publish failed")
)

// Sink receives every report produced by a poll
type Sink interface {
	Publish(ctx context.Context, report *monitor.Report) error
	Close() error
}

// Multi publishes to each of its sinks in turn.  A failing sink does not
// stop the others; the first error is returned.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, report *monitor.Report) error {
	var first error
	for _, s := range m {
		if err := s.Publish(ctx, report); err != nil {
			logging.Logger(ctx).WithError(err).Warnf("publishing report for %s/%s", report.Room, report.Appliance)
			if first == nil {
				first = err
			}
		}
	}

	return first
}

func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}
