package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	openapierrors "github.com/go-openapi/errors"
	"github.com/korovkin/limiter"
	"github.com/pkg/errors"

	"github.com/jake-scott/ondus-bridge/internal/pkg/logging"
	"github.com/jake-scott/ondus-bridge/internal/pkg/notifications"
	"github.com/jake-scott/ondus-bridge/internal/pkg/ondusapi"
	"github.com/jake-scott/ondus-bridge/internal/pkg/telemetry"
)

const defaultMaxConcurrent = 4

// DataRequest asks for aggregated data in a poll
type DataRequest struct {
	From    time.Time
	To      time.Time
	GroupBy ondusapi.GroupBy
}

// Report is everything learned about an appliance in one poll
type Report struct {
	Location      string                     `json:"location"`
	Room          string                     `json:"room"`
	Appliance     string                     `json:"appliance"`
	Type          string                     `json:"type"`
	Identity      ondusapi.ApplianceIdentity `json:"identity"`
	Info          json.RawMessage            `json:"info,omitempty"`
	Status        map[string]interface{}     `json:"status,omitempty"`
	Details       json.RawMessage            `json:"details,omitempty"`
	Notifications []notifications.Converted  `json:"notifications"`
	Data          *telemetry.ApplianceData   `json:"data,omitempty"`
	Statistics    *telemetry.Statistics      `json:"statistics,omitempty"`
	Command       json.RawMessage            `json:"command,omitempty"`
	FetchedAt     time.Time                  `json:"fetchedAt"`
}

// Poller fetches reports for appliances of a location
type Poller struct {
	location      *Location
	catalog       *notifications.Catalog
	maxConcurrent int
}

func NewPoller(location *Location, catalog *notifications.Catalog) *Poller {
	if catalog == nil {
		catalog = notifications.DefaultCatalog()
	}

	return &Poller{
		location:      location,
		catalog:       catalog,
		maxConcurrent: defaultMaxConcurrent,
	}
}

// WithMaxConcurrent limits the number of API calls in flight per poll
func (p *Poller) WithMaxConcurrent(n int) *Poller {
	np := *p
	if n > 0 {
		np.maxConcurrent = n
	}
	return &np
}

func (p *Poller) Location() *Location {
	return p.location
}

// Poll sends cmd to the appliance if given, then fetches its info, status,
// details and notifications, and its aggregated data when data is given.
// Failure to fetch details, data or command state is logged and leaves the
// field empty; any other failure fails the poll.
func (p *Poller) Poll(ctx context.Context, room string, appliance string, cmd *ondusapi.CommandRequest, data *DataRequest) (*Report, error) {
	ctx = logging.WithLocation(ctx, p.location.Name())
	ctxLogger := logging.Logger(ctx)

	target, err := p.location.Resolve(ctx, room, appliance)
	if err != nil {
		return nil, err
	}

	api, err := p.location.API()
	if err != nil {
		return nil, err
	}
	api = api.WithContext(ctx)
	id := target.Identity

	if cmd != nil && target.Appliance.Type != ondusapi.ApplianceTypeSenseGuard {
		return nil, errors.Wrapf(
			openapierrors.InvalidType("appliance", "path", ondusapi.ApplianceTypeSenseGuard.String(), target.Appliance.Type.String()),
			"%s/%s does not accept commands", room, appliance)
	}

	if cmd != nil {
		ctxLogger.Infof("sending command to %s/%s: %s", room, appliance, cmd.Command)
		if _, err := api.SetApplianceCommand(id, *cmd); err != nil {
			return nil, errors.Wrapf(err, "sending command to %s/%s", room, appliance)
		}
	}

	report := &Report{
		Location:      target.Location,
		Room:          target.Room,
		Appliance:     target.Appliance.Name,
		Type:          target.Appliance.Type.String(),
		Identity:      id,
		Notifications: []notifications.Converted{},
	}

	var mu sync.Mutex
	var fatal error

	limit := limiter.NewConcurrencyLimiter(p.maxConcurrent)
	fetch := func(what string, required bool, fn func() error) {
		limit.ExecuteWithTicket(func(ticket int) {
			ctxLogger.Debugf("poll-goroutine %d: fetching %s", ticket, what)

			err := fn()
			if err == nil {
				return
			}

			if !required {
				ctxLogger.WithError(err).Warnf("fetching %s of %s/%s", what, room, appliance)
				return
			}

			mu.Lock()
			if fatal == nil {
				fatal = errors.Wrapf(err, "fetching %s of %s/%s", what, room, appliance)
			}
			mu.Unlock()
		})
	}

	fetch("info", true, func() error {
		resp, err := api.ApplianceInfo(id)
		if err != nil {
			return err
		}
		infos, err := ondusapi.ParseInfo(resp)
		if err != nil {
			return err
		}
		if len(infos) > 0 {
			report.Info = infos[0].Raw
		}
		return nil
	})

	fetch("status", true, func() error {
		resp, err := api.ApplianceStatus(id)
		if err != nil {
			return err
		}
		status, err := ondusapi.ParseStatus(resp)
		if err != nil {
			return err
		}
		report.Status = status
		return nil
	})

	fetch("notifications", true, func() error {
		resp, err := api.ApplianceNotifications(id)
		if err != nil {
			return err
		}
		ns, err := ondusapi.ParseNotifications(resp)
		if err != nil {
			return err
		}
		report.Notifications = p.catalog.ConvertAll(ns)
		return nil
	})

	fetch("details", false, func() error {
		resp, err := api.ApplianceDetails(id)
		if err != nil {
			return err
		}
		raw, err := resp.Raw()
		if err != nil {
			return err
		}
		report.Details = raw
		return nil
	})

	if data != nil {
		fetch("data", false, func() error {
			resp, err := api.ApplianceData(id, ondusapi.DataQuery{From: data.From, To: data.To, GroupBy: data.GroupBy})
			if err != nil {
				return err
			}
			d, err := ondusapi.ParseApplianceData(resp)
			if err != nil {
				return err
			}
			stats := telemetry.AggregateData(d.Data)
			report.Data = d
			report.Statistics = &stats
			return nil
		})
	}

	if target.Appliance.Type == ondusapi.ApplianceTypeSenseGuard {
		fetch("command state", false, func() error {
			resp, err := api.ApplianceCommand(id)
			if err != nil {
				return err
			}
			state, err := ondusapi.ParseCommand(resp)
			if err != nil {
				return err
			}
			report.Command = state.Command
			return nil
		})
	}

	limit.Wait()

	if fatal != nil {
		return nil, fatal
	}

	report.FetchedAt = time.Now()
	return report, nil
}
