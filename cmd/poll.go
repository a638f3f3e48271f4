package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/korovkin/limiter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/ondus-bridge/internal/pkg/logging"
	"github.com/jake-scott/ondus-bridge/internal/pkg/monitor"
	"github.com/jake-scott/ondus-bridge/internal/pkg/ondusapi"
	"github.com/jake-scott/ondus-bridge/internal/pkg/sink"
)

// appliances polled at the same time in a round
const maxConcurrentAppliances = 2

var _pollCmdOpts struct {
	room       string
	appliance  string
	interval   time.Duration
	dataWindow time.Duration
	groupBy    string
	once       bool
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll appliances periodically and publish the reports",

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doPoll(); err != nil {
			return err
		}

		return nil
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags(ondusRequiredFlags...)
	},
}

func init() {
	pollCmd.Flags().StringVar(&_pollCmdOpts.room, "room", "", "only poll appliances in this room")
	pollCmd.Flags().StringVar(&_pollCmdOpts.appliance, "appliance", "", "only poll this appliance (requires --room)")
	pollCmd.Flags().DurationVar(&_pollCmdOpts.interval, "interval", time.Minute*5, "time between polls, eg. 1m or 10s")
	pollCmd.Flags().DurationVar(&_pollCmdOpts.dataWindow, "data-window", time.Hour*24, "how far back to fetch aggregated data (0 to skip data)")
	pollCmd.Flags().StringVar(&_pollCmdOpts.groupBy, "group-by", string(ondusapi.GroupByHour), "aggregated data bucket: hour, day, week, month or year")
	pollCmd.Flags().BoolVar(&_pollCmdOpts.once, "once", false, "poll once, print the reports and exit")

	errPanic(viper.GetViper().BindPFlag("poll.room", pollCmd.Flags().Lookup("room")))
	errPanic(viper.GetViper().BindPFlag("poll.appliance", pollCmd.Flags().Lookup("appliance")))
	errPanic(viper.GetViper().BindPFlag("poll.interval", pollCmd.Flags().Lookup("interval")))
	errPanic(viper.GetViper().BindPFlag("poll.data-window", pollCmd.Flags().Lookup("data-window")))
	errPanic(viper.GetViper().BindPFlag("poll.group-by", pollCmd.Flags().Lookup("group-by")))
	errPanic(viper.GetViper().BindPFlag("poll.once", pollCmd.Flags().Lookup("once")))

	rootCmd.AddCommand(pollCmd)
}

// pollTargets lists the appliances a round should poll
func pollTargets(ctx context.Context, l *monitor.Location) ([]monitor.Target, error) {
	room := viper.GetString("poll.room")
	appliance := viper.GetString("poll.appliance")

	if appliance != "" {
		if room == "" {
			return nil, errors.New("--appliance requires --room")
		}

		target, err := l.Resolve(ctx, room, appliance)
		if err != nil {
			return nil, err
		}
		return []monitor.Target{target}, nil
	}

	return l.Targets(room)
}

// pollRound polls every target once.  Data is requested for the window
// ending now; a zero window skips it.
func pollRound(ctx context.Context, poller *monitor.Poller, out sink.Sink, window time.Duration, groupBy ondusapi.GroupBy) error {
	ctx = logging.NewTxn(ctx)
	ctxLogger := logging.Logger(ctx)

	targets, err := pollTargets(ctx, poller.Location())
	if err != nil {
		return err
	}

	var data *monitor.DataRequest
	if window > 0 {
		to := time.Now()
		data = &monitor.DataRequest{From: to.Add(-window), To: to, GroupBy: groupBy}
	}

	var mu sync.Mutex
	var unauthorized bool

	limit := limiter.NewConcurrencyLimiter(maxConcurrentAppliances)
	for _, t := range targets {
		t := t
		limit.ExecuteWithTicket(func(ticket int) {
			ctxLogger.Debugf("poll-goroutine %d: polling %s/%s", ticket, t.Room, t.Appliance.Name)

			report, err := poller.Poll(ctx, t.Room, t.Appliance.Name, nil, data)
			if err != nil {
				if ondusapi.IsUnauthorized(err) {
					mu.Lock()
					unauthorized = true
					mu.Unlock()
				}
				ctxLogger.WithError(err).Errorf("polling %s/%s", t.Room, t.Appliance.Name)
				return
			}

			if viper.GetBool("poll.once") {
				if b, err := json.MarshalIndent(report, "", "    "); err == nil {
					mu.Lock()
					os.Stdout.Write(append(b, '\n'))
					mu.Unlock()
				}
			}

			if err := out.Publish(ctx, report); err != nil {
				ctxLogger.WithError(err).Errorf("publishing %s/%s", t.Room, t.Appliance.Name)
			}
		})
	}
	limit.Wait()

	if unauthorized {
		return errors.Wrap(monitor.ErrNotReady, "Ondus rejected the session")
	}

	return nil
}

func doPoll() error {
	interval := viper.GetDuration("poll.interval")
	window := viper.GetDuration("poll.data-window")
	groupBy := ondusapi.GroupBy(viper.GetString("poll.group-by"))

	if err := groupBy.Validate(nil); err != nil {
		return err
	}
	if interval <= 0 {
		return errors.Errorf("bad poll interval %s", interval)
	}

	// context to allow us to stop the poll loop
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

	if viper.GetBool("poll.once") {
		return pollRound(ctx, poller, sinks, window, groupBy)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.Logger(nil).Infof("polling location %s every %s", l.Name(), interval)

	for {
		err := pollRound(ctx, poller, sinks, window, groupBy)
		if errors.Is(err, monitor.ErrNotReady) {
			logging.Logger(nil).WithError(err).Warn("poll-loop: logging in again")
			if err := l.Connect(ctx, viper.GetString("ondus.username"), viper.GetString("ondus.password")); err != nil {
				logging.Logger(nil).WithError(err).Error("poll-loop: login failed, will retry")
			}
		} else if err != nil {
			logging.Logger(nil).WithError(err).Error("poll-loop: round failed")
		}

		select {
		case <-c:
			logging.Logger(nil).Info("poll-loop: shutting down")
			return nil
		case <-ticker.C:
		}
	}
}
