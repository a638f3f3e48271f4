package telemetry

import (
	"math"
	"time"

	"github.com/go-openapi/swag"
	"github.com/pkg/errors"
)

// ErrEmptySeries is returned when asked to summarise a measurement series
// with no samples in it
var ErrEmptySeries = errors.New("telemetry: cannot aggregate an empty series")

// accumulates the range of an optional field; a nil or NaN value is absent
// and never participates
type rangeAcc struct {
	r *Range
}

func (a *rangeAcc) add(v *float64) {
	if v == nil || math.IsNaN(*v) {
		return
	}

	if a.r == nil {
		a.r = &Range{Min: *v, Max: *v}
		return
	}

	a.r.Min = math.Min(a.r.Min, *v)
	a.r.Max = math.Max(a.r.Max, *v)
}

// running maximum of an optional field
type maxAcc struct {
	v *float64
}

func (a *maxAcc) add(v *float64) {
	if v == nil || math.IsNaN(*v) {
		return
	}

	if a.v == nil || *v > *a.v {
		a.v = swag.Float64(*v)
	}
}

// AggregateMeasurements computes the min/max of every measurement field
// across samples.  Fields for which no sample carries a value are left out
// of the result.  From and To are taken from the first and last sample as
// given, without sorting.
func AggregateMeasurements(samples []MeasurementSample) (*MeasurementStatistics, error) {
	if len(samples) == 0 {
		return nil, ErrEmptySeries
	}

	var temperature, temperatureGuard, humidity, flowrate, pressure rangeAcc

	for _, s := range samples {
		temperature.add(s.Temperature)
		temperatureGuard.add(s.TemperatureGuard)
		humidity.add(s.Humidity)
		flowrate.add(s.Flowrate)
		pressure.add(s.Pressure)
	}

	from := samples[0].Date
	to := samples[len(samples)-1].Date

	return &MeasurementStatistics{
		From:             from,
		To:               to,
		Duration:         from.Sub(to.Time).Seconds(),
		Count:            len(samples),
		Temperature:      temperature.r,
		TemperatureGuard: temperatureGuard.r,
		Humidity:         humidity.r,
		Flowrate:         flowrate.r,
		Pressure:         pressure.r,
	}, nil
}

// AggregateWithdrawals totals a withdrawal series using local time to find
// the start of "today"
func AggregateWithdrawals(records []WithdrawalRecord) *WithdrawalStatistics {
	return AggregateWithdrawalsIn(records, time.Local)
}

// AggregateWithdrawalsIn totals a withdrawal series.  The "today" figures
// cover the records dated at or after midnight of the first record's day in
// loc; the caller's wall clock plays no part.
func AggregateWithdrawalsIn(records []WithdrawalRecord, loc *time.Location) *WithdrawalStatistics {
	stats := &WithdrawalStatistics{Count: len(records)}
	if len(records) == 0 {
		return stats
	}

	first := records[0].Date
	last := records[len(records)-1].Date
	stats.From = &first
	stats.To = &last

	y, m, d := first.In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	var totalMax, todayMax maxAcc

	for _, r := range records {
		stats.TotalWaterConsumption += r.WaterConsumption
		stats.TotalWaterCost += r.WaterCost
		stats.TotalEnergyCost += r.EnergyCost
		stats.TotalHotwaterShare += r.HotwaterShare
		totalMax.add(r.MaxFlowrate)

		if !r.Date.Before(today) {
			stats.TodayWaterConsumption += r.WaterConsumption
			stats.TodayWaterCost += r.WaterCost
			stats.TodayEnergyCost += r.EnergyCost
			stats.TodayHotwaterShare += r.HotwaterShare
			todayMax.add(r.MaxFlowrate)
		}
	}

	stats.TotalMaxFlowrate = totalMax.v
	stats.TodayMaxFlowrate = todayMax.v

	return stats
}

// AggregateData summarises whichever series are present and non-empty
func AggregateData(data Data) Statistics {
	var stats Statistics

	if len(data.Measurement) > 0 {
		// cannot fail on a non-empty series
		stats.Measurement, _ = AggregateMeasurements(data.Measurement)
	}

	if len(data.Withdrawals) > 0 {
		stats.Withdrawals = AggregateWithdrawals(data.Withdrawals)
	}

	return stats
}
