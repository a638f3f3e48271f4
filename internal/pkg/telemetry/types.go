package telemetry

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/pkg/errors"
)

// Timestamp is a point in time as sent by the Ondus API.  Depending on the
// endpoint and groupBy, dates arrive as RFC3339 date-times, as bare dates,
// or as epoch milliseconds.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// ParseTimestamp parses any of the date formats the Ondus API produces
func ParseTimestamp(s string) (Timestamp, error) {
	if dt, err := strfmt.ParseDateTime(s); err == nil {
		return Timestamp{Time: time.Time(dt)}, nil
	}

	if d, err := time.Parse(strfmt.RFC3339FullDate, s); err == nil {
		return Timestamp{Time: d}, nil
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Timestamp{Time: time.Unix(0, ms*int64(time.Millisecond))}, nil
	}

	return Timestamp{}, errors.Errorf("unrecognised date: %q", s)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// a bare number of milliseconds
		s = string(data)
	}

	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}

	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(strfmt.DateTime(t.Time).String())
}

// MeasurementSample is one telemetry reading.  Appliances report different
// subsets of the optional fields: a Sense has temperature and humidity, a
// Sense Guard has flowrate, pressure and temperature_guard.
type MeasurementSample struct {
	Date             Timestamp `json:"date"`
	Temperature      *float64  `json:"temperature,omitempty"`
	TemperatureGuard *float64  `json:"temperature_guard,omitempty"`
	Humidity         *float64  `json:"humidity,omitempty"`
	Flowrate         *float64  `json:"flowrate,omitempty"`
	Pressure         *float64  `json:"pressure,omitempty"`
}

// WithdrawalRecord is one water consumption event reported by a Sense Guard
type WithdrawalRecord struct {
	Date             Timestamp `json:"date"`
	WaterConsumption float64   `json:"waterconsumption"`
	WaterCost        float64   `json:"water_cost"`
	EnergyCost       float64   `json:"energy_cost"`
	HotwaterShare    float64   `json:"hotwater_share"`
	MaxFlowrate      *float64  `json:"maxflowrate,omitempty"`
}

// Data is the "data" member of an aggregated data response
type Data struct {
	Measurement []MeasurementSample `json:"measurement,omitempty"`
	Withdrawals []WithdrawalRecord  `json:"withdrawals,omitempty"`
}

// ApplianceData is the body of a data or data/aggregated response
type ApplianceData struct {
	ApplianceID string `json:"appliance_id"`
	Type        int    `json:"type"`
	GroupBy     string `json:"group_by,omitempty"`
	Data        Data   `json:"data"`
}

// Range is the observed minimum and maximum of one measurement field
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// MeasurementStatistics summarises a measurement series
type MeasurementStatistics struct {
	From Timestamp `json:"from"`
	To   Timestamp `json:"to"`

	// Duration is From minus To in seconds, so it is negative when the
	// samples arrive oldest first
	Duration float64 `json:"duration"`
	Count    int     `json:"count"`

	Temperature      *Range `json:"temperature,omitempty"`
	TemperatureGuard *Range `json:"temperatureGuard,omitempty"`
	Humidity         *Range `json:"humidity,omitempty"`
	Flowrate         *Range `json:"flowrate,omitempty"`
	Pressure         *Range `json:"pressure,omitempty"`
}

// WithdrawalStatistics summarises a withdrawal series, overall and for the
// calendar day of the first record
type WithdrawalStatistics struct {
	From  *Timestamp `json:"from,omitempty"`
	To    *Timestamp `json:"to,omitempty"`
	Count int        `json:"count"`

	TotalWaterConsumption float64  `json:"totalWaterConsumption"`
	TotalWaterCost        float64  `json:"totalWaterCost"`
	TotalEnergyCost       float64  `json:"totalEnergyCost"`
	TotalHotwaterShare    float64  `json:"totalHotwaterShare"`
	TotalMaxFlowrate      *float64 `json:"totalMaxFlowrate,omitempty"`

	TodayWaterConsumption float64  `json:"todayWaterConsumption"`
	TodayWaterCost        float64  `json:"todayWaterCost"`
	TodayEnergyCost       float64  `json:"todayEnergyCost"`
	TodayHotwaterShare    float64  `json:"todayHotwaterShare"`
	TodayMaxFlowrate      *float64 `json:"todayMaxFlowrate,omitempty"`
}

// Statistics is the combined summary of an ApplianceData payload
type Statistics struct {
	Measurement *MeasurementStatistics `json:"measurement,omitempty"`
	Withdrawals *WithdrawalStatistics  `json:"withdrawals,omitempty"`
}
