package ondusapi

import (
	"fmt"

	openapierrors "github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/go-openapi/validate"
)

// GroupBy is the bucket size for aggregated appliance data
type GroupBy string

const (
	GroupByNone  GroupBy = ""
	GroupByHour  GroupBy = "hour"
	GroupByDay   GroupBy = "day"
	GroupByWeek  GroupBy = "week"
	GroupByMonth GroupBy = "month"
	GroupByYear  GroupBy = "year"
)

var groupByEnum = []interface{}{"hour", "day", "week", "month", "year"}

func (g GroupBy) Validate(formats strfmt.Registry) error {
	if g == GroupByNone {
		return nil
	}

	if err := validate.Enum("groupBy", "query", string(g), groupByEnum); err != nil {
		return err
	}

	return nil
}

// Command holds the Sense Guard controls; nil fields are left unchanged
type Command struct {
	ValveOpen          *bool `json:"valve_open,omitempty"`
	MeasureNow         *bool `json:"measure_now,omitempty"`
	BuzzerOn           *bool `json:"buzzer_on,omitempty"`
	BuzzerSoundProfile *int  `json:"buzzer_sound_profile,omitempty"`
	TemporaryValveOpen *bool `json:"temporary_valve_open,omitempty"`
}

func (c Command) String() string {
	s := ""
	add := func(name string, v *bool) {
		if v != nil {
			s += fmt.Sprintf("%s=%t ", name, swag.BoolValue(v))
		}
	}
	add("valve_open", c.ValveOpen)
	add("measure_now", c.MeasureNow)
	add("buzzer_on", c.BuzzerOn)
	add("temporary_valve_open", c.TemporaryValveOpen)
	if c.BuzzerSoundProfile != nil {
		s += fmt.Sprintf("buzzer_sound_profile=%d ", swag.IntValue(c.BuzzerSoundProfile))
	}

	if s == "" {
		return "<empty>"
	}
	return s[:len(s)-1]
}

// CommandRequest is the body POSTed to an appliance's command endpoint
type CommandRequest struct {
	ApplianceType ApplianceType `json:"type"`
	Command       Command       `json:"command"`
}

func NewValveCommand(open bool) CommandRequest {
	return CommandRequest{
		ApplianceType: ApplianceTypeSenseGuard,
		Command:       Command{ValveOpen: swag.Bool(open)},
	}
}

func NewMeasureNowCommand() CommandRequest {
	return CommandRequest{
		ApplianceType: ApplianceTypeSenseGuard,
		Command:       Command{MeasureNow: swag.Bool(true)},
	}
}

// Validate checks that the command is addressed to a Sense Guard, the only
// appliance that accepts commands, and that it sets at least one control
func (r CommandRequest) Validate(formats strfmt.Registry) error {
	var res []error

	if r.ApplianceType != ApplianceTypeSenseGuard {
		res = append(res, openapierrors.InvalidType("type", "body", ApplianceTypeSenseGuard.String(), int(r.ApplianceType)))
	}

	c := r.Command
	if c.ValveOpen == nil && c.MeasureNow == nil && c.BuzzerOn == nil && c.BuzzerSoundProfile == nil && c.TemporaryValveOpen == nil {
		res = append(res, openapierrors.Required("command", "body", nil))
	}

	if c.BuzzerSoundProfile != nil {
		if err := validate.MinimumInt("command.buzzer_sound_profile", "body", int64(*c.BuzzerSoundProfile), 0, false); err != nil {
			res = append(res, err)
		}
	}

	if len(res) > 0 {
		return openapierrors.CompositeValidationError(res...)
	}

	return nil
}
