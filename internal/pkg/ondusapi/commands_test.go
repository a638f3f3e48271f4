package ondusapi

import (
	"encoding/json"
	"testing"

	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     CommandRequest
		wantErr bool
	}{
		{"valve", NewValveCommand(true), false},
		{"measure", NewMeasureNowCommand(), false},
		{"wrong appliance", CommandRequest{ApplianceType: ApplianceTypeSense, Command: Command{ValveOpen: swag.Bool(true)}}, true},
		{"empty command", CommandRequest{ApplianceType: ApplianceTypeSenseGuard}, true},
		{"negative sound profile", CommandRequest{ApplianceType: ApplianceTypeSenseGuard, Command: Command{BuzzerSoundProfile: swag.Int(-1)}}, true},
		{"sound profile", CommandRequest{ApplianceType: ApplianceTypeSenseGuard, Command: Command{BuzzerOn: swag.Bool(true), BuzzerSoundProfile: swag.Int(2)}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(strfmt.Default)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "valve_open=false", NewValveCommand(false).Command.String())
	assert.Equal(t, "<empty>", Command{}.String())
	assert.Equal(t, "buzzer_on=true buzzer_sound_profile=3",
		Command{BuzzerOn: swag.Bool(true), BuzzerSoundProfile: swag.Int(3)}.String())
}

func TestGroupByValidate(t *testing.T) {
	for _, g := range []GroupBy{GroupByNone, GroupByHour, GroupByDay, GroupByWeek, GroupByMonth, GroupByYear} {
		assert.NoError(t, g.Validate(strfmt.Default), string(g))
	}
	assert.Error(t, GroupBy("minute").Validate(strfmt.Default))
}

func TestIdentityValidate(t *testing.T) {
	assert.NoError(t, ApplianceIdentity{LocationID: "1", RoomID: "2", ApplianceID: "3"}.Validate(strfmt.Default))
	assert.Error(t, ApplianceIdentity{LocationID: "1", ApplianceID: "3"}.Validate(strfmt.Default))
	assert.Equal(t, "1/2/3", ApplianceIdentity{LocationID: "1", RoomID: "2", ApplianceID: "3"}.String())
}

func TestIDDecoding(t *testing.T) {
	var loc Location
	require.NoError(t, json.Unmarshal([]byte(`{"id":1234,"name":"Home","rooms":[{"id":"r-9","name":"Hall"}]}`), &loc))
	assert.Equal(t, ID("1234"), loc.ID)
	assert.Equal(t, ID("r-9"), loc.Rooms[0].ID)

	assert.Error(t, json.Unmarshal([]byte(`{"id":true}`), &loc))
}

func TestDashboardResolve(t *testing.T) {
	d := Dashboard{Locations: []Location{{
		ID:   "1",
		Name: "Home",
		Rooms: []Room{{
			ID:         "2",
			Name:       "Kitchen",
			Appliances: []Appliance{{ID: "abc", Name: "Sink", Type: ApplianceTypeSense}},
		}},
	}}}

	id, err := d.Resolve("Home", "Kitchen", "Sink")
	require.NoError(t, err)
	assert.Equal(t, ApplianceIdentity{LocationID: "1", RoomID: "2", ApplianceID: "abc"}, id)

	_, err = d.Resolve("Home", "Garage", "Sink")
	assert.Error(t, err)
}
