package ondustest

var defaultDashboard = `{
  "locations": [
    {
      "id": 1234,
      "name": "Home",
      "type": 2,
      "role": "owner",
      "timezone": "Europe/Berlin",
      "rooms": [
        {
          "id": 5678,
          "name": "Basement",
          "type": 0,
          "room_type": 15,
          "appliances": [
            {"appliance_id": "guard-0001", "name": "Main valve", "type": 103, "registered": true},
            {"appliance_id": "sense-0001", "name": "Floor sensor", "type": 101, "registered": true}
          ]
        }
      ]
    },
    {
      "id": 9999,
      "name": "Holiday flat",
      "rooms": []
    }
  ]
}`

func defaultResponses() map[string]string {
	guard := ApplianceIdentityPath(GuardID)
	sense := ApplianceIdentityPath(SenseID)

	r := make(map[string]string)

	r["/locations"] = `[{"id":1234,"name":"Home"},{"id":9999,"name":"Holiday flat"}]`
	r["/locations/1234/rooms"] = `[{"id":5678,"name":"Basement"}]`
	r["/locations/1234/rooms/5678/appliances"] = `[{"appliance_id":"guard-0001","name":"Main valve","type":103},{"appliance_id":"sense-0001","name":"Floor sensor","type":101}]`
	r[guard] = `[{"appliance_id":"guard-0001","name":"Main valve","type":103,"serial_number":"SG-1","version":"01.38.Z22.0400.0101","registered":true,"installation_date":"2020-11-02T10:00:00.000+00:00"}]`
	r[guard+"/status"] = `[{"type":"update_available","value":0},{"type":"connection","value":1},{"type":"wifi_quality","value":0}]`
	r[guard+"/details"] = `{"appliance_id":"guard-0001","serial_number":"SG-1","mac_address":"00:11:22:33:44:55"}`
	r[guard+"/notifications"] = `[{"id":"note-0001","category":30,"type":430,"timestamp":"2021-03-05T10:00:00.000+01:00","is_read":false},{"id":"note-0002","category":20,"type":11,"timestamp":"2021-03-05T11:00:00.000+01:00","is_read":true}]`
	r[guard+"/notifications/"+NotificationID] = `{"id":"note-0001","category":30,"type":430,"timestamp":"2021-03-05T10:00:00.000+01:00"}`
	r[guard+"/command"] = `{"appliance_id":"guard-0001","type":103,"command":{"measure_now":false,"temp_user_unlock_on":false,"valve_open":true,"buzzer_on":false},"commandb64":"AAA=","timestamp":"2021-03-05T10:00:00.000+01:00"}`
	r[guard+"/data/aggregated"] = `{
  "appliance_id": "guard-0001",
  "type": 103,
  "group_by": "hour",
  "data": {
    "measurement": [
      {"date": "2021-03-05T10:00:00.000+01:00", "flowrate": 0, "pressure": 3.2, "temperature_guard": 12.5},
      {"date": "2021-03-05T11:00:00.000+01:00", "flowrate": 6.5, "pressure": 2.9, "temperature_guard": 13.0}
    ],
    "withdrawals": [
      {"date": "2021-03-05T10:15:00.000+01:00", "waterconsumption": 1, "water_cost": 0.01, "energy_cost": 0.02, "hotwater_share": 0, "maxflowrate": 4},
      {"date": "2021-03-05T10:45:00.000+01:00", "waterconsumption": 2, "water_cost": 0.02, "energy_cost": 0.04, "hotwater_share": 0, "maxflowrate": 6.5},
      {"date": "2021-03-05T11:30:00.000+01:00", "waterconsumption": 3, "water_cost": 0.03, "energy_cost": 0.06, "hotwater_share": 0, "maxflowrate": 5}
    ]
  }
}`
	r[guard+"/data"] = `{"appliance_id":"guard-0001","type":103,"data":{"withdrawals":[{"date":"2021-03-05","waterconsumption":42,"water_cost":0.42,"energy_cost":0,"hotwater_share":0}]}}`
	r[sense] = `[{"appliance_id":"sense-0001","name":"Floor sensor","type":101,"serial_number":"S-1","version":"1547","registered":true}]`
	r[sense+"/status"] = `[{"type":"battery","value":87},{"type":"connection","value":1},{"type":"wifi_quality","value":2}]`
	r[sense+"/details"] = `{"appliance_id":"sense-0001","serial_number":"S-1"}`
	r[sense+"/notifications"] = `[]`
	r[sense+"/data/aggregated"] = `{
  "appliance_id": "sense-0001",
  "type": 101,
  "group_by": "day",
  "data": {
    "measurement": [
      {"date": "2021-03-04", "temperature": 18.5, "humidity": 52},
      {"date": "2021-03-05", "temperature": 17.0, "humidity": 55}
    ]
  }
}`

	return r
}
