package ondusapi

import (
	"encoding/json"

	"github.com/jake-scott/ondus-bridge/internal/pkg/notifications"
	"github.com/jake-scott/ondus-bridge/internal/pkg/telemetry"
	"github.com/jake-scott/ondus-bridge/internal/pkg/transport"
	"github.com/pkg/errors"
)

// ApplianceInfo is one element of the appliance info response.  The full
// object is kept in Raw as it varies a lot between appliance types.
type ApplianceInfo struct {
	ID              string          `json:"appliance_id"`
	Name            string          `json:"name"`
	Type            ApplianceType   `json:"type"`
	SerialNumber    string          `json:"serial_number"`
	Version         string          `json:"version"`
	Registered      bool            `json:"registered"`
	InstallationDay string          `json:"installation_date"`
	Raw             json.RawMessage `json:"-"`
}

type statusItem struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// CommandState is the body of the command endpoint
type CommandState struct {
	ApplianceID string          `json:"appliance_id"`
	Type        ApplianceType   `json:"type"`
	Command     json.RawMessage `json:"command"`
	Timestamp   string          `json:"timestamp"`
}

func ParseDashboard(resp *transport.Response) (*Dashboard, error) {
	var d Dashboard
	if err := resp.JSON(&d); err != nil {
		return nil, errors.Wrap(err, "parsing dashboard")
	}

	return &d, nil
}

// GetDashboard fetches and parses the dashboard
func GetDashboard(api Ondus) (*Dashboard, error) {
	resp, err := api.Dashboard()
	if err != nil {
		return nil, errors.Wrap(err, "fetching dashboard")
	}

	return ParseDashboard(resp)
}

// ParseInfo parses the appliance info response, which is a list holding a
// single appliance
func ParseInfo(resp *transport.Response) ([]ApplianceInfo, error) {
	var raws []json.RawMessage
	if err := resp.JSON(&raws); err != nil {
		return nil, errors.Wrap(err, "parsing appliance info")
	}

	infos := make([]ApplianceInfo, 0, len(raws))
	for _, raw := range raws {
		var info ApplianceInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, errors.Wrap(err, "parsing appliance info")
		}
		info.Raw = raw
		infos = append(infos, info)
	}

	return infos, nil
}

// ParseStatus converts the list of {type, value} pairs returned by the
// status endpoint to a map of type to value
func ParseStatus(resp *transport.Response) (map[string]interface{}, error) {
	var items []statusItem
	if err := resp.JSON(&items); err != nil {
		return nil, errors.Wrap(err, "parsing appliance status")
	}

	status := make(map[string]interface{}, len(items))
	for _, item := range items {
		status[item.Type] = item.Value
	}

	return status, nil
}

func ParseNotifications(resp *transport.Response) ([]notifications.Notification, error) {
	var ns []notifications.Notification
	if err := resp.JSON(&ns); err != nil {
		return nil, errors.Wrap(err, "parsing appliance notifications")
	}

	return ns, nil
}

func ParseApplianceData(resp *transport.Response) (*telemetry.ApplianceData, error) {
	var d telemetry.ApplianceData
	if err := resp.JSON(&d); err != nil {
		return nil, errors.Wrap(err, "parsing appliance data")
	}

	return &d, nil
}

func ParseCommand(resp *transport.Response) (*CommandState, error) {
	var c CommandState
	if err := resp.JSON(&c); err != nil {
		return nil, errors.Wrap(err, "parsing appliance command")
	}

	return &c, nil
}
