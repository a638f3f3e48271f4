package ondusapi

import (
	"context"
	"net/http"
	"time"

	"github.com/jake-scott/ondus-bridge/internal/pkg/transport"
	"golang.org/x/oauth2"
)

type ApplianceType int

const (
	ApplianceTypeSense      ApplianceType = 101
	ApplianceTypeSensePlus  ApplianceType = 102
	ApplianceTypeSenseGuard ApplianceType = 103
	ApplianceTypeBlueHome   ApplianceType = 104
)

func (t ApplianceType) String() string {
	switch t {
	case ApplianceTypeSense:
		return "sense"
	case ApplianceTypeSensePlus:
		return "sense-plus"
	case ApplianceTypeSenseGuard:
		return "sense-guard"
	case ApplianceTypeBlueHome:
		return "blue-home"
	}

	return "unknown"
}

type Appliance struct {
	ID   string        `json:"appliance_id"`
	Name string        `json:"name"`
	Type ApplianceType `json:"type"`
}

type Room struct {
	ID         ID          `json:"id"`
	Name       string      `json:"name"`
	Appliances []Appliance `json:"appliances"`
}

type Location struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Rooms []Room `json:"rooms"`
}

type Dashboard struct {
	Locations []Location `json:"locations"`
}

// DataQuery selects the window and bucket size of aggregated data.  Zero
// values are left out of the request.
type DataQuery struct {
	From    time.Time
	To      time.Time
	GroupBy GroupBy
}

// Ondus is the authenticated Ondus REST API.  Every call returns the
// server's response envelope; decoding is left to the caller, with helpers
// in this package for the common payloads.
type Ondus interface {
	WithTokenSource(ts oauth2.TokenSource) Ondus
	WithHTTPClient(client *http.Client) Ondus
	WithTimeout(d time.Duration) Ondus
	WithContext(ctx context.Context) Ondus

	Dashboard() (*transport.Response, error)
	Locations() (*transport.Response, error)
	Rooms(locationID string) (*transport.Response, error)
	Appliances(locationID string, roomID string) (*transport.Response, error)

	ApplianceInfo(id ApplianceIdentity) (*transport.Response, error)
	ApplianceStatus(id ApplianceIdentity) (*transport.Response, error)
	ApplianceDetails(id ApplianceIdentity) (*transport.Response, error)
	ApplianceNotifications(id ApplianceIdentity) (*transport.Response, error)
	ApplianceNotification(id ApplianceIdentity, notificationID string) (*transport.Response, error)
	ApplianceCommand(id ApplianceIdentity) (*transport.Response, error)
	SetApplianceCommand(id ApplianceIdentity, command CommandRequest) (*transport.Response, error)
	ApplianceData(id ApplianceIdentity, query DataQuery) (*transport.Response, error)
	ApplianceRawData(id ApplianceIdentity, from time.Time, to time.Time) (*transport.Response, error)
}
