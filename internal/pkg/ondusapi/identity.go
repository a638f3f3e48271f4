package ondusapi

import (
	"bytes"
	"encoding/json"
	"fmt"

	openapierrors "github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
	"github.com/pkg/errors"
)

// ID is a location or room identifier.  The API sends them as numbers, but
// they are only ever used to build paths.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(data, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrapf(err, "decoding id %s", data)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// ApplianceIdentity addresses one appliance in the location/room hierarchy
type ApplianceIdentity struct {
	LocationID  string `json:"locationId"`
	RoomID      string `json:"roomId"`
	ApplianceID string `json:"applianceId"`
}

func (a ApplianceIdentity) String() string {
	return fmt.Sprintf("%s/%s/%s", a.LocationID, a.RoomID, a.ApplianceID)
}

// Validate checks that all three parts of the identity are present
func (a ApplianceIdentity) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.RequiredString("locationId", "body", a.LocationID); err != nil {
		res = append(res, err)
	}
	if err := validate.RequiredString("roomId", "body", a.RoomID); err != nil {
		res = append(res, err)
	}
	if err := validate.RequiredString("applianceId", "body", a.ApplianceID); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return openapierrors.CompositeValidationError(res...)
	}

	return nil
}

// ErrNotFound is returned when a name cannot be resolved in the dashboard
var ErrNotFound = errors.New("not found in dashboard")

// FindLocation returns the location called name
func (d *Dashboard) FindLocation(name string) (*Location, error) {
	for i := range d.Locations {
		if d.Locations[i].Name == name {
			return &d.Locations[i], nil
		}
	}

	return nil, errors.Wrapf(ErrNotFound, "location %q", name)
}

// FindRoom returns the room called name
func (l *Location) FindRoom(name string) (*Room, error) {
	for i := range l.Rooms {
		if l.Rooms[i].Name == name {
			return &l.Rooms[i], nil
		}
	}

	return nil, errors.Wrapf(ErrNotFound, "room %q in location %q", name, l.Name)
}

// FindAppliance returns the appliance called name
func (r *Room) FindAppliance(name string) (*Appliance, error) {
	for i := range r.Appliances {
		if r.Appliances[i].Name == name {
			return &r.Appliances[i], nil
		}
	}

	return nil, errors.Wrapf(ErrNotFound, "appliance %q in room %q", name, r.Name)
}

// Resolve finds the identity of an appliance by name
func (d *Dashboard) Resolve(locationName, roomName, applianceName string) (ApplianceIdentity, error) {
	loc, err := d.FindLocation(locationName)
	if err != nil {
		return ApplianceIdentity{}, err
	}

	return loc.Resolve(roomName, applianceName)
}

// Resolve finds the identity of an appliance in this location by name
func (l *Location) Resolve(roomName, applianceName string) (ApplianceIdentity, error) {
	room, err := l.FindRoom(roomName)
	if err != nil {
		return ApplianceIdentity{}, err
	}

	appliance, err := room.FindAppliance(applianceName)
	if err != nil {
		return ApplianceIdentity{}, err
	}

	return ApplianceIdentity{
		LocationID:  l.ID.String(),
		RoomID:      room.ID.String(),
		ApplianceID: appliance.ID,
	}, nil
}

// ResolveApplianceIdentity fetches the dashboard and resolves an appliance
// identity from it
func ResolveApplianceIdentity(api Ondus, locationName, roomName, applianceName string) (ApplianceIdentity, error) {
	dashboard, err := GetDashboard(api)
	if err != nil {
		return ApplianceIdentity{}, err
	}

	return dashboard.Resolve(locationName, roomName, applianceName)
}
