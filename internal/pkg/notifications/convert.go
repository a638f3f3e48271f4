package notifications

import (
	"encoding/json"
)

// Notification is one entry from an appliance's notification list.  Fields
// the bridge does not use are kept in Payload.
type Notification struct {
	ID        string
	Category  int
	Type      int
	Timestamp string
	Payload   map[string]interface{}
}

type notificationFields struct {
	ID        string `json:"id"`
	Category  int    `json:"category"`
	Type      int    `json:"type"`
	Timestamp string `json:"timestamp"`
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	var f notificationFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	*n = Notification{
		ID:        f.ID,
		Category:  f.Category,
		Type:      f.Type,
		Timestamp: f.Timestamp,
		Payload:   payload,
	}

	return nil
}

func (n Notification) MarshalJSON() ([]byte, error) {
	if n.Payload != nil {
		return json.Marshal(n.Payload)
	}

	return json.Marshal(notificationFields{
		ID:        n.ID,
		Category:  n.Category,
		Type:      n.Type,
		Timestamp: n.Timestamp,
	})
}

// Converted is a notification together with its resolved text
type Converted struct {
	Category     string       `json:"category"`
	Type         int          `json:"type"`
	Message      string       `json:"message"`
	Severity     Severity     `json:"severity"`
	Alarm        bool         `json:"alarm"`
	Shutoff      bool         `json:"shutoff"`
	Notification Notification `json:"notification"`
}

// Convert resolves a single notification
func (c *Catalog) Convert(n Notification) Converted {
	res := c.Resolve(n.Category, n.Type)

	return Converted{
		Category:     res.CategoryText,
		Type:         n.Type,
		Message:      res.Message,
		Severity:     res.Severity,
		Alarm:        res.Alarm,
		Shutoff:      res.Shutoff,
		Notification: n,
	}
}

// ConvertAll resolves a list of notifications, preserving order
func (c *Catalog) ConvertAll(ns []Notification) []Converted {
	out := make([]Converted, 0, len(ns))
	for _, n := range ns {
		out = append(out, c.Convert(n))
	}

	return out
}
