package notifications

import (
	"fmt"

	"github.com/pkg/errors"
)

// Severity classifies a notification category
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityAdvertising
	SeverityInformation
	SeverityWarning
	SeverityAlarm
	SeverityWebURL
)

var severityNames = []string{
	"unknown",
	"advertising",
	"information",
	"warning",
	"alarm",
	"weburl",
}

func (s Severity) String() string {
	if int(s) < 0 || int(s) >= len(severityNames) {
		return fmt.Sprintf("unknown (%d)", int(s))
	}

	return severityNames[s]
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	v, ok := ParseSeverity(string(text))
	if !ok {
		return errors.Errorf("unknown severity %q", text)
	}

	*s = v
	return nil
}

// ParseSeverity converts a severity name back to its value
func ParseSeverity(name string) (Severity, bool) {
	for i, n := range severityNames {
		if n == name {
			return Severity(i), true
		}
	}

	return SeverityUnknown, false
}

// Category describes one notification category and the messages of the
// types within it
type Category struct {
	Text     string
	Severity Severity
	Types    map[int]string

	// Types that mean the appliance closed the water supply by itself
	Shutoff map[int]bool
}

// Resolution is the human readable form of a category/type pair
type Resolution struct {
	CategoryText string   `json:"category"`
	Message      string   `json:"message"`
	Severity     Severity `json:"severity"`
	Alarm        bool     `json:"alarm"`
	Shutoff      bool     `json:"shutoff"`
}

// Catalog resolves notification codes to text.  The table is supplied by
// the caller so it can be updated without touching the lookup.
type Catalog struct {
	categories map[int]Category
}

func NewCatalog(categories map[int]Category) *Catalog {
	c := &Catalog{categories: make(map[int]Category, len(categories))}
	for code, cat := range categories {
		c.categories[code] = cat
	}

	return c
}

// Category returns the category registered under code
func (c *Catalog) Category(code int) (Category, bool) {
	cat, ok := c.categories[code]
	return cat, ok
}

func unknownMessage(category, typ int) string {
	return fmt.Sprintf("Unknown notification category: %d type: %d", category, typ)
}

// Resolve never fails: codes missing from the table get a message built
// from the raw codes
func (c *Catalog) Resolve(category, typ int) Resolution {
	cat, ok := c.categories[category]
	if !ok {
		return Resolution{
			CategoryText: "Unknown",
			Message:      unknownMessage(category, typ),
			Severity:     SeverityUnknown,
		}
	}

	res := Resolution{
		CategoryText: cat.Text,
		Severity:     cat.Severity,
		Alarm:        cat.Severity == SeverityAlarm,
		Shutoff:      cat.Shutoff[typ],
	}

	msg, ok := cat.Types[typ]
	if !ok {
		msg = unknownMessage(category, typ)
	}
	res.Message = msg

	return res
}
