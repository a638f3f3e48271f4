package notifications

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

/*
 *  Config overlay for the notification table, eg:
 *
 *  notifications:
 *    categories:
 *      "20":
 *        types:
 *          "322": "Leak test failed"
 *        shutoff: [322]
 *      "50":
 *        text: Service
 *        severity: information
 *        types:
 *          "1": "Service due"
 */

type categoryConfig struct {
	Text     string            `mapstructure:"text"`
	Severity string            `mapstructure:"severity"`
	Types    map[string]string `mapstructure:"types"`
	Shutoff  []int             `mapstructure:"shutoff"`
}

// FromConfig returns the default catalog with any categories found under key
// in cfg merged over it
func FromConfig(cfg *viper.Viper, key string) (*Catalog, error) {
	categories := DefaultCategories()

	if !cfg.IsSet(key) {
		return NewCatalog(categories), nil
	}

	var overlay map[string]categoryConfig
	if err := cfg.UnmarshalKey(key, &overlay); err != nil {
		return nil, errors.Wrapf(err, "reading notification categories from %s", key)
	}

	for codeStr, cc := range overlay {
		code, err := strconv.Atoi(codeStr)
		if err != nil {
			return nil, errors.Wrapf(err, "bad notification category code %q", codeStr)
		}

		cat, ok := categories[code]
		if !ok {
			cat = Category{Text: "Unknown", Severity: SeverityUnknown}
		}

		if cc.Text != "" {
			cat.Text = cc.Text
		}

		if cc.Severity != "" {
			sev, ok := ParseSeverity(cc.Severity)
			if !ok {
				return nil, errors.Errorf("bad severity %q for notification category %d", cc.Severity, code)
			}
			cat.Severity = sev
		}

		types := make(map[int]string, len(cat.Types)+len(cc.Types))
		for t, msg := range cat.Types {
			types[t] = msg
		}
		for typeStr, msg := range cc.Types {
			t, err := strconv.Atoi(typeStr)
			if err != nil {
				return nil, errors.Wrapf(err, "bad notification type code %q in category %d", typeStr, code)
			}
			types[t] = msg
		}
		cat.Types = types

		shutoff := make(map[int]bool, len(cat.Shutoff)+len(cc.Shutoff))
		for t := range cat.Shutoff {
			shutoff[t] = true
		}
		for _, t := range cc.Shutoff {
			shutoff[t] = true
		}
		cat.Shutoff = shutoff

		categories[code] = cat
	}

	return NewCatalog(categories), nil
}
