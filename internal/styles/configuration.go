// Package styles defines the named style configuration record and the
// contract consumers follow to use the documents it points at.
package styles

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Configuration names a pair of remote style documents: a SwiftFormat
// configuration and an Uncrustify configuration. The URLs double as the
// resource identities the download cache is keyed on.
type Configuration struct {
	Name        string `yaml:"name" json:"name"`
	SwiftFormat string `yaml:"swiftformat" json:"swiftformat"`
	Uncrustify  string `yaml:"uncrustify" json:"uncrustify"`
}

// Equal reports field-wise equality.
func (c Configuration) Equal(other Configuration) bool {
	return c == other
}

// Resources returns the identities to download, SwiftFormat first.
func (c Configuration) Resources() []string {
	return []string{c.SwiftFormat, c.Uncrustify}
}

// Validate checks that the record is usable. Only writers call it; stored
// records are read back as-is.
func (c Configuration) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if err := validateURL(c.SwiftFormat); err != nil {
		errs = append(errs, fmt.Errorf("swiftformat: %w", err))
	}
	if err := validateURL(c.Uncrustify); err != nil {
		errs = append(errs, fmt.Errorf("uncrustify: %w", err))
	}
	return errors.Join(errs...)
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("url must not be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("url must include a host")
	}
	return nil
}

// Find returns the first record named name. Names are not unique.
func Find(list []Configuration, name string) (Configuration, bool) {
	for _, c := range list {
		if c.Name == name {
			return c, true
		}
	}
	return Configuration{}, false
}

// Contains reports whether list holds a record equal to c.
func Contains(list []Configuration, c Configuration) bool {
	for _, item := range list {
		if item.Equal(c) {
			return true
		}
	}
	return false
}

// Identities returns the distinct resource identities across list, in first
// seen order.
func Identities(list []Configuration) []string {
	seen := make(map[string]struct{}, len(list)*2)
	out := make([]string, 0, len(list)*2)
	for _, c := range list {
		for _, id := range c.Resources() {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

const defaultBase = "https://raw.githubusercontent.com/"

// Defaults returns the built-in records seeded into an empty store.
func Defaults() []Configuration {
	return []Configuration{
		{
			Name:        "XS-Labs",
			SwiftFormat: defaultBase + "macmade/cgl/main/config/swiftformat-xs",
			Uncrustify:  defaultBase + "macmade/cgl/main/config/uncrustify.cfg",
		},
		{
			Name:        "XS-Labs (MIT)",
			SwiftFormat: defaultBase + "macmade/cgl/main/config/swiftformat-xs-mit",
			Uncrustify:  defaultBase + "macmade/cgl/main/config/uncrustify.cfg",
		},
		{
			Name:        "DigiDNA",
			SwiftFormat: defaultBase + "DigiDNA/cgl/main/config/swiftformat-ddna",
			Uncrustify:  defaultBase + "DigiDNA/cgl/main/config/uncrustify.cfg",
		},
		{
			Name:        "DigiDNA (MIT)",
			SwiftFormat: defaultBase + "DigiDNA/cgl/main/config/swiftformat-ddna-mit",
			Uncrustify:  defaultBase + "DigiDNA/cgl/main/config/uncrustify.cfg",
		},
	}
}
