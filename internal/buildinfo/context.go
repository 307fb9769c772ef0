// Package buildinfo carries build-time metadata separate from user configuration.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata the build did not provide.
const UnknownValue = "unknown"

// BuildInfo provides access to build-time metadata.
type BuildInfo interface {
	Version() string
	BuildDate() string
	SystemID() string
}

// Context contains build-time metadata injected at startup.
type Context struct {
	version   string
	buildDate string
	systemID  string
}

// NewContext returns a Context. Empty values report as UnknownValue.
func NewContext(version, buildDate, systemID string) *Context {
	return &Context{version: version, buildDate: buildDate, systemID: systemID}
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownValue
	}
	return s
}

// Version returns the release tag of the build.
func (c *Context) Version() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.version)
}

// BuildDate returns when the binary was built.
func (c *Context) BuildDate() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.buildDate)
}

// SystemID returns the node identifier used to tag error reports.
func (c *Context) SystemID() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.systemID)
}

// String formats the metadata for the version command.
func (c *Context) String() string {
	return fmt.Sprintf("kamiai %s (built %s, system %s)", c.Version(), c.BuildDate(), c.SystemID())
}
