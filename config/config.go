package config

import (
	"fmt"
	"os"

	"github.com/brocaar/lorawan"
	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pelletier/go-toml/v2"

	"github.com/akhenakh/concentratord/timebase"
)

type Config struct {
	Gateway Gateway `toml:"gateway"`
}

type Gateway struct {
	// GatewayID is the gateway EUI64 as an hex string
	GatewayID string `toml:"gateway_id"`

	// TimestampMethod is "gps" or "systemtime", defaults to "gps"
	TimestampMethod string `toml:"timestamp_method,omitempty"`

	// Timezone is applied to the host clock in systemtime mode, "+HHMM" or "-HHMM"
	Timezone string `toml:"timezone,omitempty"`

	// Location is the static gateway location used without a GPS module
	Location *Location `toml:"location,omitempty"`
}

type Location struct {
	Latitude  float64 `toml:"latitude"`
	Longitude float64 `toml:"longitude"`
	Altitude  float64 `toml:"altitude"`
}

// Load reads a TOML configuration file.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

func Parse(b []byte) (Config, error) {
	var c Config
	if err := toml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("can't parse config: %w", err)
	}
	return c, nil
}

// EUI returns the gateway ID.
func (g Gateway) EUI() (lorawan.EUI64, error) {
	var eui lorawan.EUI64
	if err := eui.UnmarshalText([]byte(g.GatewayID)); err != nil {
		return eui, fmt.Errorf("invalid gateway_id %q: %w", g.GatewayID, err)
	}
	return eui, nil
}

// ClockMode returns the configured timestamp method, an invalid value falls
// back to GPS with a warning.
func (g Gateway) ClockMode(logger log.Logger) timebase.ClockMode {
	if g.TimestampMethod == "" {
		return timebase.ClockModeGPS
	}
	m, err := timebase.ParseClockMode(g.TimestampMethod)
	if err != nil {
		level.Warn(logger).Log("msg", "invalid timestamp method, falling back to GPS method", "error", err)
		return timebase.ClockModeGPS
	}
	return m
}

// TimeZone returns the configured timezone, an invalid value falls back to
// UTC with a warning.
func (g Gateway) TimeZone(logger log.Logger) timebase.TimeZone {
	if g.Timezone == "" {
		return timebase.UTC
	}
	tz, err := timebase.ParseTimeZone(g.Timezone)
	if err != nil {
		level.Warn(logger).Log("msg", "invalid timezone, falling back to +0000", "timezone", g.Timezone, "error", err)
		return timebase.UTC
	}
	return tz
}

// StaticLocation returns the configured location if any.
func (g Gateway) StaticLocation() (timebase.Location, bool) {
	if g.Location == nil {
		return timebase.Location{}, false
	}
	return timebase.Location{
		Latitude:  g.Location.Latitude,
		Longitude: g.Location.Longitude,
		Altitude:  g.Location.Altitude,
	}, true
}
