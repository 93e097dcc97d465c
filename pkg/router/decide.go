package router

import "fmt"

// Mode is the host environment the engine runs in.
type Mode string

const (
	// ModeWeb routes between device storage and the cloud.
	ModeWeb Mode = "web"
	// ModeEmbedded always uses the embedded database.
	ModeEmbedded Mode = "embedded"
)

// ParseMode converts a configuration value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeWeb, "":
		return ModeWeb, nil
	case ModeEmbedded:
		return ModeEmbedded, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Target is the backend a call is routed to.
type Target int

const (
	TargetLocal Target = iota
	TargetCloud
	TargetEmbedded
)

func (t Target) String() string {
	switch t {
	case TargetLocal:
		return "local"
	case TargetCloud:
		return "cloud"
	case TargetEmbedded:
		return "embedded"
	}
	return fmt.Sprintf("target(%d)", int(t))
}

// Decide picks the backend for a call. It has no side effects.
func Decide(mode Mode, authenticated, online bool) Target {
	switch {
	case mode == ModeEmbedded:
		return TargetEmbedded
	case authenticated && online:
		return TargetCloud
	default:
		return TargetLocal
	}
}
