package domain

import "time"

// DefaultLogPort is the TCP port remote hosts stream their console log on
const DefaultLogPort = 19885

// RelayLine is one line of remote output received from a host
type RelayLine struct {
	Host      string
	Timestamp time.Time
	Text      string
}

// RelayStatus describes a relay worker lifecycle notice
type RelayStatus string

const (
	RelayStarting RelayStatus = "starting"
	RelayWaiting  RelayStatus = "waiting"
)
