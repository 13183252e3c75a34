package domain

import "time"

// BotStatus is the snapshot exposed to the notification/command channel.
type BotStatus struct {
	Mode       Mode
	Running    bool
	Paused     bool
	Uptime     time.Duration
	Strategies int
	Venues     int
	Cycles     int64
}
