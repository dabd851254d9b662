package constants

import "time"

const (
	// DefaultTTL is the idle duration after which a room is wiped.
	DefaultTTL = 300 * time.Second

	// MinTTL is the configuration floor for the room TTL.
	MinTTL = 5 * time.Second

	// DefaultHealth is the health assigned to a member that has never
	// reported one.
	DefaultHealth = 100

	// AbilityLogMax caps the per-member ability activation log. Appends
	// past the cap drop the oldest entries.
	AbilityLogMax = 512

	// ObserverSendBuffer is the per-observer outbound queue capacity.
	// A full queue drops frames rather than blocking the coordinator.
	ObserverSendBuffer = 64
)
