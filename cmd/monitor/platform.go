package main

import (
	"io"

	"ampshield.dev/relay"
	"ampshield.dev/sampler"
)

// hardware bundles the two platform-specific collaborators main needs:
// a raw ADC reader and a relay actuator. Build-tag-selected
// implementations live in platform_rpi.go (real Raspberry Pi GPIO and
// serial hardware) and platform_dummy.go (a synthetic simulator for
// development off-target), grounded on cmd/controller's
// platform_rpi.go / platform_dummy.go split.
type hardware struct {
	reader   sampler.RawReader
	actuator relay.Actuator
	closer   io.Closer
}

// openHardware is implemented per build target: platform_rpi.go for
// linux/arm, platform_dummy.go otherwise.
