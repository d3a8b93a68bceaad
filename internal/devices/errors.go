package devices

import (
	"errors"
	"fmt"
)

// ErrUnknownDeviceType is returned when no driver is registered for a
// device type tag.
var ErrUnknownDeviceType = errors.New("devices: unknown device type")

// UnknownDeviceTypeError wraps ErrUnknownDeviceType with the offending
// type tag.
func UnknownDeviceTypeError(deviceType string) error {
	return fmt.Errorf("%w: %q", ErrUnknownDeviceType, deviceType)
}
