package rig

import "encoding/json"

// DeviceConfig holds one device's type tag, human-readable name and
// parameters. It is owned exclusively by the Recipe that contains it.
//
// Parameter edits can be applied uncommitted: the previous parameters are
// retained so the edit can be rolled back via RestoreCommitted.
type DeviceConfig struct {
	DeviceType string
	DeviceName Name
	Params     ParamsWithVars

	// committedParams stores the original parameters while an
	// uncommitted edit is in place, nil otherwise.
	committedParams *ParamsWithVars
}

// NewDeviceConfig builds a config from a serializable parameter value.
func NewDeviceConfig(deviceType string, deviceName Name, params any) (DeviceConfig, error) {
	p, err := NewParams(params)
	if err != nil {
		return DeviceConfig{}, err
	}
	return DeviceConfig{DeviceType: deviceType, DeviceName: deviceName, Params: p}, nil
}

// UpdateParamsCommitted replaces the parameters and drops any retained
// committed state.
func (c *DeviceConfig) UpdateParamsCommitted(params ParamsWithVars) {
	c.Params = params
	c.committedParams = nil
}

// UpdateParamsUncommitted replaces the parameters, retaining the previous
// committed parameters for a later restore. Repeated uncommitted updates
// keep the oldest committed state.
func (c *DeviceConfig) UpdateParamsUncommitted(params ParamsWithVars) {
	if c.committedParams == nil {
		previous := c.Params
		c.committedParams = &previous
	}
	c.Params = params
}

// RestoreCommitted rolls back to the retained committed parameters.
// Returns ErrNoCommittedParams when there is no uncommitted edit.
func (c *DeviceConfig) RestoreCommitted() (ParamsWithVars, error) {
	if c.committedParams == nil {
		return ParamsWithVars{}, ErrNoCommittedParams
	}
	c.Params = *c.committedParams
	c.committedParams = nil
	return c.Params, nil
}

// HasUncommittedChanges reports whether an uncommitted edit is in place.
func (c *DeviceConfig) HasUncommittedChanges() bool {
	return c.committedParams != nil
}

// deviceConfigJSON is the wire form of DeviceConfig.
type deviceConfigJSON struct {
	DeviceType      string          `json:"device_type"`
	DeviceName      Name            `json:"device_name"`
	Params          ParamsWithVars  `json:"params"`
	CommittedParams *ParamsWithVars `json:"committed_params,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c DeviceConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(deviceConfigJSON{
		DeviceType:      c.DeviceType,
		DeviceName:      c.DeviceName,
		Params:          c.Params,
		CommittedParams: c.committedParams,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *DeviceConfig) UnmarshalJSON(data []byte) error {
	var raw deviceConfigJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.DeviceType = raw.DeviceType
	c.DeviceName = raw.DeviceName
	c.Params = raw.Params
	c.committedParams = raw.CommittedParams
	return nil
}
