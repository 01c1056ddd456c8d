package index

import (
	"encoding/json"
	"fmt"
)

// Machine describes one tracked virtual machine instance. It is a value
// object: the id is assigned once (by Set, for new machines) and never
// reassigned, updated_at is stamped by the index on persist, and all other
// fields are freely mutable by the caller between Get and Set.
//
// Unknown keys found in the machine's on-disk record (for example
// "data_path") are carried through decode and re-encode verbatim. They are
// never interpreted.
type Machine struct {
	// Name is the display name of the machine.
	Name string

	// Provider identifies the backend kind ("virtualbox", "docker", ...).
	Provider string

	// State is the last known lifecycle state, stored as an opaque string.
	State string

	// VagrantfilePath is the path to the manifest that owns this machine.
	VagrantfilePath string

	id        string
	updatedAt string
	extra     map[string]json.RawMessage
}

// ID returns the machine's unique identifier, or "" for a machine that has
// not been persisted yet.
func (m *Machine) ID() string {
	return m.id
}

// UpdatedAt returns the timestamp stamped by the index on the last persist.
// It is an opaque string; the index never parses it.
func (m *Machine) UpdatedAt() string {
	return m.updatedAt
}

// ExtraFields returns a copy of the on-disk record keys this core does not
// model. The values are raw JSON.
func (m *Machine) ExtraFields() map[string]json.RawMessage {
	if len(m.extra) == 0 {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m.extra))
	for k, v := range m.extra {
		out[k] = v
	}
	return out
}

// Known record keys of the persisted machine shape. The id is the map key
// in the index file, not part of the record body.
const (
	keyName            = "name"
	keyProvider        = "provider"
	keyState           = "state"
	keyVagrantfilePath = "vagrantfile_path"
	keyUpdatedAt       = "updated_at"
)

// decodeMachine builds a Machine from its persisted record body. Keys this
// core does not model are kept aside so a later encode round-trips them.
func decodeMachine(id string, raw json.RawMessage) (*Machine, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("parse machine record: %w", err)
	}

	m := &Machine{id: id}
	for key, dst := range map[string]*string{
		keyName:            &m.Name,
		keyProvider:        &m.Provider,
		keyState:           &m.State,
		keyVagrantfilePath: &m.VagrantfilePath,
		keyUpdatedAt:       &m.updatedAt,
	} {
		val, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(val, dst); err != nil {
			return nil, fmt.Errorf("parse machine field %q: %w", key, err)
		}
		delete(fields, key)
	}

	if len(fields) > 0 {
		m.extra = fields
	}
	return m, nil
}

// encodeMachine produces the persisted record body for a machine. base is
// the machine's current on-disk record, if any; its unmodeled keys are
// preserved in preference to the (possibly staler) ones the machine carries
// from its own decode.
func encodeMachine(m *Machine, updatedAt string, base json.RawMessage) (json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)

	if base != nil {
		if err := json.Unmarshal(base, &fields); err != nil {
			return nil, fmt.Errorf("parse existing machine record: %w", err)
		}
	} else {
		for k, v := range m.extra {
			fields[k] = v
		}
	}

	for key, val := range map[string]string{
		keyName:            m.Name,
		keyProvider:        m.Provider,
		keyState:           m.State,
		keyVagrantfilePath: m.VagrantfilePath,
		keyUpdatedAt:       updatedAt,
	} {
		enc, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("encode machine field %q: %w", key, err)
		}
		fields[key] = enc
	}

	return json.Marshal(fields)
}
