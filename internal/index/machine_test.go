package index

import (
	"encoding/json"
	"testing"
)

func TestDecodeMachine(t *testing.T) {
	raw := json.RawMessage(`{
		"name": "web",
		"provider": "docker",
		"vagrantfile_path": "/proj/Vagrantfile",
		"state": "running",
		"updated_at": "2026-01-02T15:04:05Z",
		"data_path": "/var/lib/web"
	}`)

	m, err := decodeMachine("abc123", raw)
	if err != nil {
		t.Fatalf("decodeMachine: %v", err)
	}

	if m.ID() != "abc123" {
		t.Errorf("ID = %q", m.ID())
	}
	if m.Name != "web" || m.Provider != "docker" || m.State != "running" {
		t.Errorf("fields mismatch: %+v", m)
	}
	if m.VagrantfilePath != "/proj/Vagrantfile" {
		t.Errorf("VagrantfilePath = %q", m.VagrantfilePath)
	}
	if m.UpdatedAt() != "2026-01-02T15:04:05Z" {
		t.Errorf("UpdatedAt = %q", m.UpdatedAt())
	}
	if string(m.ExtraFields()["data_path"]) != `"/var/lib/web"` {
		t.Errorf("extra fields = %v", m.ExtraFields())
	}
}

func TestDecodeMachine_MissingKeys(t *testing.T) {
	m, err := decodeMachine("abc123", json.RawMessage(`{"name": "web"}`))
	if err != nil {
		t.Fatalf("decodeMachine: %v", err)
	}
	if m.Name != "web" {
		t.Errorf("Name = %q", m.Name)
	}
	if m.Provider != "" || m.State != "" || m.UpdatedAt() != "" {
		t.Errorf("absent keys should decode to zero values: %+v", m)
	}
	if m.ExtraFields() != nil {
		t.Errorf("no extra fields expected: %v", m.ExtraFields())
	}
}

func TestDecodeMachine_Invalid(t *testing.T) {
	if _, err := decodeMachine("abc123", json.RawMessage(`[1,2,3]`)); err == nil {
		t.Error("decodeMachine should reject a non-object record")
	}
	if _, err := decodeMachine("abc123", json.RawMessage(`{"name": 42}`)); err == nil {
		t.Error("decodeMachine should reject a non-string known field")
	}
}

func TestEncodeMachine_RoundTrip(t *testing.T) {
	m := &Machine{
		Name:            "web",
		Provider:        "docker",
		State:           "running",
		VagrantfilePath: "/proj/Vagrantfile",
	}

	raw, err := encodeMachine(m, "stamp", nil)
	if err != nil {
		t.Fatalf("encodeMachine: %v", err)
	}

	back, err := decodeMachine("abc123", raw)
	if err != nil {
		t.Fatalf("decodeMachine: %v", err)
	}
	if back.Name != m.Name || back.Provider != m.Provider ||
		back.State != m.State || back.VagrantfilePath != m.VagrantfilePath {
		t.Errorf("round trip mismatch: %+v", back)
	}
	if back.UpdatedAt() != "stamp" {
		t.Errorf("UpdatedAt = %q, want stamp", back.UpdatedAt())
	}
}

func TestEncodeMachine_BasePreservesUnknownKeys(t *testing.T) {
	base := json.RawMessage(`{"name": "old", "state": "running", "data_path": "/var/lib/web"}`)

	m := &Machine{Name: "new", Provider: "docker", State: "poweroff"}
	raw, err := encodeMachine(m, "stamp", base)
	if err != nil {
		t.Fatalf("encodeMachine: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("parse encoded record: %v", err)
	}

	if string(fields["data_path"]) != `"/var/lib/web"` {
		t.Errorf("data_path = %s, want preserved", fields["data_path"])
	}
	if string(fields["name"]) != `"new"` {
		t.Errorf("name = %s, want overwritten", fields["name"])
	}
	if string(fields["state"]) != `"poweroff"` {
		t.Errorf("state = %s, want overwritten", fields["state"])
	}
}

func TestEncodeMachine_ExtraFallbackWithoutBase(t *testing.T) {
	m := &Machine{
		Name:  "web",
		extra: map[string]json.RawMessage{"data_path": json.RawMessage(`"/var/lib/web"`)},
	}

	raw, err := encodeMachine(m, "stamp", nil)
	if err != nil {
		t.Fatalf("encodeMachine: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("parse encoded record: %v", err)
	}
	if string(fields["data_path"]) != `"/var/lib/web"` {
		t.Errorf("data_path = %s, want carried from machine", fields["data_path"])
	}
}
