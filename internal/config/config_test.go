package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsZeroLimits(t *testing.T) {
	cfg := Default()
	cfg.Limits.SessionCapacity = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for zero session capacity")
	}
}

func TestValidateRejectsBadPolicyAction(t *testing.T) {
	cfg := Default()
	cfg.Policy.Rules = []PolicyRule{{Action: "maybe"}}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for invalid policy action")
	}
}

func TestLoadAutoCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enipd.yaml")

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen.TCPPort != DefaultTCPPort {
		t.Errorf("TCPPort = %d, want %d", cfg.Listen.TCPPort, DefaultTCPPort)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("auto-created file missing: %v", err)
	}
}

func TestLoadMissingWithoutAutoCreate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.yaml")

	if _, err := Load(path, false); err == nil {
		t.Error("Load() = nil error, want failure for missing file")
	}
}

func TestLoadAppliesDefaultsOverPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.yaml")
	if err := os.WriteFile(path, []byte("identity:\n  vendor_id: 4660\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Identity.VendorID != 0x1234 {
		t.Errorf("VendorID = 0x%04X, want 0x1234", cfg.Identity.VendorID)
	}
	if cfg.Limits.SessionCapacity != DefaultSessionCapacity {
		t.Errorf("SessionCapacity = %d, want default %d", cfg.Limits.SessionCapacity, DefaultSessionCapacity)
	}
}

func TestSupportToDispatchConfigDefaultsUnsetToEnabled(t *testing.T) {
	var s Support
	dc := s.ToDispatchConfig()
	if !dc.SendUnitData || !dc.NOP || !dc.ListIdentity {
		t.Errorf("ToDispatchConfig() = %+v, want everything enabled by default", dc)
	}
}

func TestSupportToDispatchConfigHonorsExplicitFalse(t *testing.T) {
	disabled := false
	s := Support{SendUnitData: &disabled}
	dc := s.ToDispatchConfig()
	if dc.SendUnitData {
		t.Error("SendUnitData should be disabled")
	}
	if !dc.SendRRData {
		t.Error("SendRRData should remain enabled")
	}
}
