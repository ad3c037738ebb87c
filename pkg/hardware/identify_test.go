package hardware

import (
	"os"
	"path/filepath"
	"testing"
)

func eepromImage(model string) []byte {
	buf := make([]byte, eepromRead)
	copy(buf[modelOffset:modelOffset+modelLen], model)
	return buf
}

func TestEEPROMIdentifierPLCModelFirstCandidate(t *testing.T) {
	sysBus := t.TempDir()
	if err := os.MkdirAll(filepath.Join(sysBus, "2-0057"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sysBus, "2-0057", "eeprom"), eepromImage("M503"), 0o644); err != nil {
		t.Fatalf("write eeprom fixture: %v", err)
	}

	id := NewEEPROMIdentifier(sysBus)
	model, err := id.PLCModel()
	if err != nil {
		t.Fatalf("PLCModel: %v", err)
	}
	if model != "M503" {
		t.Errorf("model = %q, want M503", model)
	}
}

func TestEEPROMIdentifierFallsBackThroughCandidates(t *testing.T) {
	sysBus := t.TempDir()
	if err := os.MkdirAll(filepath.Join(sysBus, "1-0057"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sysBus, "1-0057", "eeprom"), eepromImage("L203"), 0o644); err != nil {
		t.Fatalf("write eeprom fixture: %v", err)
	}

	id := NewEEPROMIdentifier(sysBus)
	model, err := id.PLCModel()
	if err != nil {
		t.Fatalf("PLCModel: %v", err)
	}
	if model != "L203" {
		t.Errorf("model = %q, want L203 (found via the second candidate address after the first is absent)", model)
	}
}

func TestEEPROMIdentifierErrorsWhenNoCandidateReadable(t *testing.T) {
	id := NewEEPROMIdentifier(t.TempDir())
	if _, err := id.PLCModel(); err == nil {
		t.Fatal("expected an error when no candidate EEPROM path exists")
	}
}

func TestEEPROMIdentifierSkipsTruncatedImage(t *testing.T) {
	sysBus := t.TempDir()
	if err := os.MkdirAll(filepath.Join(sysBus, "2-0057"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sysBus, "2-0057", "eeprom"), []byte("too short"), 0o644); err != nil {
		t.Fatalf("write eeprom fixture: %v", err)
	}

	id := NewEEPROMIdentifier(sysBus)
	if _, err := id.PLCModel(); err == nil {
		t.Fatal("expected an error when the only candidate EEPROM image is too short to contain a model field")
	}
}
