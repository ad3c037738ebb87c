package hardware

import (
	"fmt"
	"os"
	"path/filepath"

	"unipi-control/pkg/logger"
)

// eepromCandidates lists the I2C addresses the PLC's board EEPROM has been
// shipped under across hardware revisions, probed in this order (Patron,
// then the two Neuron EEPROM slots). The original Unipi-1 slot (1-0050) only
// carries a version/serial pair, no model string, so it is not a candidate
// here - identifyModel needs a model.
var eepromCandidates = []string{"2-0057", "1-0057", "0-0057"}

// modelOffset/modelLen locate the 4-byte ASCII model code (e.g. "M503")
// inside the 128-byte EEPROM image read from each candidate.
const (
	modelOffset = 106
	modelLen    = 4
	eepromRead  = 128
)

// EEPROMIdentifier resolves the PLC model by reading the board EEPROM
// exposed under sysfs, the same mechanism the original daemon uses.
type EEPROMIdentifier struct {
	SysBus string
}

// NewEEPROMIdentifier builds an identifier rooted at sysBus.
func NewEEPROMIdentifier(sysBus string) *EEPROMIdentifier {
	return &EEPROMIdentifier{SysBus: sysBus}
}

// PLCModel implements hardware.IdentifierSource.
func (e *EEPROMIdentifier) PLCModel() (string, error) {
	for _, addr := range eepromCandidates {
		path := filepath.Join(e.SysBus, addr, "eeprom")

		// #nosec G304 - path is built from fixed candidate addresses under a configured sysfs root
		f, err := os.Open(path)
		if err != nil {
			continue
		}

		buf := make([]byte, eepromRead)
		n, readErr := f.Read(buf)
		_ = f.Close()
		if readErr != nil || n < modelOffset+modelLen {
			logger.LogWarn("⚠️ EEPROM at %s unreadable: %v", path, readErr)
			continue
		}

		model := string(buf[modelOffset : modelOffset+modelLen])
		logger.LogInfo("ℹ️ PLC model %q identified via %s", model, path)
		return model, nil
	}

	return "", fmt.Errorf("no readable PLC EEPROM found under %s (tried %v)", e.SysBus, eepromCandidates)
}
