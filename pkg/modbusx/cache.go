package modbusx

import (
	"sync"

	"unipi-control/pkg/logger"
)

// RegisterCache is the per-unit dense register store populated by the two
// scanner lanes (TCP unit 0, RTU units 1..247) and read by feature value
// derivation.
//
// The specification models the cache as lock-free (a single-threaded event
// loop never races with itself); a real Go process runs the scanners and
// every reader as separate goroutines, so an RWMutex is used here to avoid
// a data race on the underlying map while preserving the same observable
// contract: a read may see a mix of pre- and post-scan values across
// addresses, but never a torn individual register.
type RegisterCache struct {
	mu   sync.RWMutex
	data map[uint8]map[uint16]uint16
}

// NewRegisterCache returns an empty cache.
func NewRegisterCache() *RegisterCache {
	return &RegisterCache{data: make(map[uint8]map[uint16]uint16)}
}

// SetRegisters writes one contiguous block read from a single scanner
// response. Used only by the scanner lanes.
func (c *RegisterCache) SetRegisters(unit uint8, address uint16, values []uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.data[unit]
	if !ok {
		bucket = make(map[uint16]uint16, len(values))
		c.data[unit] = bucket
	}
	for i, v := range values {
		bucket[address+uint16(i)] = v
	}
}

// GetRegisters returns the cached values for data[unit][address..address+count-1].
// A missing address is logged and omitted from the result; it never raises
// and never returns a zero in place of a missing value.
func (c *RegisterCache) GetRegisters(unit uint8, address uint16, count uint16) []uint16 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	bucket := c.data[unit]
	result := make([]uint16, 0, count)
	for i := uint16(0); i < count; i++ {
		addr := address + i
		v, ok := bucket[addr]
		if !ok {
			logger.LogError("[MODBUS] missing register unit=%d addr=%d in cache", unit, addr)
			continue
		}
		result = append(result, v)
	}
	return result
}
