// Package memflash is an in-memory Flash simulator implementing
// eeprom.Flash. It backs the eeprom package's own tests and lets
// applications exercise the EEPROM controller without real hardware.
//
// It is grounded on the FakeMCU test harness from the original
// idubrov/eeprom crate: a flat half-word-addressed backing store that
// erase fills with 0xFFFF, with the same "program requires the target
// to already be erased" rule real Flash enforces.
package memflash

import (
	"fmt"
	"sync"

	"github.com/gentam/eeprom"
)

// Flash is an in-memory stand-in for a Flash region, addressed in
// 16-bit half-words. It is safe for use by a single Controller at a
// time, matching the single-writer discipline the eeprom package
// assumes; the internal mutex only guards against accidental
// concurrent misuse, it is not a concurrency feature.
type Flash struct {
	mu sync.Mutex

	mem      []uint16
	pageSize uint32 // bytes; used to size ErasePage

	// opBudget bounds how many successful primitive operations
	// (WriteHalfWord + ErasePage) this Flash will still perform before
	// simulating a power loss. Negative means unlimited.
	opBudget int
	ops      int // cumulative successful operations since creation
}

// New creates a Flash region of totalBytes, fully erased, with the
// given page size (used only to size ErasePage's effect).
func New(totalBytes, pageSize uint32) *Flash {
	mem := make([]uint16, totalBytes/2)
	for i := range mem {
		mem[i] = 0xFFFF
	}
	return &Flash{mem: mem, pageSize: pageSize, opBudget: -1}
}

// NewFromImage wraps an existing half-word image (e.g. loaded from a
// file) instead of starting from a fully erased region.
func NewFromImage(image []uint16, pageSize uint32) *Flash {
	mem := make([]uint16, len(image))
	copy(mem, image)
	return &Flash{mem: mem, pageSize: pageSize, opBudget: -1}
}

// Image returns a copy of the current half-word backing store, for
// inspection in tests or persistence to disk.
func (f *Flash) Image() []uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint16, len(f.mem))
	copy(out, f.mem)
	return out
}

// Clone returns an independent copy of f, including its op budget and
// cumulative op count. It is used by crash-injection tests to rerun an
// operation sequence from the same starting state with a different
// injected crash point.
func (f *Flash) Clone() *Flash {
	f.mu.Lock()
	defer f.mu.Unlock()
	mem := make([]uint16, len(f.mem))
	copy(mem, f.mem)
	return &Flash{mem: mem, pageSize: f.pageSize, opBudget: f.opBudget, ops: f.ops}
}

// CrashAfterOps arms the simulator to fail the (n+1)'th primitive
// operation (WriteHalfWord or ErasePage) from this point on, as if
// power were lost partway through the caller's procedure. Operations
// before the cutoff succeed and mutate state normally, matching a real
// crash: everything committed before the power loss stays committed.
func (f *Flash) CrashAfterOps(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opBudget = n
}

// OpCount returns the number of primitive operations that have
// succeeded since creation (or since the last CrashAfterOps reset the
// budget without resetting the counter — it is cumulative for the
// lifetime of the Flash value).
func (f *Flash) OpCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ops
}

var errSimulatedCrash = fmt.Errorf("memflash: simulated power loss: %w", eeprom.ErrTimeout)

// consumeBudget reports whether the caller may proceed with one more
// primitive operation, decrementing the budget if it is finite.
func (f *Flash) consumeBudget() error {
	if f.opBudget == 0 {
		return errSimulatedCrash
	}
	if f.opBudget > 0 {
		f.opBudget--
	}
	f.ops++
	return nil
}

// ReadHalfWord implements eeprom.Flash.
func (f *Flash) ReadHalfWord(offset uint32) (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mem[offset/2], nil
}

// WriteHalfWord implements eeprom.Flash. It requires the target
// half-word to be 0xFFFF, same as real Flash.
func (f *Flash) WriteHalfWord(offset uint32, data uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := offset / 2
	if f.mem[idx] != 0xFFFF {
		return fmt.Errorf("memflash: program at offset %#x: %w", offset, eeprom.ErrProgrammingError)
	}
	if err := f.consumeBudget(); err != nil {
		return err
	}
	f.mem[idx] = data
	return nil
}

// ErasePage implements eeprom.Flash: it fills every half-word of the
// page starting at pageBaseOffset with 0xFFFF.
func (f *Flash) ErasePage(pageBaseOffset uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.consumeBudget(); err != nil {
		return err
	}
	start := pageBaseOffset / 2
	end := start + f.pageSize/2
	for i := start; i < end; i++ {
		f.mem[i] = 0xFFFF
	}
	return nil
}
