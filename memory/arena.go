package memory

import (
	"fmt"
	"sort"

	"github.com/wippyai/cffi/errors"
	"github.com/wippyai/cffi/layout"
)

// minAddr keeps address 0 out of every allocation.
const minAddr = 8

// ArenaConfig sizes the linear memory behind an Arena.
type ArenaConfig struct {
	InitialPages uint32 `yaml:"initial_pages"`
	MaxPages     uint32 `yaml:"max_pages"`
}

// DefaultArenaConfig returns a one-page arena that may grow to 16 MiB.
func DefaultArenaConfig() ArenaConfig {
	return ArenaConfig{InitialPages: 1, MaxPages: 256}
}

// Validate checks the page bounds.
func (c ArenaConfig) Validate() error {
	if c.InitialPages == 0 {
		return errors.InvalidInput(errors.PhaseConfig, "arena initial_pages must be at least 1")
	}
	if c.MaxPages < c.InitialPages {
		return errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("arena max_pages %d below initial_pages %d", c.MaxPages, c.InitialPages))
	}
	if c.MaxPages > 65535 {
		return errors.InvalidInput(errors.PhaseConfig, "arena max_pages must stay below 4 GiB")
	}
	return nil
}

type span struct {
	off  uint32
	size uint32
}

// Arena is a first-fit allocator over a Linear memory. Freed spans are
// coalesced with their neighbours and a span that reaches the top of the heap
// lowers it. Freeing a pointer twice, or with a different size than it was
// allocated with, corrupts the arena; callers own that obligation.
type Arena struct {
	mem   *Linear
	free  []span
	top   uint32
	inUse uint32
}

// NewArena creates an arena over a fresh memory sized by cfg.
func NewArena(cfg ArenaConfig) (*Arena, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Arena{mem: NewLinear(cfg.InitialPages, cfg.MaxPages), top: minAddr}, nil
}

// Memory returns the memory the arena allocates in.
func (a *Arena) Memory() *Linear {
	return a.mem
}

// InUse returns the number of bytes currently allocated.
func (a *Arena) InUse() uint32 {
	return a.inUse
}

// Alloc returns the address of size bytes aligned to align. A zero size
// still yields a distinct non-null address.
func (a *Arena) Alloc(size, align uint32) (uint32, error) {
	if size == 0 {
		size = 1
	}
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.New(errors.PhaseMemory, errors.KindAllocation).
			Detail("alignment %d is not a power of two", align).
			Build()
	}

	for i, s := range a.free {
		aligned := layout.AlignTo(s.off, align)
		end := uint64(aligned) + uint64(size)
		if end > uint64(s.off)+uint64(s.size) {
			continue
		}
		a.free = append(a.free[:i], a.free[i+1:]...)
		if aligned > s.off {
			a.release(span{off: s.off, size: aligned - s.off})
		}
		if tail := uint32(uint64(s.off) + uint64(s.size) - end); tail > 0 {
			a.release(span{off: uint32(end), size: tail})
		}
		a.inUse += size
		return aligned, nil
	}

	aligned := uint64(layout.AlignTo(a.top, align))
	end := aligned + uint64(size)
	if end > uint64(a.mem.Size()) {
		need := end - uint64(a.mem.Size())
		pages := (need + PageSize - 1) / PageSize
		if pages > uint64(^uint32(0)) {
			return 0, errors.AllocationFailed(errors.PhaseMemory, size, align, nil)
		}
		if _, ok := a.mem.Grow(uint32(pages)); !ok {
			return 0, errors.AllocationFailed(errors.PhaseMemory, size, align,
				fmt.Errorf("memory limit of %d pages reached", a.mem.maxPages))
		}
	}
	if uint32(aligned) > a.top {
		a.release(span{off: a.top, size: uint32(aligned) - a.top})
	}
	a.top = uint32(end)
	a.inUse += size
	return uint32(aligned), nil
}

// Free returns a block to the arena. Freeing Null is a no-op.
func (a *Arena) Free(ptr, size, _ uint32) {
	if ptr == 0 {
		return
	}
	if size == 0 {
		size = 1
	}
	if size > a.inUse {
		a.inUse = 0
	} else {
		a.inUse -= size
	}
	a.release(span{off: ptr, size: size})
}

// release inserts s into the sorted free list, merges neighbours, and
// lowers the heap top when the merged span reaches it.
func (a *Arena) release(s span) {
	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].off >= s.off })
	a.free = append(a.free, span{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = s

	if i+1 < len(a.free) && a.free[i].off+a.free[i].size == a.free[i+1].off {
		a.free[i].size += a.free[i+1].size
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	if i > 0 && a.free[i-1].off+a.free[i-1].size == a.free[i].off {
		a.free[i-1].size += a.free[i].size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}

	if last := a.free[len(a.free)-1]; last.off+last.size == a.top {
		a.top = last.off
		a.free = a.free[:len(a.free)-1]
	}
}
