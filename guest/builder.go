package guest

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/cffi/abi"
	"github.com/wippyai/cffi/errors"
	"github.com/wippyai/cffi/host"
)

const (
	// MemoryExport is the name the harness exports its memory under.
	MemoryExport = "memory"
	// HeapTopExport is the name of the exported heap pointer global.
	HeapTopExport = "heap_top"
	// HeapAlign is the alignment of every harness allocation.
	HeapAlign = 8

	pageSize = 65536
	// maxPages keeps the byte size of memory representable in an i32, which
	// the bump allocator compares against.
	maxPages = 65535
)

// Config shapes the harness module.
type Config struct {
	// Host names the module the harness imports from and the allocator
	// exports the host looks up.
	Host host.Config `yaml:"-"`
	// MemoryPages is the initial memory size in 64 KiB pages.
	MemoryPages uint32 `yaml:"memory_pages"`
	// MemoryLimitPages caps memory growth. 0 means no cap beyond wazero's.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`
	// HeapBase is the first address malloc hands out.
	HeapBase uint32 `yaml:"heap_base"`
}

// DefaultConfig returns a 1 MiB harness whose heap starts at 1024.
func DefaultConfig() Config {
	return Config{
		Host:        host.DefaultConfig(),
		MemoryPages: 16,
		HeapBase:    1024,
	}
}

// Validate checks the memory shape.
func (c Config) Validate() error {
	if err := c.Host.Validate(); err != nil {
		return err
	}
	if c.MemoryPages == 0 || c.MemoryPages > maxPages {
		return errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("harness memory_pages %d outside 1..%d", c.MemoryPages, maxPages))
	}
	if c.MemoryLimitPages > maxPages {
		return errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("harness memory_limit_pages %d above %d", c.MemoryLimitPages, maxPages))
	}
	if c.MemoryLimitPages != 0 && c.MemoryLimitPages < c.MemoryPages {
		return errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("harness memory_limit_pages %d below memory_pages %d", c.MemoryLimitPages, c.MemoryPages))
	}
	if c.HeapBase < HeapAlign || uint64(c.HeapBase) >= uint64(c.MemoryPages)*pageSize {
		return errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("harness heap_base %d outside initial memory", c.HeapBase))
	}
	return nil
}

type trampoline struct {
	name    string
	params  []api.ValueType
	results []api.ValueType
}

// Builder assembles the harness module: one imported host function per
// export, a trampoline re-exporting each import under the same name, a
// memory, a bump malloc and a no-op free.
type Builder struct {
	cfg   Config
	funcs []trampoline
}

// NewBuilder creates a builder covering every abi export.
func NewBuilder(cfg Config) *Builder {
	b := &Builder{cfg: cfg}
	for _, e := range abi.Exports() {
		b.funcs = append(b.funcs, trampoline{
			name:    e.Name,
			params:  e.WasmParams(),
			results: e.WasmResults(),
		})
	}
	return b
}

// Build validates cfg and returns the harness module bytes.
func Build(cfg Config) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewBuilder(cfg).Build(), nil
}

// Function index space: imports, trampolines, malloc, free.
func (b *Builder) mallocIndex() uint32 { return uint32(2 * len(b.funcs)) }
func (b *Builder) freeIndex() uint32   { return b.mallocIndex() + 1 }

// Type index space: one type per import, then malloc and free.
func (b *Builder) mallocType() uint32 { return uint32(len(b.funcs)) }
func (b *Builder) freeType() uint32   { return b.mallocType() + 1 }

// Build generates the module bytes.
func (b *Builder) Build() []byte {
	var wasm []byte
	wasm = append(wasm, 0x00, 0x61, 0x73, 0x6d)
	wasm = append(wasm, 0x01, 0x00, 0x00, 0x00)

	wasm = append(wasm, section(0x01, b.buildTypeSection())...)
	wasm = append(wasm, section(0x02, b.buildImportSection())...)
	wasm = append(wasm, section(0x03, b.buildFuncSection())...)
	wasm = append(wasm, section(0x05, b.buildMemorySection())...)
	wasm = append(wasm, section(0x06, b.buildGlobalSection())...)
	wasm = append(wasm, section(0x07, b.buildExportSection())...)
	wasm = append(wasm, section(0x0a, b.buildCodeSection())...)
	return wasm
}

func funcType(params, results []api.ValueType) []byte {
	out := []byte{0x60}
	out = append(out, EncodeULEB128(uint32(len(params)))...)
	for _, t := range params {
		out = append(out, valType(t))
	}
	out = append(out, EncodeULEB128(uint32(len(results)))...)
	for _, t := range results {
		out = append(out, valType(t))
	}
	return out
}

func (b *Builder) buildTypeSection() []byte {
	i32 := []api.ValueType{api.ValueTypeI32}

	var s []byte
	s = append(s, EncodeULEB128(uint32(len(b.funcs)+2))...)
	for _, f := range b.funcs {
		s = append(s, funcType(f.params, f.results)...)
	}
	s = append(s, funcType(i32, i32)...)
	s = append(s, funcType(i32, nil)...)
	return s
}

func (b *Builder) buildImportSection() []byte {
	var s []byte
	s = append(s, EncodeULEB128(uint32(len(b.funcs)))...)
	for i, f := range b.funcs {
		s = append(s, encodeName(b.cfg.Host.Module)...)
		s = append(s, encodeName(f.name)...)
		s = append(s, 0x00)
		s = append(s, EncodeULEB128(uint32(i))...)
	}
	return s
}

func (b *Builder) buildFuncSection() []byte {
	var s []byte
	s = append(s, EncodeULEB128(uint32(len(b.funcs)+2))...)
	for i := range b.funcs {
		s = append(s, EncodeULEB128(uint32(i))...)
	}
	s = append(s, EncodeULEB128(b.mallocType())...)
	s = append(s, EncodeULEB128(b.freeType())...)
	return s
}

func (b *Builder) buildMemorySection() []byte {
	s := []byte{0x01}
	if b.cfg.MemoryLimitPages > 0 {
		s = append(s, 0x01)
		s = append(s, EncodeULEB128(b.cfg.MemoryPages)...)
		s = append(s, EncodeULEB128(b.cfg.MemoryLimitPages)...)
		return s
	}
	s = append(s, 0x00)
	s = append(s, EncodeULEB128(b.cfg.MemoryPages)...)
	return s
}

func (b *Builder) buildGlobalSection() []byte {
	s := []byte{0x01, 0x7f, 0x01, 0x41}
	s = append(s, EncodeSLEB128(int32(b.cfg.HeapBase))...)
	return append(s, 0x0b)
}

func (b *Builder) buildExportSection() []byte {
	var s []byte
	s = append(s, EncodeULEB128(uint32(len(b.funcs)+4))...)

	s = append(s, encodeName(MemoryExport)...)
	s = append(s, 0x02, 0x00)

	s = append(s, encodeName(HeapTopExport)...)
	s = append(s, 0x03, 0x00)

	s = append(s, encodeName(b.cfg.Host.Malloc)...)
	s = append(s, 0x00)
	s = append(s, EncodeULEB128(b.mallocIndex())...)

	s = append(s, encodeName(b.cfg.Host.Free)...)
	s = append(s, 0x00)
	s = append(s, EncodeULEB128(b.freeIndex())...)

	numImports := len(b.funcs)
	for i, f := range b.funcs {
		s = append(s, encodeName(f.name)...)
		s = append(s, 0x00)
		s = append(s, EncodeULEB128(uint32(numImports+i))...)
	}
	return s
}

func (b *Builder) buildCodeSection() []byte {
	var s []byte
	s = append(s, EncodeULEB128(uint32(len(b.funcs)+2))...)

	bodies := make([][]byte, 0, len(b.funcs)+2)
	for i, f := range b.funcs {
		bodies = append(bodies, trampolineBody(i, f))
	}
	bodies = append(bodies, mallocBody(), []byte{0x00, 0x0b})

	for _, body := range bodies {
		s = append(s, EncodeULEB128(uint32(len(body)))...)
		s = append(s, body...)
	}
	return s
}

// trampolineBody forwards every parameter to the imported function.
func trampolineBody(importIdx int, f trampoline) []byte {
	var body []byte
	body = append(body, 0x00)
	for i := range f.params {
		body = append(body, 0x20)
		body = append(body, EncodeULEB128(uint32(i))...)
	}
	body = append(body, 0x10)
	body = append(body, EncodeULEB128(uint32(importIdx))...)
	body = append(body, 0x0b)
	return body
}

// mallocBody bump-allocates from the heap global, growing memory when the
// block ends past it. It returns 0 when memory cannot grow.
//
//	ptr = (heap + 7) & -8
//	end = ptr + size
//	if end > memory.size << 16 {
//	    if memory.grow((end - (memory.size << 16) + 0xffff) >> 16) == -1 { return 0 }
//	}
//	heap = end
//	return ptr
func mallocBody() []byte {
	var body []byte
	body = append(body, 0x01, 0x02, 0x7f) // two i32 locals: ptr, end

	body = append(body, 0x23, 0x00) // global.get heap
	body = append(body, 0x41)
	body = append(body, EncodeSLEB128(int32(HeapAlign-1))...)
	body = append(body, 0x6a) // i32.add
	body = append(body, 0x41)
	body = append(body, EncodeSLEB128(int32(-HeapAlign))...)
	body = append(body, 0x71)       // i32.and
	body = append(body, 0x21, 0x01) // local.set ptr

	body = append(body, 0x20, 0x01) // local.get ptr
	body = append(body, 0x20, 0x00) // local.get size
	body = append(body, 0x6a)       // i32.add
	body = append(body, 0x21, 0x02) // local.set end

	body = append(body, 0x20, 0x02)       // local.get end
	body = append(body, memoryBytes()...) // memory.size << 16
	body = append(body, 0x4b)             // i32.gt_u
	body = append(body, 0x04, 0x40)       // if

	body = append(body, 0x20, 0x02)       // local.get end
	body = append(body, memoryBytes()...) // memory.size << 16
	body = append(body, 0x6b)             // i32.sub
	body = append(body, 0x41)
	body = append(body, EncodeSLEB128(int32(pageSize-1))...)
	body = append(body, 0x6a)             // i32.add
	body = append(body, 0x41, 0x10, 0x76) // i32.const 16; i32.shr_u
	body = append(body, 0x40, 0x00)       // memory.grow
	body = append(body, 0x41, 0x7f, 0x46) // i32.const -1; i32.eq
	body = append(body, 0x04, 0x40)       // if
	body = append(body, 0x41, 0x00, 0x0f) // i32.const 0; return
	body = append(body, 0x0b, 0x0b)       // end; end

	body = append(body, 0x20, 0x02) // local.get end
	body = append(body, 0x24, 0x00) // global.set heap
	body = append(body, 0x20, 0x01) // local.get ptr
	body = append(body, 0x0b)
	return body
}

// memoryBytes pushes the memory size in bytes.
func memoryBytes() []byte {
	return []byte{0x3f, 0x00, 0x41, 0x10, 0x74} // memory.size; i32.const 16; i32.shl
}
