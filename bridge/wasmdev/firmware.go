package wasmdev

import "bytes"

const (
	magic   = 0x6d736100 // \0asm
	version = 0x1

	sectionType     = 1
	sectionFunction = 3
	sectionMemory   = 5
	sectionExport   = 7
	sectionCode     = 10

	exportFunc   = 0x00
	exportMemory = 0x02

	valI32   = 0x7f
	funcType = 0x60

	opIf         = 0x04
	opEnd        = 0x0b
	opReturn     = 0x0f
	opLocalGet   = 0x20
	opI32Const   = 0x41
	opI32GeU     = 0x4f
	opI32Add     = 0x6a
	opI32Mul     = 0x6c
	opI32And     = 0x71
	opPrefixFC   = 0xfc
	opMemoryCopy = 0x0a
	blockVoid    = 0x40
)

// Guest memory map. The host hands records over at bufferOffset; each
// query owns a slotSize window starting at registerBase.
const (
	bufferOffset = 0
	registerBase = 4096
	slotSize     = 256
	maxSlots     = (65536 - registerBase) / slotSize
)

// Flags of the exchange export.
const (
	flagRead  = 1
	flagWrite = 2
)

type writer struct {
	buf bytes.Buffer
}

func (w *writer) byte_(b byte) { w.buf.WriteByte(b) }

func (w *writer) write(b ...byte) { w.buf.Write(b) }

func (w *writer) u32le(v uint32) {
	w.write(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// u32 writes an unsigned LEB128 value.
func (w *writer) u32(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.byte_(b)
		if v == 0 {
			return
		}
	}
}

// s32 writes a signed LEB128 value.
func (w *writer) s32(v int32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			w.byte_(b)
			return
		}
		w.byte_(b | 0x80)
	}
}

func (w *writer) name(s string) {
	w.u32(uint32(len(s)))
	w.buf.WriteString(s)
}

func (w *writer) section(id byte, body *writer) {
	w.byte_(id)
	w.u32(uint32(body.buf.Len()))
	w.buf.Write(body.buf.Bytes())
}

func (w *writer) localGet(i uint32) { w.byte_(opLocalGet); w.u32(i) }

func (w *writer) i32Const(v int32) { w.byte_(opI32Const); w.s32(v) }

// slotAddr pushes registerBase + id*slotSize.
func (w *writer) slotAddr() {
	w.i32Const(registerBase)
	w.localGet(0)
	w.i32Const(slotSize)
	w.byte_(opI32Mul)
	w.byte_(opI32Add)
}

func (w *writer) memoryCopy() { w.write(opPrefixFC, opMemoryCopy, 0, 0) }

// firmware assembles the guest module. It exports one page of memory and
//
//	exchange(id, ptr, len, flags i32) i32
//
// which stores ptr[:len] into the slot of id when flagWrite is set, then
// copies the slot back to ptr when flagRead is set. It returns 0, or -1 for
// an id with no slot.
func firmware() []byte {
	var types writer
	types.u32(1)
	types.write(funcType, 4, valI32, valI32, valI32, valI32, 1, valI32)

	var funcs writer
	funcs.u32(1)
	funcs.u32(0)

	var mem writer
	mem.u32(1)
	mem.write(0x00) // min only
	mem.u32(1)

	var exports writer
	exports.u32(2)
	exports.name("memory")
	exports.byte_(exportMemory)
	exports.u32(0)
	exports.name("exchange")
	exports.byte_(exportFunc)
	exports.u32(0)

	var body writer
	body.u32(0) // no locals

	body.localGet(0)
	body.i32Const(maxSlots)
	body.byte_(opI32GeU)
	body.write(opIf, blockVoid)
	body.i32Const(-1)
	body.byte_(opReturn)
	body.byte_(opEnd)

	body.localGet(3)
	body.i32Const(flagWrite)
	body.byte_(opI32And)
	body.write(opIf, blockVoid)
	body.slotAddr()
	body.localGet(1)
	body.localGet(2)
	body.memoryCopy()
	body.byte_(opEnd)

	body.localGet(3)
	body.i32Const(flagRead)
	body.byte_(opI32And)
	body.write(opIf, blockVoid)
	body.localGet(1)
	body.slotAddr()
	body.localGet(2)
	body.memoryCopy()
	body.byte_(opEnd)

	body.i32Const(0)
	body.byte_(opEnd)

	var code writer
	code.u32(1)
	code.u32(uint32(body.buf.Len()))
	code.write(body.buf.Bytes()...)

	var w writer
	w.u32le(magic)
	w.u32le(version)
	w.section(sectionType, &types)
	w.section(sectionFunction, &funcs)
	w.section(sectionMemory, &mem)
	w.section(sectionExport, &exports)
	w.section(sectionCode, &code)
	return w.buf.Bytes()
}
