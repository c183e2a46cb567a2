package testguest

import (
	"bytes"
	"encoding/binary"
)

// Section IDs
const (
	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionMemory   byte = 5
	sectionGlobal   byte = 6
	sectionExport   byte = 7
	sectionCode     byte = 10
	sectionData     byte = 11
)

// Export and import kinds
const (
	kindFunc   byte = 0x00
	kindMemory byte = 0x02
)

// Value types
const (
	i32 byte = 0x7F
	i64 byte = 0x7E
)

const (
	magic   uint32 = 0x6D736100 // \0asm
	version uint32 = 1
)

type funcType struct {
	params  []byte
	results []byte
}

type importFunc struct {
	module  string
	name    string
	typeIdx uint32
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type global struct {
	valType byte
	mutable bool
	init    int32
}

type funcBody struct {
	locals []byte // one entry per local
	code   []byte // instructions including the final end
}

type dataSegment struct {
	offset int32
	init   []byte
}

// module is a minimal core module with one memory.
type module struct {
	types      []funcType
	imports    []importFunc
	funcs      []uint32
	memoryMin  uint32
	globals    []global
	exports    []export
	code       []funcBody
	data       []dataSegment
	exportsMem bool
}

func (m *module) addType(ft funcType) uint32 {
	for i, t := range m.types {
		if bytes.Equal(t.params, ft.params) && bytes.Equal(t.results, ft.results) {
			return uint32(i)
		}
	}
	m.types = append(m.types, ft)
	return uint32(len(m.types) - 1)
}

// encode encodes the module to WebAssembly binary format
func (m *module) encode() []byte {
	w := &writer{}

	w.u32LE(magic)
	w.u32LE(version)

	if len(m.types) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.types)))
		for _, ft := range m.types {
			sec.byte(0x60)
			sec.u32(uint32(len(ft.params)))
			sec.bytes(ft.params)
			sec.u32(uint32(len(ft.results)))
			sec.bytes(ft.results)
		}
		w.section(sectionType, sec)
	}

	if len(m.imports) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.imports)))
		for _, imp := range m.imports {
			sec.name(imp.module)
			sec.name(imp.name)
			sec.byte(kindFunc)
			sec.u32(imp.typeIdx)
		}
		w.section(sectionImport, sec)
	}

	if len(m.funcs) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.funcs)))
		for _, typeIdx := range m.funcs {
			sec.u32(typeIdx)
		}
		w.section(sectionFunction, sec)
	}

	if m.memoryMin > 0 {
		sec := &writer{}
		sec.u32(1)
		sec.byte(0x00) // no max
		sec.u32(m.memoryMin)
		w.section(sectionMemory, sec)
	}

	if len(m.globals) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.globals)))
		for _, g := range m.globals {
			sec.byte(g.valType)
			if g.mutable {
				sec.byte(0x01)
			} else {
				sec.byte(0x00)
			}
			sec.byte(opI32Const)
			sec.s32(g.init)
			sec.byte(opEnd)
		}
		w.section(sectionGlobal, sec)
	}

	if len(m.exports) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.exports)))
		for _, exp := range m.exports {
			sec.name(exp.name)
			sec.byte(exp.kind)
			sec.u32(exp.idx)
		}
		w.section(sectionExport, sec)
	}

	if len(m.code) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.code)))
		for _, body := range m.code {
			b := &writer{}
			b.u32(uint32(len(body.locals)))
			for _, l := range body.locals {
				b.u32(1)
				b.byte(l)
			}
			b.bytes(body.code)
			sec.u32(uint32(b.buf.Len()))
			sec.bytes(b.buf.Bytes())
		}
		w.section(sectionCode, sec)
	}

	if len(m.data) > 0 {
		sec := &writer{}
		sec.u32(uint32(len(m.data)))
		for _, d := range m.data {
			sec.u32(0) // active, memory 0
			sec.byte(opI32Const)
			sec.s32(d.offset)
			sec.byte(opEnd)
			sec.u32(uint32(len(d.init)))
			sec.bytes(d.init)
		}
		w.section(sectionData, sec)
	}

	return w.buf.Bytes()
}

// writer provides LEB128 encoding utilities.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) byte(b byte) {
	w.buf.WriteByte(b)
}

func (w *writer) bytes(data []byte) {
	w.buf.Write(data)
}

// u32 writes an unsigned LEB128 encoded uint32.
func (w *writer) u32(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if v == 0 {
			break
		}
	}
}

// s32 writes a signed LEB128 encoded int32.
func (w *writer) s32(v int32) {
	w.s64(int64(v))
}

// s64 writes a signed LEB128 encoded int64.
func (w *writer) s64(v int64) {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && (b&0x40) == 0) || (v == -1 && (b&0x40) != 0) {
			more = false
		} else {
			b |= 0x80
		}
		w.buf.WriteByte(b)
	}
}

func (w *writer) name(s string) {
	w.u32(uint32(len(s)))
	w.buf.WriteString(s)
}

func (w *writer) u32LE(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.buf.Write(buf[:])
}

func (w *writer) section(id byte, sec *writer) {
	w.byte(id)
	w.u32(uint32(sec.buf.Len()))
	w.bytes(sec.buf.Bytes())
}
