package testguest

// Opcodes used by the fixture guests.
const (
	opUnreachable byte = 0x00
	opIf          byte = 0x04
	opEnd         byte = 0x0B
	opReturn      byte = 0x0F
	opCall        byte = 0x10
	opLocalGet    byte = 0x20
	opLocalSet    byte = 0x21
	opGlobalGet   byte = 0x23
	opGlobalSet   byte = 0x24
	opI32Load8U   byte = 0x2D
	opI32Store    byte = 0x36
	opI32Const    byte = 0x41
	opI64Const    byte = 0x42
	opI32Eq       byte = 0x46
	opI32Add      byte = 0x6A
	opPrefixFC    byte = 0xFC
	opMemoryCopy  byte = 0x0A // after 0xFC

	blockEmpty byte = 0x40
)

// code accumulates an instruction sequence.
type code struct {
	w writer
}

func (c *code) op(b byte) *code {
	c.w.byte(b)
	return c
}

func (c *code) i32Const(v int32) *code {
	c.w.byte(opI32Const)
	c.w.s32(v)
	return c
}

func (c *code) i64Const(v int64) *code {
	c.w.byte(opI64Const)
	c.w.s64(v)
	return c
}

func (c *code) localGet(idx uint32) *code {
	c.w.byte(opLocalGet)
	c.w.u32(idx)
	return c
}

func (c *code) localSet(idx uint32) *code {
	c.w.byte(opLocalSet)
	c.w.u32(idx)
	return c
}

func (c *code) globalGet(idx uint32) *code {
	c.w.byte(opGlobalGet)
	c.w.u32(idx)
	return c
}

func (c *code) globalSet(idx uint32) *code {
	c.w.byte(opGlobalSet)
	c.w.u32(idx)
	return c
}

func (c *code) call(idx uint32) *code {
	c.w.byte(opCall)
	c.w.u32(idx)
	return c
}

// load8u loads one byte at the address on the stack plus offset.
func (c *code) load8u(offset uint32) *code {
	c.w.byte(opI32Load8U)
	c.w.u32(0) // align
	c.w.u32(offset)
	return c
}

// store32 stores the i32 on the stack at the address below it plus offset.
func (c *code) store32(offset uint32) *code {
	c.w.byte(opI32Store)
	c.w.u32(2) // align
	c.w.u32(offset)
	return c
}

// memoryCopy copies n bytes; the stack holds dst, src, n.
func (c *code) memoryCopy() *code {
	c.w.byte(opPrefixFC)
	c.w.u32(uint32(opMemoryCopy))
	c.w.byte(0x00)
	c.w.byte(0x00)
	return c
}

// ifThen emits an if block with an empty block type around body.
func (c *code) ifThen(body func(*code)) *code {
	c.w.byte(opIf)
	c.w.byte(blockEmpty)
	body(c)
	c.w.byte(opEnd)
	return c
}

// writeRet stores (ptr, len) into the return area and leaves its address
// on the stack.
func (c *code) writeRet(ret, ptr, n int32) *code {
	c.i32Const(ret).i32Const(ptr).store32(0)
	c.i32Const(ret).i32Const(n).store32(4)
	return c.i32Const(ret)
}

func (c *code) end() []byte {
	c.w.byte(opEnd)
	return c.w.buf.Bytes()
}
