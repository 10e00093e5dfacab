// Package cpu implements the EDU-CPU instruction-level simulator: register
// file, flags, 256-byte memory with loaded-bit gating, a 4-slot call stack,
// and the step/run loop that decodes and dispatches one instruction at a
// time. Runtime faults are reported as package-level sentinel errors
// (comparable with errors.Is) wrapped in a *Fault that adds the faulting
// address and cycle count.
package cpu

import (
	"errors"
	"fmt"
	"io"

	"educpu/internal/isa"
)

// Sentinel runtime faults, matched with errors.Is against the *Fault this
// package returns.
var (
	ErrUnloadedFetch     = errors.New("PC entered unloaded memory")
	ErrInvalidOpcode     = errors.New("invalid opcode")
	ErrImmediateStore    = errors.New("ST with immediate mode is invalid")
	ErrStackOverflow     = errors.New("stack overflow")
	ErrStackUnderflow    = errors.New("stack underflow")
	ErrMaxCyclesExceeded = errors.New("max cycles exceeded")
)

// Fault wraps a sentinel runtime error with the faulting address and the
// cycle count at the time of failure.
type Fault struct {
	Err    error
	Addr   int
	Cycles int
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%v at address 0x%02X (cycle %d)", f.Err, f.Addr, f.Cycles)
}

func (f *Fault) Unwrap() error { return f.Err }

func fault(err error, addr, cycles int) *Fault {
	return &Fault{Err: err, Addr: addr, Cycles: cycles}
}

// CPU holds the complete machine state: registers, flags, stack, the
// 256-byte memory image, and the loaded-bit set that gates instruction
// fetch.
type CPU struct {
	A, R0, R1 uint8
	PC        uint8
	Z, C      bool

	SP    uint8
	Stack [isa.StackDepth]uint8

	Mem    [256]byte
	loaded [256]bool

	Halted bool
	Cycles int

	// Out receives every byte written to the memory-mapped I/O port
	// (§3); nil discards output.
	Out io.Writer
	// Trace, when non-nil, receives one line per executed instruction
	// before that instruction's effects are applied (§6 CLI note).
	Trace io.Writer
}

// New returns a zeroed CPU ready to have a program loaded into it.
func New() *CPU {
	return &CPU{}
}

// LoadProgram applies an address->byte map to memory, marking every
// written address as loaded. Later LoadProgram calls overlay earlier ones.
func (c *CPU) LoadProgram(program map[int]byte) {
	for addr, b := range program {
		if addr < 256 {
			c.Mem[addr] = b
			c.loaded[addr] = true
		}
	}
}

func (c *CPU) reg(r isa.Reg) uint8 {
	switch r {
	case isa.RegA:
		return c.A
	case isa.RegR0:
		return c.R0
	case isa.RegR1:
		return c.R1
	}
	return 0
}

func (c *CPU) setReg(r isa.Reg, v uint8) {
	switch r {
	case isa.RegA:
		c.A = v
	case isa.RegR0:
		c.R0 = v
	case isa.RegR1:
		c.R1 = v
	}
}

func (c *CPU) fetch() uint8 {
	v := c.Mem[c.PC]
	c.PC++
	return v
}

func (c *CPU) memRead(addr uint8) uint8 {
	return c.Mem[addr]
}

func (c *CPU) memWrite(addr, val uint8) {
	c.Mem[addr] = val
	if addr == isa.IOPort && c.Out != nil {
		c.Out.Write([]byte{val})
	}
}

func (c *CPU) push(val uint8) error {
	if c.SP >= isa.StackDepth {
		return fault(ErrStackOverflow, int(c.PC), c.Cycles)
	}
	c.Stack[c.SP] = val
	c.SP++
	return nil
}

func (c *CPU) pop() (uint8, error) {
	if c.SP == 0 {
		return 0, fault(ErrStackUnderflow, int(c.PC), c.Cycles)
	}
	c.SP--
	return c.Stack[c.SP], nil
}

func (c *CPU) setZC(result int) {
	c.Z = result&0xFF == 0
	c.C = result&0x100 != 0
}

func (c *CPU) setZOnly(v uint8) {
	c.Z = v == 0
}

func (c *CPU) setZClearC(v uint8) {
	c.Z = v == 0
	c.C = false
}

// resolveSource reads an operand per the addressing mode (§4.G).
func (c *CPU) resolveSource(mm isa.Mode, rBit uint8, primary isa.Reg) uint8 {
	switch mm {
	case isa.ModeImmediate:
		return c.fetch()
	case isa.ModeRegister:
		other := isa.RegModeOther[primary][rBit]
		return c.reg(other)
	case isa.ModeDirect:
		addr := c.fetch()
		return c.memRead(addr)
	case isa.ModeIndexed:
		offset := c.fetch()
		idx := c.indexReg(rBit)
		return c.memRead(idx + offset)
	}
	return 0
}

// resolveDest writes an operand per the addressing mode, mirroring
// resolveSource for ST (§4.G). Immediate mode is illegal here.
func (c *CPU) resolveDest(mm isa.Mode, rBit uint8, primary isa.Reg, value uint8) error {
	switch mm {
	case isa.ModeImmediate:
		return fault(ErrImmediateStore, int(c.PC), c.Cycles)
	case isa.ModeRegister:
		other := isa.RegModeOther[primary][rBit]
		c.setReg(other, value)
	case isa.ModeDirect:
		addr := c.fetch()
		c.memWrite(addr, value)
	case isa.ModeIndexed:
		offset := c.fetch()
		idx := c.indexReg(rBit)
		c.memWrite(idx+offset, value)
	}
	return nil
}

func (c *CPU) indexReg(rBit uint8) uint8 {
	if rBit == 1 {
		return c.R1
	}
	return c.R0
}

// Step executes exactly one instruction. It returns false once the CPU has
// halted (a normal, non-error stop) and a *Fault for any runtime error.
func (c *CPU) Step() (bool, error) {
	if c.Halted {
		return false, nil
	}

	if !c.loaded[c.PC] {
		return false, fault(ErrUnloadedFetch, int(c.PC), c.Cycles)
	}

	pcBefore := c.PC
	opcode := c.fetch()
	iiiii, rBit, mm := isa.DecodeByte(opcode)

	if c.Trace != nil {
		c.writeTrace(pcBefore, opcode)
	}

	if err := c.dispatch(iiiii, rBit, mm, opcode, pcBefore); err != nil {
		return false, err
	}

	c.Cycles++
	return !c.Halted, nil
}

func (c *CPU) dispatch(iiiii isa.IIIII, rBit uint8, mm isa.Mode, opcode byte, pcBefore uint8) error {
	switch {
	case isLD(iiiii):
		primary := isa.LDPrimary[iiiii]
		c.setReg(primary, c.resolveSource(mm, rBit, primary))
		return nil

	case isST(iiiii):
		primary := isa.STPrimary[iiiii]
		return c.resolveDest(mm, rBit, primary, c.reg(primary))

	case isALU(iiiii):
		return c.execALU(iiiii, mm, rBit)
	}

	switch opcode {
	case isa.OpJMP:
		c.PC = c.fetch()
		return nil
	case isa.OpCALL:
		addr := c.fetch()
		if err := c.push(c.PC); err != nil {
			return err
		}
		c.PC = addr
		return nil
	case isa.OpRET:
		v, err := c.pop()
		if err != nil {
			return err
		}
		c.PC = v
		return nil
	case isa.OpNOP:
		return nil
	case isa.OpHLT:
		c.Halted = true
		return nil
	}

	if cond, ok := isa.Branches[opcode]; ok {
		dispByte := c.fetch()
		disp := int8(dispByte)
		if cond.Test(c.Z, c.C) {
			c.PC = uint8(int(c.PC) + int(disp))
		}
		return nil
	}

	switch iiiii {
	case isa.OpPUSH, isa.OpPOP, isa.OpINC, isa.OpDEC:
		if rBit != 0 {
			return fault(ErrInvalidOpcode, int(pcBefore), c.Cycles)
		}
		reg, ok := groupReg(mm)
		if !ok {
			return fault(ErrInvalidOpcode, int(pcBefore), c.Cycles)
		}
		switch iiiii {
		case isa.OpPUSH:
			return c.push(c.reg(reg))
		case isa.OpPOP:
			v, err := c.pop()
			if err != nil {
				return err
			}
			c.setReg(reg, v)
			return nil
		case isa.OpINC:
			v := c.reg(reg) + 1
			c.setReg(reg, v)
			c.setZOnly(v)
			return nil
		case isa.OpDEC:
			v := c.reg(reg) - 1
			c.setReg(reg, v)
			c.setZOnly(v)
			return nil
		}
	}

	return fault(ErrInvalidOpcode, int(pcBefore), c.Cycles)
}

// groupReg decodes the PUSH/POP/INC/DEC register field: bits 1..0 of the
// opcode, which DecodeByte already surfaces as the MM field for these
// groups too. The caller checks bit 2 (rBit) separately.
func groupReg(mm isa.Mode) (isa.Reg, bool) {
	reg, ok := isa.RegEncoding[uint8(mm)]
	return reg, ok
}

func isLD(i isa.IIIII) bool  { _, ok := isa.LDPrimary[i]; return ok }
func isST(i isa.IIIII) bool  { _, ok := isa.STPrimary[i]; return ok }
func isALU(i isa.IIIII) bool { _, ok := isa.ALUByCode[i]; return ok }

func (c *CPU) execALU(iiiii isa.IIIII, mm isa.Mode, rBit uint8) error {
	src := c.resolveSource(mm, rBit, isa.RegA)
	switch isa.ALUByCode[iiiii] {
	case isa.ALUAdd:
		result := int(c.A) + int(src)
		c.setZC(result)
		c.A = uint8(result)
	case isa.ALUSub:
		c.C = c.A >= src
		c.A = c.A - src
		c.Z = c.A == 0
	case isa.ALUAnd:
		c.A = c.A & src
		c.setZClearC(c.A)
	case isa.ALUOr:
		c.A = c.A | src
		c.setZClearC(c.A)
	case isa.ALUXor:
		c.A = c.A ^ src
		c.setZClearC(c.A)
	case isa.ALUCmp:
		result := c.A - src
		c.C = c.A >= src
		c.Z = result == 0
	}
	return nil
}

func (c *CPU) writeTrace(pc, opcode uint8) {
	flags := "."
	if c.Z {
		flags = "Z"
	}
	if c.C {
		flags += "C"
	} else {
		flags += "."
	}
	fmt.Fprintf(c.Trace, "PC=%02X OP=%02X A=%02X R0=%02X R1=%02X SP=%d [%s]\n",
		pc, opcode, c.A, c.R0, c.R1, c.SP, flags)
}

// Run steps the CPU until it halts, a fault occurs, or maxCycles is
// reached (reported as ErrMaxCyclesExceeded). Halting is a normal
// termination and returns a nil error.
func (c *CPU) Run(maxCycles int) error {
	for c.Cycles < maxCycles {
		running, err := c.Step()
		if err != nil {
			return err
		}
		if !running {
			if c.Trace != nil {
				fmt.Fprintf(c.Trace, "Halted after %d cycles.\n", c.Cycles)
			}
			return nil
		}
	}
	return fault(ErrMaxCyclesExceeded, int(c.PC), c.Cycles)
}
