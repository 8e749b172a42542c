// Package bpfcount attaches a socket filter that counts the packets the kernel
// queues on a socket. The filter never drops or truncates anything.
package bpfcount

import (
	"errors"
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
	"github.com/cilium/ebpf/rlimit"
	"golang.org/x/sys/unix"
)

const acceptLabel = "accept"

// Counter owns the counter map and the filter program.
type Counter struct {
	counts *ebpf.Map
	prog   *ebpf.Program
}

// counterProgram increments slot 0 of the array map behind mapFD and keeps the
// whole packet by returning skb->len.
func counterProgram(mapFD int) asm.Instructions {
	return asm.Instructions{
		asm.Mov.Reg(asm.R6, asm.R1),
		asm.StoreImm(asm.RFP, -4, 0, asm.Word),
		asm.Mov.Reg(asm.R2, asm.RFP),
		asm.Add.Imm(asm.R2, -4),
		asm.LoadMapPtr(asm.R1, mapFD),
		asm.FnMapLookupElem.Call(),
		asm.JEq.Imm(asm.R0, 0, acceptLabel),
		asm.Mov.Imm(asm.R1, 1),
		asm.StoreXAdd(asm.R0, asm.R1, asm.DWord),
		asm.LoadMem(asm.R0, asm.R6, 0, asm.Word).WithSymbol(acceptLabel),
		asm.Return(),
	}
}

// New loads the map and program into the kernel.
func New() (*Counter, error) {
	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("removing memlock rlimit: %w", err)
	}

	counts, err := ebpf.NewMap(&ebpf.MapSpec{
		Name:       "sockstamp_pkts",
		Type:       ebpf.Array,
		KeySize:    4,
		ValueSize:  8,
		MaxEntries: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("creating counter map: %w", err)
	}

	prog, err := ebpf.NewProgram(&ebpf.ProgramSpec{
		Name:         "sockstamp_count",
		Type:         ebpf.SocketFilter,
		Instructions: counterProgram(counts.FD()),
		License:      "GPL",
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("loading socket filter: %w", err), counts.Close())
	}

	return &Counter{counts: counts, prog: prog}, nil
}

// Attach installs the filter on fd with SO_ATTACH_BPF.
func (c *Counter) Attach(fd int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ATTACH_BPF, c.prog.FD()); err != nil {
		return fmt.Errorf("setsockopt: SO_ATTACH_BPF: %w", err)
	}
	return nil
}

// Count returns the number of packets seen since the filter was loaded.
func (c *Counter) Count() (uint64, error) {
	var n uint64
	if err := c.counts.Lookup(uint32(0), &n); err != nil {
		return 0, fmt.Errorf("reading counter map: %w", err)
	}
	return n, nil
}

// Close releases the program and the map. A filter already attached to a
// socket stays in place until the socket closes.
func (c *Counter) Close() error {
	var errs []error
	if err := c.prog.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing socket filter: %w", err))
	}
	if err := c.counts.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing counter map: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during cleanup: %w", errors.Join(errs...))
	}
	return nil
}
