package bpfcount

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"

	"github.com/cilium/ebpf/asm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestCounterProgram_Shape(t *testing.T) {
	insns := counterProgram(42)

	assert.True(t, insns[len(insns)-1].OpCode.JumpOp() == asm.Exit, "program must end with exit")

	var calls int
	for _, ins := range insns {
		if ins.IsBuiltinCall() && ins.Constant == int64(asm.FnMapLookupElem) {
			calls++
		}
	}
	assert.Equal(t, 1, calls)

	var buf bytes.Buffer
	require.NoError(t, insns.Marshal(&buf, binary.LittleEndian), "jump label must resolve")
}

func TestCounter_CountsDatagrams(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("loading BPF programs requires root")
	}

	c, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, c.Close()) })

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})

	require.NoError(t, c.Attach(fds[1]))

	for i := 0; i < 3; i++ {
		_, err := unix.Write(fds[0], []byte("hello\n"))
		require.NoError(t, err)
	}
	buf := make([]byte, 16)
	for i := 0; i < 3; i++ {
		n, err := unix.Read(fds[1], buf)
		require.NoError(t, err)
		assert.Equal(t, "hello\n", string(buf[:n]), "filter must not truncate")
	}

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}
