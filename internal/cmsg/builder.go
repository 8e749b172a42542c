package cmsg

import (
	"encoding/binary"
	"time"

	"github.com/mrzor/sockstamp/internal/kabi"

	"golang.org/x/sys/unix"
)

// Builder assembles a control buffer laid out the way the kernel writes one.
// It exists for fakes and tests that need to feed the decoder synthetic data.
type Builder struct {
	buf []byte
}

// Bytes returns the assembled buffer.
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Raw appends a record with an arbitrary level, type and payload.
func (b *Builder) Raw(level, typ int32, payload []byte) *Builder {
	h := unix.Cmsghdr{Level: level, Type: typ}
	h.SetLen(unix.CmsgLen(len(payload)))

	rec := make([]byte, unix.CmsgSpace(len(payload)))
	// Cmsghdr is fixed size, encoding cannot fail.
	_, _ = binary.Encode(rec, binary.NativeEndian, &h) //nolint:errcheck
	copy(rec[unix.CmsgLen(0):], payload)

	b.buf = append(b.buf, rec...)
	return b
}

// TimestampNS appends an SCM_TIMESTAMPNS record.
func (b *Builder) TimestampNS(t time.Time) *Builder {
	ts := unix.NsecToTimespec(t.UnixNano())
	return b.Raw(unix.SOL_SOCKET, unix.SCM_TIMESTAMPNS, encode(&ts))
}

// Timestamping appends an SCM_TIMESTAMPING record with t in the software slot.
func (b *Builder) Timestamping(t time.Time) *Builder {
	var tss kabi.ScmTimestamping
	tss.Ts[0] = unix.NsecToTimespec(t.UnixNano())
	return b.Raw(unix.SOL_SOCKET, unix.SCM_TIMESTAMPING, encode(&tss))
}

// ExtendedErr appends an IP_RECVERR record carrying ee.
func (b *Builder) ExtendedErr(ee kabi.SockExtendedErr) *Builder {
	return b.Raw(unix.SOL_IP, unix.IP_RECVERR, encode(&ee))
}

// Completion appends a well-formed timestamping completion for seq at stage.
func (b *Builder) Completion(seq uint32, stage kabi.Stage) *Builder {
	return b.ExtendedErr(kabi.SockExtendedErr{
		Errno:  kabi.CompletionErrno,
		Origin: kabi.CompletionOrigin,
		Info:   uint32(stage),
		Data:   seq,
	})
}

func encode(v any) []byte {
	out, _ := binary.Append(nil, binary.NativeEndian, v) //nolint:errcheck // fixed-size kernel structs
	return out
}
