package cmsg

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/mrzor/sockstamp/internal/kabi"

	"golang.org/x/sys/unix"
)

var (
	headerSize        = binary.Size(unix.Cmsghdr{})
	timespecSize      = binary.Size(kabi.Timespec{})
	timestampingSize  = binary.Size(kabi.ScmTimestamping{})
	extendedErrorSize = binary.Size(kabi.SockExtendedErr{})
)

// Iterator walks a control buffer one record at a time. It is single use: once
// Next has returned an error (io.EOF included) every later call returns io.EOF.
type Iterator struct {
	buf  []byte
	off  int
	done bool
}

// Decode returns an iterator over the records embedded in buf. Nothing is decoded
// until Next is called.
func Decode(buf []byte) *Iterator {
	return &Iterator{buf: buf}
}

// Next decodes the next record. It returns io.EOF once the buffer is exhausted.
func (it *Iterator) Next() (Record, error) {
	if it.done {
		return Record{}, io.EOF
	}
	rec, err := it.next()
	if err != nil {
		it.done = true
		return Record{}, err
	}
	return rec, nil
}

// All drains the iterator.
func (it *Iterator) All() ([]Record, error) {
	var records []Record
	for {
		rec, err := it.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

func (it *Iterator) next() (Record, error) {
	remaining := len(it.buf) - it.off
	if remaining == 0 {
		return Record{}, io.EOF
	}
	if remaining < headerSize {
		return Record{}, fmt.Errorf("%w: %d trailing bytes", ErrTruncated, remaining)
	}

	var h unix.Cmsghdr
	if _, err := binary.Decode(it.buf[it.off:], binary.NativeEndian, &h); err != nil {
		return Record{}, fmt.Errorf("%w: header: %v", ErrTruncated, err)
	}

	//nolint:gosec // cmsg_len is bounded by the buffer check below
	length := int(h.Len)
	if length < unix.CmsgLen(0) || length > remaining {
		return Record{}, fmt.Errorf("%w: cmsg_len %d with %d bytes left", ErrTruncated, length, remaining)
	}

	data := it.buf[it.off+unix.CmsgLen(0) : it.off+length]
	// The final record is not required to carry its alignment padding.
	it.off += unix.CmsgSpace(len(data))
	if it.off > len(it.buf) {
		it.off = len(it.buf)
	}

	return decodeRecord(h.Level, h.Type, data)
}

// decodeRecord dispatches on (level, type). The set is closed.
func decodeRecord(level, typ int32, data []byte) (Record, error) {
	switch {
	case level == unix.SOL_SOCKET && typ == unix.SCM_TIMESTAMPNS:
		return decodeTimestampNS(data)
	case level == unix.SOL_SOCKET && typ == unix.SCM_TIMESTAMPING:
		return decodeTimestamping(data)
	case level == unix.SOL_IP && typ == unix.IP_RECVERR,
		level == unix.SOL_IPV6 && typ == unix.IPV6_RECVERR:
		return decodeExtendedErr(data)
	default:
		return Record{}, &UnexpectedRecordError{Level: level, Type: typ}
	}
}

func decodeTimestampNS(data []byte) (Record, error) {
	if len(data) < timespecSize {
		return Record{}, fmt.Errorf("%w: SCM_TIMESTAMPNS payload %d bytes", ErrTruncated, len(data))
	}
	var ts kabi.Timespec
	if _, err := binary.Decode(data, binary.NativeEndian, &ts); err != nil {
		return Record{}, fmt.Errorf("%w: SCM_TIMESTAMPNS: %v", ErrTruncated, err)
	}
	return Record{Kind: LegacyTimestamp, Time: toTime(ts)}, nil
}

func decodeTimestamping(data []byte) (Record, error) {
	if len(data) < timestampingSize {
		return Record{}, fmt.Errorf("%w: SCM_TIMESTAMPING payload %d bytes", ErrTruncated, len(data))
	}
	var tss kabi.ScmTimestamping
	if _, err := binary.Decode(data, binary.NativeEndian, &tss); err != nil {
		return Record{}, fmt.Errorf("%w: SCM_TIMESTAMPING: %v", ErrTruncated, err)
	}
	// Slot 1 is deprecated and slot 2 only carries raw hardware stamps.
	return Record{Kind: SoftwareTimestamp, Time: toTime(tss.Ts[0])}, nil
}

func decodeExtendedErr(data []byte) (Record, error) {
	if len(data) < extendedErrorSize {
		return Record{}, fmt.Errorf("%w: sock_extended_err payload %d bytes", ErrTruncated, len(data))
	}
	var ee kabi.SockExtendedErr
	if _, err := binary.Decode(data, binary.NativeEndian, &ee); err != nil {
		return Record{}, fmt.Errorf("%w: sock_extended_err: %v", ErrTruncated, err)
	}

	if ee.Errno != kabi.CompletionErrno {
		return Record{}, fmt.Errorf("%w: %d wants: %d", ErrUnexpectedErrno, ee.Errno, kabi.CompletionErrno)
	}
	if ee.Origin != kabi.CompletionOrigin {
		return Record{}, fmt.Errorf("%w: %d wants: %d", ErrUnexpectedOrigin, ee.Origin, kabi.CompletionOrigin)
	}
	stage := kabi.Stage(ee.Info)
	if !stage.Valid() {
		return Record{}, fmt.Errorf("%w: %d", ErrUnknownStage, ee.Info)
	}

	return Record{
		Kind: Completion,
		Completion: CompletionRecord{
			Sequence: ee.Data,
			Stage:    stage,
			Errno:    ee.Errno,
			Origin:   ee.Origin,
		},
	}, nil
}

func toTime(ts kabi.Timespec) time.Time {
	return time.Unix(ts.Unix())
}
