// Package cmsg decodes the ancillary data the kernel attaches to socket reads and
// error-queue reads into typed timestamp and completion records.
//
// The protocol surface is closed: only the three record types enabled by the
// timestamping socket options are understood, and anything else is reported as an
// error rather than skipped. A malformed buffer is never partially recovered.
//
//	┌──────────────────────────────┐
//	│ msg_control (raw bytes)      │
//	└──────────────┬───────────────┘
//	               ▼
//	┌──────────────────────────────┐
//	│ Iterator.Next                │  cmsghdr walk, CMSG_ALIGN stepping
//	└──────────────┬───────────────┘
//	               ├──→ SOL_SOCKET/SCM_TIMESTAMPNS  ──→ LegacyTimestamp
//	               ├──→ SOL_SOCKET/SCM_TIMESTAMPING ──→ SoftwareTimestamp (slot 0)
//	               ├──→ SOL_IP(V6)/IP(V6)_RECVERR   ──→ Completion
//	               └──→ anything else               ──→ UnexpectedRecordError
package cmsg
