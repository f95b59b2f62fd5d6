package bolt

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/haukened/linkvet/internal/vet/domain"
)

// Value layout:
//
//	[0:8]  checked-at, unix nanoseconds, big endian
//	[8]    violated flag
//	[9]    rule kind
//	[10:]  reason text
const headerLen = 10

var errShortValue = errors.New("stored verdict is truncated")

func encodeVerdict(sv domain.StoredVerdict) []byte {
	buf := make([]byte, headerLen+len(sv.Verdict.Reason))
	binary.BigEndian.PutUint64(buf[0:8], uint64(sv.CheckedAt.UnixNano()))
	if sv.Verdict.Violated {
		buf[8] = 1
	}
	buf[9] = byte(sv.Verdict.Rule)
	copy(buf[headerLen:], sv.Verdict.Reason)
	return buf
}

func decodeVerdict(b []byte) (domain.StoredVerdict, error) {
	if len(b) < headerLen {
		return domain.StoredVerdict{}, errShortValue
	}
	return domain.StoredVerdict{
		CheckedAt: time.Unix(0, int64(binary.BigEndian.Uint64(b[0:8]))),
		Verdict: domain.Verdict{
			Violated: b[8] == 1,
			Rule:     domain.RuleKind(b[9]),
			Reason:   string(b[headerLen:]),
		},
	}, nil
}
