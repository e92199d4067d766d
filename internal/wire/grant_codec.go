// grant_codec.go promotes the sequencer's internal uint64 grant counter to
// the wire's decimal-string u128 only at the P2M boundary (spec.md §4.9),
// keeping the hot reservation path free of big-integer allocation.
package wire

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// EncodeGrantID renders a local grant id as the decimal string a P2M client
// expects.
func EncodeGrantID(id uint64) string {
	return uint256.NewInt(id).Dec()
}

// DenialGrantID is the wire sentinel for a denied io_request: the maximum
// representable u128 value (spec.md §6 "Denial sentinel").
func DenialGrantID() string {
	max := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	max.Sub(max, uint256.NewInt(1))
	return max.Dec()
}

// DecodeGrantID parses a decimal-string wire grant id back into a
// uint256.Int, for callers that need to compare against DenialGrantID
// without string equality (e.g. an O2M inspection tool).
func DecodeGrantID(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errors.Wrapf(err, "wire: grant id %q", s)
	}
	return v, nil
}
