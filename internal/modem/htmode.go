package modem

import "errors"

// ErrUnimplementedMode is returned by NewHT20/NewHT40: this repo
// implements 802.11a Legacy (L) OFDM only. 40 MHz channel bonding and
// the HT preamble/MCS table are out of scope (see SPEC_FULL.md
// Non-goals); these constructors exist only so callers that probe for
// HT support get a typed error instead of a missing symbol.
var ErrUnimplementedMode = errors.New("modem: HT20/HT40 are not implemented, legacy 802.11a OFDM only")

// NewHT20 always fails: there is no 20 MHz HT (High Throughput)
// training sequence or MCS table in this package.
func NewHT20() (*ChannelEstimator, error) {
	return nil, ErrUnimplementedMode
}

// NewHT40 always fails: there is no 40 MHz channel-bonded mode in
// this package.
func NewHT40() (*ChannelEstimator, error) {
	return nil, ErrUnimplementedMode
}
