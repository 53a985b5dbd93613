// Package config holds the channel and link parameters shared by the
// transmitter, receiver, and the blurtd command line.
package config

import (
	"flag"
	"fmt"
)

// Channel describes the acoustic passband a Transmitter/Receiver pair
// operates over: baseband sample rate after decimation, carrier
// frequency in the passband, and the upsample factor relating passband
// rate to baseband rate.
type Channel struct {
	Fs             float64
	Fc             float64
	UpsampleFactor int
}

// PassbandRate is Fs scaled up by UpsampleFactor.
func (c Channel) PassbandRate() float64 {
	return c.Fs * float64(c.UpsampleFactor)
}

// DefaultChannel matches the parameters used in the end-to-end loopback
// tests: 96 kHz passband, upsample factor 3 (32 kHz baseband), 12 kHz
// carrier.
func DefaultChannel() Channel {
	return Channel{Fs: 96000 / 3, Fc: 12000, UpsampleFactor: 3}
}

// Config bundles the channel descriptor with link-layer parameters.
type Config struct {
	Channel Channel
	MTU     int
	Rate    byte
}

// DefaultMTU is the conventional Ethernet-sized payload ceiling.
const DefaultMTU = 1500

// DefaultRate is BPSK, rate 1/2 — the most robust PHY rate.
const DefaultRate = 0x0b

// Default returns the standard channel/MTU/rate triple used when no
// flags override it.
func Default() Config {
	return Config{Channel: DefaultChannel(), MTU: DefaultMTU, Rate: DefaultRate}
}

// RegisterFlags binds this config's fields to flag variables on fs,
// the way cmd/server/main.go builds its own flags directly on the
// default flag.CommandLine. Call Parse-equivalent on fs after this,
// then read back the Config via the returned accessor is unnecessary:
// the fields are updated in place through the pointers flag holds.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.Float64Var(&cfg.Channel.Fs, "fs", cfg.Channel.Fs, "baseband sample rate (Hz)")
	fs.Float64Var(&cfg.Channel.Fc, "fc", cfg.Channel.Fc, "carrier frequency (Hz)")
	fs.IntVar(&cfg.Channel.UpsampleFactor, "upsample", cfg.Channel.UpsampleFactor, "upsample factor (passband/baseband)")
	fs.IntVar(&cfg.MTU, "mtu", cfg.MTU, "maximum payload octets per frame")
	fs.Func("rate", "PHY rate nibble, e.g. 0xb", func(s string) error {
		var v uint64
		if _, err := fmt.Sscanf(s, "0x%x", &v); err != nil {
			if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
				return fmt.Errorf("parse rate %q: %w", s, err)
			}
		}
		if v < 0x8 || v > 0xf {
			return fmt.Errorf("rate %#x out of range 0x8-0xf", v)
		}
		cfg.Rate = byte(v)
		return nil
	})
}
