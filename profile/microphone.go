package profile

import (
	"fmt"

	"github.com/normen/goxlr-daemon/protocol"
	"go.uber.org/multierr"
)

// Microphone is the microphone processing chain.
type Microphone struct {
	Gain       uint8      `json:"gain"` // dB, 0..72
	Gate       Gate       `json:"gate"`
	Compressor Compressor `json:"compressor"`
	DeEsser    uint8      `json:"deesser"` // 0..100
	Equalizer  Equalizer  `json:"equalizer"`
}

// Gate is the noise gate. Times are milliseconds from GateTimes.
type Gate struct {
	Enabled     bool  `json:"enabled"`
	Threshold   int8  `json:"threshold"` // dB, -59..0
	Attack      int   `json:"attack"`
	Release     int   `json:"release"`
	Attenuation uint8 `json:"attenuation"` // percent
}

// Compressor is the compressor. Ratio is a CompressorRatios entry, times are
// milliseconds from CompressorAttackTimes and CompressorReleaseTimes.
type Compressor struct {
	Threshold int8    `json:"threshold"` // dB, -40..0
	Ratio     float64 `json:"ratio"`
	Attack    int     `json:"attack"`
	Release   int     `json:"release"`
	MakeUp    int8    `json:"makeup"` // dB, -6..24
}

// Equalizer is the 10 band microphone equalizer. Gain is in dB (-9..9),
// Frequency in Hz (20..20000).
type Equalizer struct {
	Gain      [protocol.EqBands]int8    `json:"gain"`
	Frequency [protocol.EqBands]float64 `json:"frequency"`
}

// EqDefaultFrequencies are the factory band centres.
var EqDefaultFrequencies = [protocol.EqBands]float64{31.5, 63, 125, 250, 500, 1000, 2000, 4000, 8000, 16000}

// value tables, the hardware receives the index
var (
	GateTimes = []int{
		10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120, 130, 140, 150, 160, 170, 180, 190, 200,
		250, 300, 350, 400, 450, 500, 600, 700, 800, 900, 1000, 1200, 1400, 1600, 1800, 2000,
	}
	CompressorRatios       = []float64{1, 1.1, 1.2, 1.4, 1.6, 1.8, 2, 2.5, 3.2, 4, 5.6, 8, 16, 32, 64}
	CompressorAttackTimes  = []int{0, 2, 3, 4, 5, 6, 7, 8, 9, 10, 12, 14, 16, 18, 20, 23, 26, 30, 35, 40}
	CompressorReleaseTimes = []int{0, 15, 25, 35, 45, 55, 65, 75, 85, 100, 115, 140, 170, 230, 340, 680, 1000, 1500, 2500, 3000}
)

// Nearest returns the index of the table entry closest to v.
func Nearest[T int | float64](table []T, v T) int {
	best := 0
	for i, t := range table {
		if abs(t-v) < abs(table[best]-v) {
			best = i
		}
	}
	return best
}

func abs[T int | float64](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

func contains[T int | float64](table []T, v T) bool {
	for _, t := range table {
		if t == v {
			return true
		}
	}
	return false
}

// DefaultMicrophone returns the factory microphone chain.
func DefaultMicrophone() Microphone {
	return Microphone{
		Gain:       40,
		Gate:       Gate{Enabled: true, Threshold: -30, Attack: 10, Release: 200, Attenuation: 100},
		Compressor: Compressor{Threshold: -20, Ratio: 3.2, Attack: 5, Release: 100, MakeUp: 0},
		DeEsser:    0,
		Equalizer:  Equalizer{Frequency: EqDefaultFrequencies},
	}
}

// Validate checks the chain against the hardware ranges and value tables.
func (m *Microphone) Validate() error {
	var err error
	check := func(name string, v, min, max int) {
		if v < min || v > max {
			err = multierr.Append(err, fmt.Errorf("%s %d outside %d..%d", name, v, min, max))
		}
	}
	inTable := func(name string, ok bool, v any) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%s %v is not a supported value", name, v))
		}
	}
	check("gain", int(m.Gain), 0, 72)
	check("gate threshold", int(m.Gate.Threshold), -59, 0)
	check("gate attenuation", int(m.Gate.Attenuation), 0, 100)
	inTable("gate attack", contains(GateTimes, m.Gate.Attack), m.Gate.Attack)
	inTable("gate release", contains(GateTimes, m.Gate.Release), m.Gate.Release)
	check("compressor threshold", int(m.Compressor.Threshold), -40, 0)
	check("compressor makeup", int(m.Compressor.MakeUp), -6, 24)
	inTable("compressor ratio", contains(CompressorRatios, m.Compressor.Ratio), m.Compressor.Ratio)
	inTable("compressor attack", contains(CompressorAttackTimes, m.Compressor.Attack), m.Compressor.Attack)
	inTable("compressor release", contains(CompressorReleaseTimes, m.Compressor.Release), m.Compressor.Release)
	check("deesser", int(m.DeEsser), 0, 100)
	for i := range m.Equalizer.Gain {
		check("eq gain", int(m.Equalizer.Gain[i]), -9, 9)
		if f := m.Equalizer.Frequency[i]; f < 20 || f > 20000 {
			err = multierr.Append(err, fmt.Errorf("eq frequency %g outside 20..20000", f))
		}
	}
	return err
}
