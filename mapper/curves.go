package mapper

import (
	"math"

	"github.com/normen/goxlr-daemon/profile"
	"gonum.org/v1/gonum/interp"
)

// MaxEqCode is the largest equaliser frequency code (20 kHz).
const MaxEqCode = 239

var volumeToDb interp.PiecewiseLinear
var dbToVolume interp.PiecewiseLinear

func init() {
	initCurves()
}

// prepares the interpolation for the volume conversions
func initCurves() {
	// channel volume for -inf (shown as -60), -40, -30, -20, -10, 0, +6 dB
	volume := []float64{0, 24, 55, 96, 144, 191, 255}
	db := []float64{-60, -40, -30, -20, -10, 0, 6}
	if err := volumeToDb.Fit(volume, db); err != nil {
		panic(err)
	}
	if err := dbToVolume.Fit(db, volume); err != nil {
		panic(err)
	}
}

// EqFrequencyCode encodes a band frequency in Hz as 24*log2(f/20).
func EqFrequencyCode(hz float64) int32 {
	if hz <= 20 {
		return 0
	}
	code := math.Round(24 * math.Log2(hz/20))
	return int32(math.Min(code, MaxEqCode))
}

// EqFrequency decodes a band frequency code. EqFrequencyCode(EqFrequency(c))
// is c for every code.
func EqFrequency(code int32) float64 {
	code = min(max(code, 0), MaxEqCode)
	return 20 * math.Pow(2, float64(code)/24)
}

// Normalize moves the values of p that the device only holds approximately
// onto the values it reports back, so applying p and reading the device
// gives p again.
func Normalize(p *profile.Profile) {
	for i, hz := range p.Microphone.Equalizer.Frequency {
		p.Microphone.Equalizer.Frequency[i] = EqFrequency(EqFrequencyCode(hz))
	}
}

// VolumeToDb converts a raw channel volume to decibels.
func VolumeToDb(volume int32) float64 {
	return math.Round(volumeToDb.Predict(float64(volume))*10) / 10
}

// DbToVolume converts decibels to the nearest raw channel volume.
func DbToVolume(db float64) int32 {
	return int32(math.Round(dbToVolume.Predict(db)))
}

// MapToRange maps value linearly from one range onto another.
func MapToRange(value, fromMin, fromMax, toMin, toMax float64) float64 {
	if fromMax == fromMin {
		return toMin
	}
	return (value-fromMin)*(toMax-toMin)/(fromMax-fromMin) + toMin
}
