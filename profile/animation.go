package profile

import (
	"errors"
	"fmt"
)

// AnimationMode is the lighting animation.
type AnimationMode uint8

const (
	AnimationRetroRainbow AnimationMode = iota
	AnimationRainbowDark
	AnimationRainbowBright
	AnimationSimple
	AnimationRipple
	AnimationNone
	NumAnimationModes = 6
)

// WaterfallDirection is the direction an animation moves in.
type WaterfallDirection uint8

const (
	WaterfallDown WaterfallDirection = iota
	WaterfallUp
	WaterfallOff
	NumWaterfallDirections = 3
)

// Animation is the lighting animation block.
type Animation struct {
	Mode      AnimationMode      `json:"mode"`
	Mod1      uint8              `json:"mod1"` // 0..100
	Mod2      uint8              `json:"mod2"` // 0..100, rainbow modes only
	Waterfall WaterfallDirection `json:"waterfall"`
}

var (
	errMod2Unavailable      = errors.New("mod2 not available in this mode")
	errWaterfallUnavailable = errors.New("waterfall not available in this mode")
)

// Validate applies the mode restrictions: mod2 only exists for the rainbow
// modes, the waterfall is fixed for retro rainbow and no animation.
func (a Animation) Validate() error {
	if a.Mode >= NumAnimationModes {
		return fmt.Errorf("mode %d out of range", a.Mode)
	}
	if a.Mod1 > 100 {
		return fmt.Errorf("mod1 %d outside 0..100", a.Mod1)
	}
	if a.Mod2 != 0 && a.Mode != AnimationRainbowBright && a.Mode != AnimationRainbowDark {
		return errMod2Unavailable
	}
	if a.Mod2 > 100 {
		return fmt.Errorf("mod2 %d outside 0..100", a.Mod2)
	}
	if a.Waterfall >= NumWaterfallDirections {
		return fmt.Errorf("waterfall %d out of range", a.Waterfall)
	}
	if a.Waterfall != WaterfallDown && (a.Mode == AnimationRetroRainbow || a.Mode == AnimationNone) {
		return errWaterfallUnavailable
	}
	return nil
}
