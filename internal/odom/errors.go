package odom

import "errors"

var (
	// ErrSideDisconnected means every encoder on one drive side is
	// disconnected, so the tick was skipped.
	ErrSideDisconnected = errors.New("odom: no connected encoder on a drive side")

	// ErrCalibrating means a heading calibration is still outstanding.
	ErrCalibrating = errors.New("odom: heading sensor calibrating")

	// ErrCalibrationFailed means calibration failed after its retry.
	ErrCalibrationFailed = errors.New("odom: heading calibration failed")
)
