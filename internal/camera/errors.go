package camera

import "errors"

// Domain errors for the camera package.
//
//	if errors.Is(err, camera.ErrExecutionFailed) {
//	    // the camera did not accept the change
//	}
var (
	// ErrExecutionFailed is returned when the control API answers with a
	// status other than StatusOK.
	ErrExecutionFailed = errors.New("camera: execution failed")

	// ErrInvalidAction is returned for an Action outside Activate/Deactivate.
	ErrInvalidAction = errors.New("camera: invalid action")

	// ErrInvalidCamera is returned for a non-positive camera number.
	ErrInvalidCamera = errors.New("camera: invalid camera number")

	// ErrUnreachable is returned by CheckConnection when the control API
	// cannot be reached or does not answer 200.
	ErrUnreachable = errors.New("camera: control API unreachable")
)
