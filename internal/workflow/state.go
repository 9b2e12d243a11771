package workflow

import "fmt"

// State is the workflow position of the photo widget
type State int

const (
	Uninitialized State = iota
	Preloading
	PreloadFailed
	ReadyNoPhoto
	ReadyHasPhoto
	Validating
	Uploading
	PostUploadMeasuring
	CropEditing
	Committing
	Closed
)

var stateNames = map[State]string{
	Uninitialized:       "Uninitialized",
	Preloading:          "Preloading",
	PreloadFailed:       "PreloadFailed",
	ReadyNoPhoto:        "Ready(NoPhoto)",
	ReadyHasPhoto:       "Ready(HasPhoto)",
	Validating:          "Validating",
	Uploading:           "Uploading",
	PostUploadMeasuring: "PostUploadMeasuring",
	CropEditing:         "CropEditing",
	Committing:          "Committing",
	Closed:              "Closed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Busy reports whether an asynchronous operation owns the workflow
func (s State) Busy() bool {
	switch s {
	case Preloading, Validating, Uploading, PostUploadMeasuring, Committing:
		return true
	default:
		return false
	}
}
