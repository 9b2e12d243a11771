package model

import (
	"errors"
	"fmt"
)

// Kind classifies a workflow failure
type Kind int

const (
	KindUnknown Kind = iota
	PreloadFailed
	ConstraintRejected
	ImageDimensionsUnavailable
	UploadFailed
	UnknownError
	CommitFailed
	RequestTimeout
)

var kindNames = map[Kind]string{
	KindUnknown:                "Unknown",
	PreloadFailed:              "PreloadFailed",
	ConstraintRejected:         "ConstraintRejected",
	ImageDimensionsUnavailable: "ImageDimensionsUnavailable",
	UploadFailed:               "UploadFailed",
	UnknownError:               "UnknownError",
	CommitFailed:               "CommitFailed",
	RequestTimeout:             "RequestTimeout",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// UploadSubtype refines UploadFailed by HTTP status class
type UploadSubtype int

const (
	SubtypeNone UploadSubtype = iota
	SubtypeForbidden
	SubtypeServerError
	SubtypeOther
)

func (s UploadSubtype) String() string {
	switch s {
	case SubtypeForbidden:
		return "Forbidden"
	case SubtypeServerError:
		return "ServerError"
	case SubtypeOther:
		return "Other"
	default:
		return "None"
	}
}

// Error is a classified workflow error. Detail is the user visible text.
type Error struct {
	Kind    Kind
	Subtype UploadSubtype
	Status  int
	Detail  string
	Err     error
}

// NewError creates a classified error
func NewError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Subtype != SubtypeNone {
		msg += "(" + e.Subtype.String() + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the Kind of err, or KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
