package domain

import (
	"fmt"
	"strings"
)

// UnknownFieldError reports a requested field the volume does not carry.
// Extraction continues with the remaining fields.
type UnknownFieldError struct {
	Field     string
	Available []string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("field %q not found; available fields: %s", e.Field, strings.Join(e.Available, ", "))
}

// IndexError reports a resolved cell, or part of its window, outside the volume.
type IndexError struct {
	Azimuth int
	Gate    int
	Rays    int
	Gates   int
	Window  bool
}

func (e *IndexError) Error() string {
	what := "cell"
	if e.Window {
		what = "3x3 window around"
	}
	return fmt.Sprintf("%s azimuth %d gate %d outside volume of %d rays x %d gates", what, e.Azimuth, e.Gate, e.Rays, e.Gates)
}

// ShapeError reports input to tabular assembly that is not a list of 3×3 grids
// matching the field list.
type ShapeError struct {
	Field string
	Rows  int
	Cols  int
	Msg   string
}

func (e *ShapeError) Error() string {
	if e.Msg != "" {
		return "table shape: " + e.Msg
	}
	return fmt.Sprintf("table shape: field %q is %dx%d, want 3x3", e.Field, e.Rows, e.Cols)
}
