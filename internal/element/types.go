package element

import (
	"fmt"
	"math"
	"slices"
)

// Type identifies the kind of an OSM primitive
type Type uint8

const (
	TypeNode Type = iota + 1
	TypeWay
	TypeRelation
)

// String returns the long name ("node", "way", "relation")
func (t Type) String() string {
	switch t {
	case TypeNode:
		return "node"
	case TypeWay:
		return "way"
	case TypeRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// Char returns the single letter code used in output tables ("N", "W", "R")
func (t Type) Char() string {
	switch t {
	case TypeNode:
		return "N"
	case TypeWay:
		return "W"
	case TypeRelation:
		return "R"
	default:
		return "?"
	}
}

// ParseType accepts "n", "w", "r" and the long names
func ParseType(s string) (Type, error) {
	switch s {
	case "n", "N", "node":
		return TypeNode, nil
	case "w", "W", "way":
		return TypeWay, nil
	case "r", "R", "relation":
		return TypeRelation, nil
	default:
		return 0, fmt.Errorf("unknown object type %q", s)
	}
}

// Precision is the fixed-point scale of Location (1e-9 degrees)
const Precision = 1_000_000_000

// Location is a fixed-point coordinate. X is longitude, Y is latitude.
// Ring joins compare locations exactly, so they never go through float64.
type Location struct {
	X, Y int64
}

// FromDegrees converts floating point degrees to a Location
func FromDegrees(lon, lat float64) Location {
	return Location{
		X: int64(math.Round(lon * Precision)),
		Y: int64(math.Round(lat * Precision)),
	}
}

// Lon returns the longitude in degrees
func (l Location) Lon() float64 {
	return float64(l.X) / Precision
}

// Lat returns the latitude in degrees
func (l Location) Lat() float64 {
	return float64(l.Y) / Precision
}

// Valid reports whether the location lies within the WGS84 range
func (l Location) Valid() bool {
	return l.X >= -180*Precision && l.X <= 180*Precision &&
		l.Y >= -90*Precision && l.Y <= 90*Precision
}

func (l Location) String() string {
	return fmt.Sprintf("(%.9f %.9f)", l.Lon(), l.Lat())
}

// CompareIDs orders ids by absolute value, negative before positive on ties.
// Negative ids are used for objects that have not been uploaded yet.
func CompareIDs(a, b int64) int {
	aa, ab := abs(a), abs(b)
	switch {
	case aa < ab:
		return -1
	case aa > ab:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// SortIDs sorts ids in place using CompareIDs
func SortIDs(ids []int64) {
	slices.SortFunc(ids, CompareIDs)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
