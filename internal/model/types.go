// Package model defines the shared domain types for population cells,
// medical facilities, districts and demand zones.
package model

import (
	"time"

	"github.com/paulmach/orb"
)

// UnknownDistrict labels a demand zone whose centroid falls in no district polygon.
const UnknownDistrict = "Unknown district"

// Point is a coordinate in degrees. X is longitude, Y is latitude.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Orb converts the point to an orb.Point.
func (p Point) Orb() orb.Point {
	return orb.Point{p.X, p.Y}
}

// AgeStructure holds population counts per age bracket.
type AgeStructure struct {
	F0_14  int64 `json:"f0_14"`
	F15_25 int64 `json:"f15_25"`
	F26_35 int64 `json:"f26_35"`
	F36_45 int64 `json:"f36_45"`
	F46_55 int64 `json:"f46_55"`
	F56_65 int64 `json:"f56_65"`
	F66    int64 `json:"f66"`
}

// Add returns the bracket-wise sum of a and b.
func (a AgeStructure) Add(b AgeStructure) AgeStructure {
	return AgeStructure{
		F0_14:  a.F0_14 + b.F0_14,
		F15_25: a.F15_25 + b.F15_25,
		F26_35: a.F26_35 + b.F26_35,
		F36_45: a.F36_45 + b.F36_45,
		F46_55: a.F46_55 + b.F46_55,
		F56_65: a.F56_65 + b.F56_65,
		F66:    a.F66 + b.F66,
	}
}

// Total is the sum of all brackets.
func (a AgeStructure) Total() int64 {
	return a.F0_14 + a.F15_25 + a.F26_35 + a.F36_45 + a.F46_55 + a.F56_65 + a.F66
}

// PopulationCell is one square of the population grid.
type PopulationCell struct {
	ID              int64        `json:"id"`
	X               float64      `json:"x"`
	Y               float64      `json:"y"`
	Geometry        orb.Geometry `json:"-"`
	TotalPopulation int64        `json:"total_population"`
	Region          string       `json:"region"`
	IsDeleted       bool         `json:"is_deleted"`
	Ages            AgeStructure `json:"ages"`
}

// Facility is a medical facility from the registry. Coord is nil when the
// registry row has no usable coordinates.
type Facility struct {
	Name        string `json:"name"`
	Coord       *Point `json:"coord,omitempty"`
	District    string `json:"district"`
	Categories  string `json:"categories"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Description string `json:"description,omitempty"`
}

// District is an administrative area polygon (Polygon or MultiPolygon).
type District struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Geometry orb.Geometry `json:"-"`
}

// Priority is the urgency tier of a demand zone.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityModerate Priority = "moderate"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is one of the known tiers.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityModerate, PriorityCritical:
		return true
	}
	return false
}

// Priorities lists the tiers from least to most urgent.
var Priorities = []Priority{PriorityLow, PriorityModerate, PriorityCritical}

// DemandZone is a dense population cell that lies far from every facility.
type DemandZone struct {
	X          float64      `json:"x"`
	Y          float64      `json:"y"`
	Population int64        `json:"population"`
	District   string       `json:"district"`
	Priority   Priority     `json:"priority"`
	DistanceKM float64      `json:"distance_km"`
	Geometry   orb.Geometry `json:"-"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
