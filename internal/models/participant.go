package models

import (
	"math"
	"time"
)

// Vec3 is a position in world coordinates.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + w componentwise.
func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{X: v.X + w.X, Y: v.Y + w.Y, Z: v.Z + w.Z}
}

// Sub returns v - w componentwise.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{X: v.X - w.X, Y: v.Y - w.Y, Z: v.Z - w.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Lerp returns the linear interpolation between v and w at parameter t.
func (v Vec3) Lerp(w Vec3, t float64) Vec3 {
	return v.Add(w.Sub(v).Scale(t))
}

// Distance returns the Euclidean distance between v and w.
func (v Vec3) Distance(w Vec3) float64 {
	d := v.Sub(w)
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

// PositionSample is one authoritative observation of a participant's
// location. Samples are immutable once ingested.
type PositionSample struct {
	ParticipantID string    `json:"participant_id"`
	Position      Vec3      `json:"position"`
	ObservedAt    time.Time `json:"observed_at"`
}

// ParticipantPosition is the store row a participant keeps current while
// connected. LastActive drives the activity-window feed filter.
type ParticipantPosition struct {
	ParticipantID string    `json:"participant_id"`
	Position      Vec3      `json:"position"`
	ObservedAt    time.Time `json:"observed_at"`
	LastActive    time.Time `json:"last_active"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Sample extracts the immutable sample view of the row.
func (p ParticipantPosition) Sample() PositionSample {
	return PositionSample{
		ParticipantID: p.ParticipantID,
		Position:      p.Position,
		ObservedAt:    p.ObservedAt,
	}
}
