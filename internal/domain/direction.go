package domain

import "strings"

// Direction is the traversal sense of a vehicle over its checkpoint sequence.
// RETURN covers the same checkpoints in reverse order; it is a display and
// ordering concern, not a distinct route.
type Direction string

const (
	DirectionForward Direction = "FORWARD"
	DirectionReturn  Direction = "RETURN"
)

func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", Validationf("direction %q must be FORWARD or RETURN", s)
	}
	return d, nil
}

func (d Direction) Valid() bool {
	return d == DirectionForward || d == DirectionReturn
}
