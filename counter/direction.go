package counter

import (
	"strings"

	"github.com/pkg/errors"
)

// Direction of a crossing event
type Direction uint8

const (
	DirectionIn Direction = iota + 1
	DirectionOut
)

func (direction Direction) String() string {
	switch direction {
	case DirectionIn:
		return "in"
	case DirectionOut:
		return "out"
	default:
		return "unknown"
	}
}

// DirectionConvention decides which transition counts as "in"
type DirectionConvention uint8

const (
	// NegativeToPositiveIn counts NEGATIVE->POSITIVE as "in" and POSITIVE->NEGATIVE as "out"
	NegativeToPositiveIn DirectionConvention = iota
	// PositiveToNegativeIn counts POSITIVE->NEGATIVE as "in" and NEGATIVE->POSITIVE as "out"
	PositiveToNegativeIn
)

func (convention DirectionConvention) String() string {
	switch convention {
	case NegativeToPositiveIn:
		return "negative_to_positive"
	case PositiveToNegativeIn:
		return "positive_to_negative"
	default:
		return "unknown"
	}
}

// ParseDirectionConvention accepts "negative_to_positive" and "positive_to_negative".
// Empty string gives NegativeToPositiveIn.
func ParseDirectionConvention(name string) (DirectionConvention, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "negative_to_positive":
		return NegativeToPositiveIn, nil
	case "positive_to_negative":
		return PositiveToNegativeIn, nil
	default:
		return NegativeToPositiveIn, errors.Wrapf(ErrInvalidConfiguration, "unknown direction convention %q", name)
	}
}

// direction returns direction for transition from one known side to another
func (convention DirectionConvention) direction(from, to Side) Direction {
	in := from == SideNegative && to == SidePositive
	if convention == PositiveToNegativeIn {
		in = from == SidePositive && to == SideNegative
	}
	if in {
		return DirectionIn
	}
	return DirectionOut
}
