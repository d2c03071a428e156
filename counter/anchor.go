package counter

import (
	"strings"

	"github.com/pkg/errors"
)

// Anchor is the point of a bounding box used as the track's position
type Anchor uint16

const (
	AnchorCenter Anchor = iota
	AnchorBottomCenter
	AnchorTopCenter
	AnchorCenterLeft
	AnchorCenterRight
	AnchorTopLeft
	AnchorTopRight
	AnchorBottomLeft
	AnchorBottomRight
)

var anchorNames = map[Anchor]string{
	AnchorCenter:       "center",
	AnchorBottomCenter: "bottom_center",
	AnchorTopCenter:    "top_center",
	AnchorCenterLeft:   "center_left",
	AnchorCenterRight:  "center_right",
	AnchorTopLeft:      "top_left",
	AnchorTopRight:     "top_right",
	AnchorBottomLeft:   "bottom_left",
	AnchorBottomRight:  "bottom_right",
}

func (anchor Anchor) String() string {
	if name, ok := anchorNames[anchor]; ok {
		return name
	}
	return "unknown"
}

// ParseAnchor converts name like "bottom_center" to Anchor
func ParseAnchor(name string) (Anchor, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for anchor, anchorName := range anchorNames {
		if anchorName == name {
			return anchor, nil
		}
	}
	return AnchorCenter, errors.Wrapf(ErrInvalidConfiguration, "unknown anchor %q", name)
}
