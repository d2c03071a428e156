// Package source reads output of an external detector+tracker: one JSON document per frame.
//
//	{"info":{"width":1920,"height":1080,"fps":30,"total_frames":900}}
//	{"frame":0,"items":[{"id":7,"bbox":[100,40,60,30],"class_id":2,"confidence":0.9},{"id":"b-2","xyxy":[10,10,50,40]}]}
//
// The info header is optional and must be the first non-blank line.
// Items without "id" were not tracked upstream and are counted in Frame.Untracked.
// "class_id" and "confidence" are optional; Filter drops unwanted detections.
package source

import (
	"bufio"
	"context"
	"io"
	"slices"
	"strings"

	"github.com/LdDl/linecounter/counter"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const maxLineSize = 10 << 20

// Info describes the video the observations were taken from
type Info struct {
	Width       int
	Height      int
	FPS         int
	TotalFrames int
}

// Detection is a tracked bounding box
type Detection struct {
	TrackID string
	Box     counter.Rectangle
	// Nil when the tracker does not report it
	ClassID    *int
	Confidence *float64
}

// Frame holds detections of a single video frame
type Frame struct {
	Index      int
	Detections []Detection
	Untracked  int
	// Number of detections dropped by Filter
	Filtered int
}

// Filter keeps detections of given classes with confidence not less than MinConfidence.
// Empty Classes accepts every class. Detections without class or confidence pass the
// corresponding check.
type Filter struct {
	Classes       []int
	MinConfidence float64
}

// Accept reports whether detection passes filter
func (filter Filter) Accept(detection Detection) bool {
	if detection.ClassID != nil && len(filter.Classes) > 0 && !slices.Contains(filter.Classes, *detection.ClassID) {
		return false
	}
	if detection.Confidence != nil && *detection.Confidence < filter.MinConfidence {
		return false
	}
	return true
}

// Apply returns copy of frame with accepted detections only
func (filter Filter) Apply(frame Frame) Frame {
	kept := make([]Detection, 0, len(frame.Detections))
	for _, detection := range frame.Detections {
		if filter.Accept(detection) {
			kept = append(kept, detection)
			continue
		}
		frame.Filtered++
	}
	frame.Detections = kept
	return frame
}

// Observations converts detections to counter observations using given anchor
func (frame Frame) Observations(anchor counter.Anchor) []counter.TrackObservation[string] {
	observations := make([]counter.TrackObservation[string], len(frame.Detections))
	for i, detection := range frame.Detections {
		observations[i] = counter.NewObservation(detection.TrackID, detection.Box, anchor)
	}
	return observations
}

// Reader decodes frames line by line
type Reader struct {
	scanner *bufio.Scanner
	line    int
	frames  int
	pending *string
}

func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Reader{
		scanner: scanner,
	}
}

// ReadHeader reads info header if present. Must be called before the first Next
func (reader *Reader) ReadHeader() (Info, bool, error) {
	text, ok, err := reader.nextLine()
	if err != nil || !ok {
		return Info{}, false, err
	}
	doc := gjson.Parse(text)
	info := doc.Get("info")
	if !info.Exists() {
		reader.pending = &text
		return Info{}, false, nil
	}
	if !gjson.Valid(text) {
		return Info{}, false, errors.Errorf("line %d: malformed JSON", reader.line)
	}
	return Info{
		Width:       int(info.Get("width").Int()),
		Height:      int(info.Get("height").Int()),
		FPS:         int(info.Get("fps").Int()),
		TotalFrames: int(info.Get("total_frames").Int()),
	}, true, nil
}

// Next returns next frame or io.EOF
func (reader *Reader) Next() (Frame, error) {
	var text string
	if reader.pending != nil {
		text = *reader.pending
		reader.pending = nil
	} else {
		var ok bool
		var err error
		text, ok, err = reader.nextLine()
		if err != nil {
			return Frame{}, err
		}
		if !ok {
			return Frame{}, io.EOF
		}
	}
	frame, err := parseFrame(text, reader.frames)
	if err != nil {
		return Frame{}, errors.Wrapf(err, "line %d", reader.line)
	}
	reader.frames++
	return frame, nil
}

func (reader *Reader) nextLine() (string, bool, error) {
	for reader.scanner.Scan() {
		reader.line++
		text := strings.TrimSpace(reader.scanner.Text())
		if text == "" {
			continue
		}
		return text, true, nil
	}
	if err := reader.scanner.Err(); err != nil {
		return "", false, errors.Wrap(err, "can't read observations")
	}
	return "", false, nil
}

func parseFrame(text string, fallbackIndex int) (Frame, error) {
	if !gjson.Valid(text) {
		return Frame{}, errors.New("malformed JSON")
	}
	doc := gjson.Parse(text)
	frame := Frame{Index: fallbackIndex}
	if index := doc.Get("frame"); index.Exists() {
		frame.Index = int(index.Int())
	}
	items := doc.Get("items")
	if items.Exists() && !items.IsArray() {
		return Frame{}, errors.New("items must be an array")
	}
	for i, item := range items.Array() {
		id := item.Get("id")
		if !id.Exists() || id.Type == gjson.Null {
			frame.Untracked++
			continue
		}
		box, err := parseBox(item)
		if err != nil {
			return Frame{}, errors.Wrapf(err, "item %d", i)
		}
		detection := Detection{
			TrackID: id.String(),
			Box:     box,
		}
		if class := item.Get("class_id"); class.Exists() && class.Type != gjson.Null {
			if class.Type != gjson.Number {
				return Frame{}, errors.Errorf("item %d: class_id is not a number", i)
			}
			classID := int(class.Int())
			detection.ClassID = &classID
		}
		if conf := item.Get("confidence"); conf.Exists() && conf.Type != gjson.Null {
			if conf.Type != gjson.Number {
				return Frame{}, errors.Errorf("item %d: confidence is not a number", i)
			}
			confidence := conf.Float()
			detection.Confidence = &confidence
		}
		frame.Detections = append(frame.Detections, detection)
	}
	return frame, nil
}

func parseBox(item gjson.Result) (counter.Rectangle, error) {
	if bbox := item.Get("bbox"); bbox.Exists() {
		values, err := fourNumbers(bbox)
		if err != nil {
			return counter.Rectangle{}, errors.Wrap(err, "bbox")
		}
		return counter.NewRect(values[0], values[1], values[2], values[3]), nil
	}
	if xyxy := item.Get("xyxy"); xyxy.Exists() {
		values, err := fourNumbers(xyxy)
		if err != nil {
			return counter.Rectangle{}, errors.Wrap(err, "xyxy")
		}
		return counter.NewRect(values[0], values[1], values[2]-values[0], values[3]-values[1]), nil
	}
	return counter.Rectangle{}, errors.New("neither bbox nor xyxy is set")
}

func fourNumbers(value gjson.Result) ([4]float64, error) {
	var out [4]float64
	array := value.Array()
	if !value.IsArray() || len(array) != 4 {
		return out, errors.New("expected array of 4 numbers")
	}
	for i, v := range array {
		if v.Type != gjson.Number {
			return out, errors.Errorf("element %d is not a number", i)
		}
		out[i] = v.Float()
	}
	return out, nil
}

// Stream sends frames to out until EOF, first error or context cancellation. It does not close out
func Stream(ctx context.Context, reader *Reader, out chan<- Frame) error {
	for {
		frame, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- frame:
		}
	}
}
