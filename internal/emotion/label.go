package emotion

import "fmt"

// Label is a single per-frame classification output from the fixed
// emotion vocabulary.
type Label string

const (
	LabelAngry    Label = "angry"
	LabelDisgust  Label = "disgust"
	LabelFear     Label = "fear"
	LabelHappy    Label = "happy"
	LabelNeutral  Label = "neutral"
	LabelSad      Label = "sad"
	LabelSurprise Label = "surprise"
)

// Labels lists the full vocabulary in canonical order.
var Labels = []Label{
	LabelAngry,
	LabelDisgust,
	LabelFear,
	LabelHappy,
	LabelNeutral,
	LabelSad,
	LabelSurprise,
}

// IsValid reports whether l belongs to the vocabulary.
func (l Label) IsValid() bool {
	switch l {
	case LabelAngry, LabelDisgust, LabelFear, LabelHappy, LabelNeutral, LabelSad, LabelSurprise:
		return true
	}
	return false
}

func (l Label) String() string {
	return string(l)
}

// Parse converts a raw string (e.g. from a classifier response) into a
// Label, rejecting anything outside the vocabulary.
func Parse(s string) (Label, error) {
	l := Label(s)
	if !l.IsValid() {
		return "", fmt.Errorf("unknown emotion label %q", s)
	}
	return l, nil
}
