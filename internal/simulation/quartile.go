package simulation

import "fmt"

// Quartile is one of four equal-frequency groups. The zero value is Bottom
// and values order as Bottom < Second < Third < Top.
type Quartile int

const (
	Bottom Quartile = iota
	Second
	Third
	Top
)

// NumQuartiles is the number of quartile groups.
const NumQuartiles = 4

var quartileLabels = [NumQuartiles]string{"Bottom", "2nd", "3rd", "Top"}

// Quartiles returns all quartiles in canonical order.
func Quartiles() []Quartile {
	return []Quartile{Bottom, Second, Third, Top}
}

// QuartileLabels returns the labels in canonical (not lexical) order.
func QuartileLabels() []string {
	labels := make([]string, NumQuartiles)
	copy(labels, quartileLabels[:])
	return labels
}

// String returns the label: "Bottom", "2nd", "3rd" or "Top".
func (q Quartile) String() string {
	if q < Bottom || q > Top {
		return fmt.Sprintf("Quartile(%d)", int(q))
	}
	return quartileLabels[q]
}

// ParseQuartile maps a label back to its Quartile.
func ParseQuartile(s string) (Quartile, error) {
	for i, label := range quartileLabels {
		if label == s {
			return Quartile(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown quartile %q", ErrInvalidArgument, s)
}

// MarshalText encodes the quartile as its label.
func (q Quartile) MarshalText() ([]byte, error) {
	if q < Bottom || q > Top {
		return nil, fmt.Errorf("%w: quartile %d out of range", ErrInvalidArgument, int(q))
	}
	return []byte(quartileLabels[q]), nil
}

// UnmarshalText decodes a label.
func (q *Quartile) UnmarshalText(b []byte) error {
	v, err := ParseQuartile(string(b))
	if err != nil {
		return err
	}
	*q = v
	return nil
}
