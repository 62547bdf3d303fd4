package converter

import "fmt"

// State is a stage of a conversion. States are entered strictly in order;
// Failed can be entered from any state.
type State int

const (
	Created State = iota
	MetadataCopied
	Allocated
	Reading
	Accumulating
	PyramidBuilding
	Swizzling
	Writing
	Finalized
	Failed
)

var stateNames = [...]string{
	Created:         "Created",
	MetadataCopied:  "MetadataCopied",
	Allocated:       "Allocated",
	Reading:         "Reading",
	Accumulating:    "Accumulating",
	PyramidBuilding: "PyramidBuilding",
	Swizzling:       "Swizzling",
	Writing:         "Writing",
	Finalized:       "Finalized",
	Failed:          "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// transition enters the next state. Skipping or repeating a state is an
// internal bug.
func (c *Converter) transition(next State) {
	if next != c.state+1 || c.state >= Finalized {
		panic(newError(ErrInvariant, "transition", fmt.Errorf("%s -> %s", c.state, next)))
	}
	c.state = next
	c.history = append(c.history, next)
	c.tlog.Infof("entering %s", next)
}
