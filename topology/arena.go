package topology

import (
	"errors"
	"fmt"

	"github.com/bsaid97/go-topology-engine/geo"
)

var (
	errHandleOutOfRange = errors.New("feature index out of range")
	errHandleRetired    = errors.New("feature was replaced by an earlier repair")
)

// arena addresses features by the handle they were given at extraction,
// which is their position in the extracted list. Structure changing
// repairs retire a handle and record its replacements instead of shifting
// positions, so handles of later errors in the batch stay meaningful.
type arena struct {
	slots []*slot
}

type slot struct {
	feature      *geo.Feature
	retired      bool
	replacements []*geo.Feature
}

func newArena(features []*geo.Feature) *arena {
	a := &arena{slots: make([]*slot, len(features))}
	for i, f := range features {
		a.slots[i] = &slot{feature: f}
	}
	return a
}

// live resolves a handle that is going to be modified.
func (a *arena) live(handle int) (*geo.Feature, error) {
	s, err := a.slot(handle)
	if err != nil {
		return nil, err
	}
	if s.retired {
		return nil, fmt.Errorf("%w: %d", errHandleRetired, handle)
	}
	return s.feature, nil
}

// lookup resolves a handle that is only read. A retired slot still
// answers with the feature as it was before it was replaced.
func (a *arena) lookup(handle int) (*geo.Feature, error) {
	s, err := a.slot(handle)
	if err != nil {
		return nil, err
	}
	return s.feature, nil
}

func (a *arena) retire(handle int, replacements []*geo.Feature) error {
	s, err := a.slot(handle)
	if err != nil {
		return err
	}
	s.retired = true
	s.replacements = replacements
	return nil
}

func (a *arena) slot(handle int) (*slot, error) {
	if handle < 0 || handle >= len(a.slots) {
		return nil, fmt.Errorf("%w: %d", errHandleOutOfRange, handle)
	}
	return a.slots[handle], nil
}

// features flattens the arena in handle order, placing the replacements of
// a retired slot where the slot was.
func (a *arena) features() []*geo.Feature {
	out := make([]*geo.Feature, 0, len(a.slots))
	for _, s := range a.slots {
		if s.retired {
			out = append(out, s.replacements...)
			continue
		}
		out = append(out, s.feature)
	}
	return out
}
