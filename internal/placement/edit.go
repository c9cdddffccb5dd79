package placement

import (
	"errors"
	"sort"

	"github.com/arstudio/api/internal/model"
)

var (
	// ErrUnknownObject is returned for edits that target an object the
	// session does not hold.
	ErrUnknownObject = errors.New("unknown object")
	// ErrUnknownField is returned for edits of a field outside location/zoom.
	ErrUnknownField = errors.New("unknown field")
)

// Edit groups
const (
	GroupLocation = "location"
	GroupZoom     = "zoom"
)

var locationFields = map[string]bool{"x": true, "y": true, "z": true, "rotate_x": true, "rotate_y": true, "rotate_z": true}
var zoomFields = map[string]bool{"x": true, "y": true, "z": true}

// Session holds the committed objects of a scene, the user's pending drafts
// and the subset of drafts applied to the preview. Only applied edits ever
// reach rendering.
type Session struct {
	objects []Object
	byID    map[string]int
	drafts  map[string]model.ObjectDraft
	applied map[string]model.ObjectDraft
}

// NewSession starts an edit session over committed objects
func NewSession(objects []Object) *Session {
	s := &Session{}
	s.Reset(objects)
	return s
}

// Reset replaces the committed objects and clears every draft
func (s *Session) Reset(objects []Object) {
	s.objects = objects
	s.byID = make(map[string]int, len(objects))
	for i, o := range objects {
		if o.HasID() {
			s.byID[o.ID] = i
		}
	}
	s.drafts = map[string]model.ObjectDraft{}
	s.applied = map[string]model.ObjectDraft{}
}

// Objects returns the committed objects
func (s *Session) Objects() []Object {
	return s.objects
}

// Object looks up a committed object by id
func (s *Session) Object(id string) (Object, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Object{}, false
	}
	return s.objects[i], true
}

// SetField records raw input for one location or zoom field
func (s *Session) SetField(id, group, field string, v model.DraftValue) error {
	if _, ok := s.byID[id]; !ok {
		return ErrUnknownObject
	}
	d := s.drafts[id]
	switch {
	case group == GroupLocation && locationFields[field]:
		d.Location = setValue(d.Location, field, v)
	case group == GroupZoom && zoomFields[field]:
		d.Zoom = setValue(d.Zoom, field, v)
	default:
		return ErrUnknownField
	}
	s.drafts[id] = d
	return nil
}

// SetName records a pending rename
func (s *Session) SetName(id, name string) error {
	if _, ok := s.byID[id]; !ok {
		return ErrUnknownObject
	}
	d := s.drafts[id]
	d.Name = &name
	s.drafts[id] = d
	return nil
}

// SetDraft merges a sparse draft into the pending edits of id
func (s *Session) SetDraft(id string, draft model.ObjectDraft) error {
	if _, ok := s.byID[id]; !ok {
		return ErrUnknownObject
	}
	if draft.Name != nil {
		if err := s.SetName(id, *draft.Name); err != nil {
			return err
		}
	}
	for field, v := range draft.Location {
		if err := s.SetField(id, GroupLocation, field, v); err != nil {
			return err
		}
	}
	for field, v := range draft.Zoom {
		if err := s.SetField(id, GroupZoom, field, v); err != nil {
			return err
		}
	}
	if _, ok := s.drafts[id]; !ok {
		s.drafts[id] = model.ObjectDraft{}
	}
	return nil
}

// SetDrafts merges several drafts, stopping at the first failure
func (s *Session) SetDrafts(edits map[string]model.ObjectDraft) error {
	for _, id := range sortedKeys(edits) {
		if err := s.SetDraft(id, edits[id]); err != nil {
			return err
		}
	}
	return nil
}

// HasDrafts reports whether any edit is pending
func (s *Session) HasDrafts() bool {
	return len(s.drafts) > 0
}

// ApplyPreview copies the current drafts into the applied set
func (s *Session) ApplyPreview() {
	applied := make(map[string]model.ObjectDraft, len(s.drafts))
	for id, d := range s.drafts {
		applied[id] = cloneDraft(d)
	}
	s.applied = applied
}

// Placements computes the rendered transforms from committed state plus
// applied edits.
func (s *Session) Placements() []Placement {
	out := make([]Placement, 0, len(s.objects))
	for _, o := range s.objects {
		if d, ok := s.applied[o.ID]; ok && o.HasID() {
			o = ApplyDraft(o, d)
		}
		out = append(out, Placement{Object: o, Transform: ComputeTransform(o)})
	}
	return out
}

// PendingSave is one PATCH the session wants to send
type PendingSave struct {
	ObjectID string
	Body     map[string]any
}

// PendingSaves builds a PATCH body for every drafted object, ordered by id
func (s *Session) PendingSaves() []PendingSave {
	saves := make([]PendingSave, 0, len(s.drafts))
	for _, id := range sortedKeys(s.drafts) {
		o, ok := s.Object(id)
		if !ok {
			continue
		}
		saves = append(saves, PendingSave{ObjectID: id, Body: BuildPatch(o, s.drafts[id])})
	}
	return saves
}

// ApplyDraft overlays a draft on an object. Fields that do not parse keep
// their committed value, and zoom components must stay positive.
func ApplyDraft(o Object, d model.ObjectDraft) Object {
	if d.Name != nil {
		o.Name = *d.Name
	}
	loc := &o.Location
	for field, v := range d.Location {
		f, ok := v.Float()
		if !ok {
			continue
		}
		switch field {
		case "x":
			loc.X = f
		case "y":
			loc.Y = f
		case "z":
			loc.Z = f
		case "rotate_x":
			loc.RotateX = f
		case "rotate_y":
			loc.RotateY = f
		case "rotate_z":
			loc.RotateZ = f
		}
	}
	for field, v := range d.Zoom {
		f, ok := v.Float()
		if !ok || f <= 0 {
			continue
		}
		switch field {
		case "x":
			o.Zoom.X = f
		case "y":
			o.Zoom.Y = f
		case "z":
			o.Zoom.Z = f
		}
	}
	return o
}

func setValue(m map[string]model.DraftValue, field string, v model.DraftValue) map[string]model.DraftValue {
	if m == nil {
		m = map[string]model.DraftValue{}
	}
	m[field] = v
	return m
}

func cloneDraft(d model.ObjectDraft) model.ObjectDraft {
	out := model.ObjectDraft{}
	if d.Name != nil {
		name := *d.Name
		out.Name = &name
	}
	if d.Location != nil {
		out.Location = make(map[string]model.DraftValue, len(d.Location))
		for k, v := range d.Location {
			out.Location[k] = v
		}
	}
	if d.Zoom != nil {
		out.Zoom = make(map[string]model.DraftValue, len(d.Zoom))
		for k, v := range d.Zoom {
			out.Zoom[k] = v
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
