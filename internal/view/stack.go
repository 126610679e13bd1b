package view

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/warpdl/asyncload/pkg/loadlib"
	"github.com/warpdl/asyncload/pkg/logger"
)

// View is a constructed instance of a Class.
type View struct {
	ID         uint64            `json:"id"`
	ClassName  string            `json:"className"`
	Ref        loadlib.ClassRef  `json:"ref"`
	Title      string            `json:"title"`
	Attributes map[string]string `json:"attributes,omitempty"`
	ZOrder     int               `json:"zOrder"`

	destroyed atomic.Bool
}

// Destroyed reports whether the view was destroyed by a later placement.
func (v *View) Destroyed() bool {
	return v.destroyed.Load()
}

func (v *View) String() string {
	return fmt.Sprintf("%s#%d(%s)", v.ClassName, v.ID, v.Ref)
}

// Stack is a z-ordered stack of views. It implements
// loadlib.InstanceFactory: every Create pushes the new view, honouring
// the placement options against the current top.
type Stack struct {
	log logger.Logger

	mu    sync.Mutex
	views []*View
	next  uint64
}

var _ loadlib.InstanceFactory = (*Stack)(nil)

// NewStack creates an empty stack.
func NewStack(l logger.Logger) *Stack {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Stack{log: l}
}

// Create builds a view from class and places it on the stack.
func (s *Stack) Create(class loadlib.Class, p loadlib.Placement) (loadlib.Instance, error) {
	c, ok := class.(*Class)
	if !ok || c == nil {
		return nil, fmt.Errorf("%w: %T", ErrNotAViewClass, class)
	}
	v := &View{
		ClassName:  c.Name,
		Ref:        c.Ref,
		Title:      c.Title,
		Attributes: make(map[string]string, len(c.Attributes)),
		ZOrder:     p.ZOrder,
	}
	for k, val := range c.Attributes {
		v.Attributes[k] = val
	}
	if c.Script != nil {
		res, err := runScript(c, p)
		if err != nil {
			return nil, err
		}
		if res.Title != "" {
			v.Title = res.Title
		}
		for k, val := range res.Attributes {
			v.Attributes[k] = val
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if (p.RemoveParent || p.DestroyParent) && len(s.views) > 0 {
		parent := s.views[len(s.views)-1]
		s.views[len(s.views)-1] = nil
		s.views = s.views[:len(s.views)-1]
		if p.DestroyParent {
			parent.destroyed.Store(true)
			s.log.Info("view: destroyed parent %s", parent)
		} else {
			s.log.Info("view: removed parent %s", parent)
		}
	}
	s.next++
	v.ID = s.next
	// after every view with a lower or equal z-order
	idx := sort.Search(len(s.views), func(i int) bool {
		return s.views[i].ZOrder > v.ZOrder
	})
	s.views = append(s.views, nil)
	copy(s.views[idx+1:], s.views[idx:])
	s.views[idx] = v
	s.log.Info("view: created %s at z-order %d", v, v.ZOrder)
	return v, nil
}

// Top returns the topmost view, or nil.
func (s *Stack) Top() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.views) == 0 {
		return nil
	}
	return s.views[len(s.views)-1]
}

// Views returns the views from bottom to top.
func (s *Stack) Views() []*View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*View(nil), s.views...)
}

// Len returns the number of views on the stack.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

// Remove takes the view with the given id off the stack.
func (s *Stack) Remove(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range s.views {
		if v.ID == id {
			copy(s.views[i:], s.views[i+1:])
			s.views[len(s.views)-1] = nil
			s.views = s.views[:len(s.views)-1]
			return true
		}
	}
	return false
}

// Clear removes every view and returns how many there were.
func (s *Stack) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.views)
	s.views = nil
	return n
}
