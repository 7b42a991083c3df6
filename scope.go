package tensorwire

import "sync"

// Variable is an externally owned, mutable reference to storage resolved by
// name from a Scope. It holds either a Tensor or a SelectedRows, decided by
// first use; its lifetime spans the full message exchange and outlives the
// transient VariableMetadata built per decode.
//
// A Variable is not internally synchronized against concurrent writers: the
// at-most-one-writer-per-name guarantee must come from whatever schedules
// message handling (see Receiver).
type Variable struct {
	data interface{}
}

// GetTensor returns the dense tensor held by the variable, initializing it on
// first use. It returns nil if the variable already holds a different kind.
func (v *Variable) GetTensor() *Tensor {
	if v.data == nil {
		t := new(Tensor)
		v.data = t
		return t
	}
	t, _ := v.data.(*Tensor)
	return t
}

// GetSelectedRows returns the sparse structure held by the variable,
// initializing it on first use. It returns nil if the variable already holds
// a different kind.
func (v *Variable) GetSelectedRows() *SelectedRows {
	if v.data == nil {
		s := new(SelectedRows)
		v.data = s
		return s
	}
	s, _ := v.data.(*SelectedRows)
	return s
}

// Scope is the thread-safe variable table: it resolves a name to a mutable
// destination handle. Resolution of distinct names is independent and may
// happen concurrently from multiple decodes.
type Scope struct {
	lock sync.RWMutex
	vars map[string]*Variable
}

func NewScope() *Scope {
	return &Scope{vars: make(map[string]*Variable)}
}

// Var returns the variable with the given name, creating it if necessary.
func (s *Scope) Var(name string) *Variable {
	s.lock.Lock()
	defer s.lock.Unlock()
	if v, ok := s.vars[name]; ok {
		return v
	}
	v := new(Variable)
	s.vars[name] = v
	return v
}

// FindVar resolves name to its variable, or nil if none exists. The decoder
// treats a nil result as a distinct failure (VariableNotFoundError) rather
// than assuming resolution always succeeds.
func (s *Scope) FindVar(name string) *Variable {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.vars[name]
}
