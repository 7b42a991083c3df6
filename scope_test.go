package tensorwire

import (
	"fmt"
	"sync"
	"testing"

	assert "github.com/stretchr/testify/require"
)

func TestScopeVarIsIdempotent(t *testing.T) {
	scope := NewScope()
	v1 := scope.Var("w")
	v2 := scope.Var("w")
	assert.Same(t, v1, v2)
}

func TestScopeFindVarMissing(t *testing.T) {
	assert.Nil(t, NewScope().FindVar("nope"))
}

func TestScopeConcurrentResolution(t *testing.T) {
	scope := NewScope()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("param-%d", i%8)
			v := scope.Var(name)
			if v != scope.FindVar(name) {
				t.Errorf("resolution of %q is not stable", name)
			}
		}(i)
	}
	wg.Wait()
}

func TestVariableKindStickiness(t *testing.T) {
	v := new(Variable)
	tensor := v.GetTensor()
	assert.NotNil(t, tensor)
	assert.Same(t, tensor, v.GetTensor())
	assert.Nil(t, v.GetSelectedRows())

	v2 := new(Variable)
	slr := v2.GetSelectedRows()
	assert.NotNil(t, slr)
	assert.Nil(t, v2.GetTensor())
}
