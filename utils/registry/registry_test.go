package registry

import (
	"context"
	"log"
	"testing"

	"github.com/recipeforge/reciperunner/utils/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopStep struct{}

func (noopStep) Execute(ctx context.Context, s *state.State) error { return nil }

func TestRegisterAndBuild(t *testing.T) {
	r := New()
	r.Register("noop", func(logger *log.Logger, config map[string]interface{}) (Step, error) {
		return noopStep{}, nil
	})

	step, err := r.Build(nil, "noop", map[string]interface{}{})
	require.NoError(t, err)
	require.NoError(t, step.Execute(context.Background(), state.New(nil, nil)))
}

func TestBuildUnregisteredTypeErrors(t *testing.T) {
	r := New()
	_, err := r.Build(nil, "nope", nil)
	require.Error(t, err)
}

func TestLookupReportsPresence(t *testing.T) {
	r := New()
	_, ok := r.Lookup("nope")
	assert.False(t, ok)

	r.Register("thing", func(logger *log.Logger, config map[string]interface{}) (Step, error) {
		return noopStep{}, nil
	})
	_, ok = r.Lookup("thing")
	assert.True(t, ok)
}
