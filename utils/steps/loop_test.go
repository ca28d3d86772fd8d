package steps

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/recipeforge/reciperunner/utils/registry"
	"github.com/recipeforge/reciperunner/utils/rerr"
	"github.com/recipeforge/reciperunner/utils/state"
	"github.com/stretchr/testify/require"
)

// doubleItemStep sets item_key to item*2 (an int), tracking concurrency
// for the S2 "at most N in flight" assertion.
type doubleItemStep struct {
	itemKey     string
	inFlight    *int32
	maxObserved *int32
	hold        time.Duration
}

func (s doubleItemStep) Execute(ctx context.Context, st *state.State) error {
	cur := atomic.AddInt32(s.inFlight, 1)
	defer atomic.AddInt32(s.inFlight, -1)
	for {
		max := atomic.LoadInt32(s.maxObserved)
		if cur <= max || atomic.CompareAndSwapInt32(s.maxObserved, max, cur) {
			break
		}
	}
	if s.hold > 0 {
		time.Sleep(s.hold)
	}
	v, err := st.Get(s.itemKey)
	if err != nil {
		return err
	}
	st.Set(s.itemKey, v.(int)*2)
	return nil
}

// failOnValueStep fails when item_key equals failOn.
type failOnValueStep struct {
	itemKey string
	failOn  int
}

func (s failOnValueStep) Execute(ctx context.Context, st *state.State) error {
	v, err := st.Get(s.itemKey)
	if err != nil {
		return err
	}
	if v.(int) == s.failOn {
		return fmt.Errorf("boom on %d", v)
	}
	return nil
}

func buildLoopStep(t *testing.T, reg *registry.Registry, config map[string]interface{}) registry.Step {
	t.Helper()
	f := NewLoopFactory(reg)
	step, err := f(nil, config)
	require.NoError(t, err)
	return step
}

func TestLoopConcurrencyAndOrdering(t *testing.T) {
	reg := registry.New()
	var inFlight, maxObserved int32
	reg.Register("double", func(logger *log.Logger, config map[string]interface{}) (registry.Step, error) {
		return doubleItemStep{itemKey: "item", inFlight: &inFlight, maxObserved: &maxObserved, hold: 20 * time.Millisecond}, nil
	})

	st := state.New(map[string]interface{}{
		"items": []interface{}{10, 20, 30, 40},
	}, nil)

	step := buildLoopStep(t, reg, map[string]interface{}{
		"items":           "items",
		"item_key":        "item",
		"result_key":      "doubled",
		"max_concurrency": 2,
		"delay":           float64(0),
		"substeps": []interface{}{
			map[string]interface{}{"type": "double", "config": map[string]interface{}{}},
		},
	})

	require.NoError(t, step.Execute(context.Background(), st))

	result, err := st.Get("doubled")
	require.NoError(t, err)
	require.Equal(t, []interface{}{20, 40, 60, 80}, result)
	require.LessOrEqual(t, int(atomic.LoadInt32(&maxObserved)), 2)
}

func TestLoopFailFastStopsAggregateAndWrapsItemFailed(t *testing.T) {
	reg := registry.New()
	reg.Register("maybe_fail", func(logger *log.Logger, config map[string]interface{}) (registry.Step, error) {
		return failOnValueStep{itemKey: "item", failOn: 2}, nil
	})

	st := state.New(map[string]interface{}{"items": []interface{}{1, 2, 3}}, nil)
	step := buildLoopStep(t, reg, map[string]interface{}{
		"items":           "items",
		"item_key":        "item",
		"result_key":      "out",
		"max_concurrency": 1,
		"fail_fast":       true,
		"substeps": []interface{}{
			map[string]interface{}{"type": "maybe_fail", "config": map[string]interface{}{}},
		},
	})

	err := step.Execute(context.Background(), st)
	require.Error(t, err)
	var itemFailed *rerr.LoopItemFailed
	require.ErrorAs(t, err, &itemFailed)
	require.Equal(t, 1, itemFailed.KeyOrIndex)

	require.False(t, st.Contains("out"))
}

func TestLoopFailFastFalseCollectsErrors(t *testing.T) {
	reg := registry.New()
	reg.Register("maybe_fail", func(logger *log.Logger, config map[string]interface{}) (registry.Step, error) {
		return failOnValueStep{itemKey: "item", failOn: 2}, nil
	})

	st := state.New(map[string]interface{}{"items": []interface{}{1, 2, 3}}, nil)
	step := buildLoopStep(t, reg, map[string]interface{}{
		"items":           "items",
		"item_key":        "item",
		"result_key":      "out",
		"max_concurrency": 1,
		"fail_fast":       false,
		"substeps": []interface{}{
			map[string]interface{}{"type": "maybe_fail", "config": map[string]interface{}{}},
		},
	})

	require.NoError(t, step.Execute(context.Background(), st))

	out, err := st.Get("out")
	require.NoError(t, err)
	outMap, ok := out.(map[string]interface{})
	require.True(t, ok, "expected a map aggregate once a failure occurred")
	require.Equal(t, 1, outMap["0"])
	require.Equal(t, 3, outMap["2"])
	errs, ok := outMap["__errors"].(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, errs["1"], "boom on 2")
}

func TestLoopEmptyInputYieldsEmptyAggregate(t *testing.T) {
	reg := registry.New()
	st := state.New(map[string]interface{}{"items": []interface{}{}}, nil)
	step := buildLoopStep(t, reg, map[string]interface{}{
		"items":      "items",
		"item_key":   "item",
		"result_key": "out",
		"substeps":   []interface{}{},
	})

	require.NoError(t, step.Execute(context.Background(), st))
	out, err := st.Get("out")
	require.NoError(t, err)
	require.Equal(t, []interface{}{}, out)
}

func TestLoopItemsMissingRaisesLoopItemsInvalid(t *testing.T) {
	reg := registry.New()
	st := state.New(nil, nil)
	step := buildLoopStep(t, reg, map[string]interface{}{
		"items":      "nope",
		"item_key":   "item",
		"result_key": "out",
		"substeps":   []interface{}{},
	})

	err := step.Execute(context.Background(), st)
	require.Error(t, err)
	var invalid *rerr.LoopItemsInvalid
	require.ErrorAs(t, err, &invalid)
}

func TestLoopMapInputPreservesKeys(t *testing.T) {
	reg := registry.New()
	reg.Register("identity", func(logger *log.Logger, config map[string]interface{}) (registry.Step, error) {
		return identityStep{}, nil
	})

	st := state.New(map[string]interface{}{
		"items": map[string]interface{}{"a": 1, "b": 2},
	}, nil)
	step := buildLoopStep(t, reg, map[string]interface{}{
		"items":      "items",
		"item_key":   "item",
		"result_key": "out",
		"substeps": []interface{}{
			map[string]interface{}{"type": "identity", "config": map[string]interface{}{}},
		},
	})

	require.NoError(t, step.Execute(context.Background(), st))
	out, err := st.Get("out")
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"a": 1, "b": 2}, out)
}

type identityStep struct{}

func (identityStep) Execute(ctx context.Context, st *state.State) error { return nil }

func TestLoopSequentialStartOrder(t *testing.T) {
	reg := registry.New()
	var mu sync.Mutex
	var order []int
	reg.Register("record", func(logger *log.Logger, config map[string]interface{}) (registry.Step, error) {
		return recordStartStep{order: &order, mu: &mu}, nil
	})

	st := state.New(map[string]interface{}{"items": []interface{}{1, 2, 3}}, nil)
	step := buildLoopStep(t, reg, map[string]interface{}{
		"items":           "items",
		"item_key":        "item",
		"result_key":      "out",
		"max_concurrency": 1,
		"substeps": []interface{}{
			map[string]interface{}{"type": "record", "config": map[string]interface{}{}},
		},
	})

	require.NoError(t, step.Execute(context.Background(), st))
	require.Equal(t, []int{1, 2, 3}, order)
}

type recordStartStep struct {
	order *[]int
	mu    *sync.Mutex
}

func (s recordStartStep) Execute(ctx context.Context, st *state.State) error {
	v, err := st.Get("item")
	if err != nil {
		return err
	}
	s.mu.Lock()
	*s.order = append(*s.order, v.(int))
	s.mu.Unlock()
	return nil
}
