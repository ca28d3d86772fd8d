package steps

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/recipeforge/reciperunner/utils/executor"
	"github.com/recipeforge/reciperunner/utils/recipe"
	"github.com/recipeforge/reciperunner/utils/registry"
	"github.com/recipeforge/reciperunner/utils/rerr"
	"github.com/recipeforge/reciperunner/utils/state"
	"github.com/recipeforge/reciperunner/utils/template"
)

const loopType = "loop"

// loopStep iterates a collection resolved from state via a dotted path,
// running substeps once per element with bounded concurrency.
//
// item_key plays a dual role by design: the
// loop writes the element into the iteration state under item_key before
// running substeps, and reads the iteration's *result* back out from the
// same key afterward. Substeps are expected to overwrite item_key with
// their output; a substep list that never touches item_key simply yields
// the original element back as the iteration's result.
type loopStep struct {
	registry *registry.Registry
	itemsPath string
	itemKey string
	substeps *recipe.Recipe
	resultKey string
	maxConcurrency int
	delay time.Duration
	failFast bool
}

// NewLoopFactory returns the loop factory, closing over the shared
// registry so substeps resolve the same step vocabulary as the parent.
func NewLoopFactory(reg *registry.Registry) registry.Factory {
	return func(logger *log.Logger, config map[string]interface{}) (registry.Step, error) {
		itemsPath, err := requireString(config, loopType, "items")
		if err != nil {
			return nil, err
		}
		itemKey, err := requireString(config, loopType, "item_key")
		if err != nil {
			return nil, err
		}
		resultKey, err := requireString(config, loopType, "result_key")
		if err != nil {
			return nil, err
		}

		rawSubsteps, err := optionalSlice(config, loopType, "substeps")
		if err != nil {
			return nil, err
		}
		if rawSubsteps == nil {
			rawSubsteps = []interface{}{}
		}
		sub, err := recipe.Load(map[string]interface{}{"steps": rawSubsteps})
		if err != nil {
			return nil, &rerr.ConfigInvalid{StepType: loopType, Reason: "substeps: " + err.Error()}
		}

		maxConcurrency, err := optionalInt(config, loopType, "max_concurrency", 1)
		if err != nil {
			return nil, err
		}
		if maxConcurrency < 0 {
			return nil, &rerr.ConfigInvalid{StepType: loopType, Reason: "max_concurrency must be >= 0"}
		}
		delaySeconds, err := optionalFloat(config, loopType, "delay", 0)
		if err != nil {
			return nil, err
		}
		if delaySeconds < 0 {
			return nil, &rerr.ConfigInvalid{StepType: loopType, Reason: "delay must be >= 0"}
		}
		failFast, err := optionalBool(config, loopType, "fail_fast", true)
		if err != nil {
			return nil, err
		}

		return &loopStep{
			registry: reg,
			itemsPath: itemsPath,
			itemKey: itemKey,
			substeps: sub,
			resultKey: resultKey,
			maxConcurrency: maxConcurrency,
			delay: time.Duration(delaySeconds * float64(time.Second)),
			failFast: failFast,
		}, nil
	}
}

// loopPair is one element to iterate, tagged with the key it's stored
// under in the final aggregate: an int index for array input, a string
// key for map input.
type loopPair struct {
	key interface{}
	value interface{}
}

func (s *loopStep) resolveItems(st *state.State) ([]loopPair, bool, error) {
	raw, found := template.Lookup(s.itemsPath, st.FlatView())
	if !found {
		return nil, false, &rerr.LoopItemsInvalid{Path: s.itemsPath}
	}
	switch v := raw.(type) {
	case []interface{}:
		pairs := make([]loopPair, len(v))
		for i, e := range v {
			pairs[i] = loopPair{key: i, value: e}
		}
		return pairs, false, nil
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		// Go maps carry no insertion order; keys are sorted for a
		// deterministic, reproducible iteration order instead.
		sort.Strings(keys)
		pairs := make([]loopPair, len(keys))
		for i, k := range keys {
			pairs[i] = loopPair{key: k, value: v[k]}
		}
		return pairs, true, nil
	default:
		return nil, false, &rerr.LoopItemsInvalid{Path: s.itemsPath}
	}
}

func (s *loopStep) Execute(ctx context.Context, st *state.State) error {
	pairs, isMap, err := s.resolveItems(st)
	if err != nil {
		return err
	}

	if len(pairs) == 0 {
		st.Set(s.resultKey, emptyAggregate(isMap))
		return nil
	}

	permits := int64(s.maxConcurrency)
	if s.maxConcurrency == 0 {
		permits = int64(len(pairs))
	}
	sem := semaphore.NewWeighted(permits)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu sync.Mutex
		results = make(map[interface{}]interface{}, len(pairs))
		errs = make(map[interface{}]string)
		firstFailed error
		wg sync.WaitGroup
	)

	for i, pair := range pairs {
		if i > 0 && s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-runCtx.Done():
			}
		}
		if runCtx.Err() != nil {
			// Fail-fast already tripped: stop launching new iterations.
			break
		}
		if err := sem.Acquire(runCtx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(pair loopPair) {
			defer wg.Done()
			defer sem.Release(1)

			result, iterErr := s.runIteration(runCtx, st, pair)

			mu.Lock()
			defer mu.Unlock()
			if iterErr != nil {
				wrapped := &rerr.LoopItemFailed{KeyOrIndex: pair.key, Cause: iterErr}
				if s.failFast {
					if firstFailed == nil {
						firstFailed = wrapped
						cancel()
					}
					return
				}
				errs[pair.key] = iterErr.Error()
				return
			}
			results[pair.key] = result
		}(pair)
	}

	wg.Wait()

	if s.failFast && firstFailed != nil {
		return firstFailed
	}

	st.Set(s.resultKey, buildAggregate(isMap, pairs, results, errs))
	return nil
}

// runIteration clones the parent state, seeds the element and positional
// marker, drives a nested executor over the substeps, and reads the
// iteration's result back out of item_key.
func (s *loopStep) runIteration(ctx context.Context, parent *state.State, pair loopPair) (interface{}, error) {
	iter := parent.Clone()
	iter.Set(s.itemKey, pair.value)
	if idx, ok := pair.key.(int); ok {
		iter.Set("__index", idx)
	}
	if key, ok := pair.key.(string); ok {
		iter.Set("__key", key)
	}

	nested := executor.New(s.registry, nil)
	if err := nested.ExecuteRecipe(ctx, s.substeps, iter); err != nil {
		return nil, err
	}

	// The iteration's clone is otherwise discarded: only the value at item_key survives into the aggregate.
	return iter.Get(s.itemKey)
}

func emptyAggregate(isMap bool) interface{} {
	if isMap {
		return map[string]interface{}{}
	}
	return []interface{}{}
}

// buildAggregate assembles the loop's result_key value. With no failures
// it mirrors the input shape exactly: a list for list input, a map for
// map input. With fail_fast=false and at least one failure, array input
// can no longer be represented as a dense list (some indices are
// missing), so the aggregate becomes a map keyed by stringified index
// plus an __errors sub-key — map input already has string keys and gains
// __errors directly.
func buildAggregate(isMap bool, pairs []loopPair, results map[interface{}]interface{}, errs map[interface{}]string) interface{} {
	if isMap {
		out := make(map[string]interface{}, len(results)+1)
		for _, p := range pairs {
			if v, ok := results[p.key]; ok {
				out[p.key.(string)] = v
			}
		}
		if len(errs) > 0 {
			out["__errors"] = stringKeyedErrors(errs)
		}
		return out
	}

	if len(errs) == 0 {
		out := make([]interface{}, 0, len(pairs))
		for _, p := range pairs {
			out = append(out, results[p.key])
		}
		return out
	}

	out := make(map[string]interface{}, len(results)+1)
	for _, p := range pairs {
		if v, ok := results[p.key]; ok {
			out[strconv.Itoa(p.key.(int))] = v
		}
	}
	out["__errors"] = stringKeyedErrors(errs)
	return out
}

func stringKeyedErrors(errs map[interface{}]string) map[string]interface{} {
	out := make(map[string]interface{}, len(errs))
	for k, v := range errs {
		switch key := k.(type) {
		case int:
			out[strconv.Itoa(key)] = v
		case string:
			out[key] = v
		default:
			out[fmt.Sprintf("%v", key)] = v
		}
	}
	return out
}
