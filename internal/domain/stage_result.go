package domain

import (
	"errors"
	"sort"
	"sync"
)

// StageResult is what a coordinator reports for one run. It is safe for
// concurrent use by workers of the same run.
type StageResult struct {
	Stage     Stage
	Completed []string
	Skipped   []string
	Failed    map[string]error

	mu sync.Mutex
}

func NewStageResult(stage Stage) *StageResult {
	return &StageResult{
		Stage:  stage,
		Failed: map[string]error{},
	}
}

func (r *StageResult) OK() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Failed) == 0
}

func (r *StageResult) Complete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Completed = append(r.Completed, key)
}

func (r *StageResult) Skip(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped = append(r.Skipped, key)
}

func (r *StageResult) Fail(key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed[key] = err
}

// Err joins every failure, or returns nil.
func (r *StageResult) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Failed) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r.Failed))
	for k := range r.Failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	errs := make([]error, 0, len(keys))
	for _, k := range keys {
		errs = append(errs, r.Failed[k])
	}
	return errors.Join(errs...)
}
