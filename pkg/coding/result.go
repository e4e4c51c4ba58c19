package coding

import (
	"sync/atomic"

	"github.com/otherjamesbrown/gendercode/pkg/gender"
)

// Input is a name submitted together with a caller-supplied identifier.
type Input struct {
	FirstName string `json:"first_name" yaml:"first_name"`
	UniqueID  string `json:"unique_id,omitempty" yaml:"unique_id,omitempty"`
}

// Result is the classification of one submitted name.
//
// A Result is written once, by the worker that dequeued it: Gender first,
// then the processed flag. Results are handed to the caller only after every
// worker has exited, so reading the fields afterwards needs no locking.
type Result struct {
	FirstName string        `json:"first_name" yaml:"first_name"`
	Row       int           `json:"row" yaml:"row"`
	UniqueID  string        `json:"unique_id,omitempty" yaml:"unique_id,omitempty"`
	Gender    gender.Gender `json:"gender" yaml:"gender"`

	processed atomic.Bool
}

func newResult(firstName string, row int, uniqueID string) *Result {
	return &Result{
		FirstName: firstName,
		Row:       row,
		UniqueID:  uniqueID,
		Gender:    gender.Unknown,
	}
}

// Processed reports whether a worker has classified this result.
func (r *Result) Processed() bool {
	return r.processed.Load()
}

func resultsFromNames(names []string) []*Result {
	results := make([]*Result, len(names))
	for i, name := range names {
		results[i] = newResult(name, i+1, "")
	}
	return results
}

func resultsFromInputs(inputs []Input) []*Result {
	results := make([]*Result, len(inputs))
	for i, in := range inputs {
		results[i] = newResult(in.FirstName, i+1, in.UniqueID)
	}
	return results
}
