package procrun

import (
	"context"
	"sync"
)

// Call records one invocation seen by a Fake.
type Call struct {
	Name string
	Args []string
}

// Result is the scripted outcome of a program run by a Fake.
type Result struct {
	Out []byte
	Err error
}

// Fake is a Runner that never spawns anything. Programs without a scripted
// Result fail as if they were not installed.
type Fake struct {
	mu      sync.Mutex
	results map[string]Result
	calls   []Call
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{results: make(map[string]Result)}
}

// Set scripts the outcome of every run of name.
func (f *Fake) Set(name string, r Result) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[name] = r
	return f
}

// Calls returns a copy of every invocation so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Run implements Runner.
func (f *Fake) Run(ctx context.Context, name string, args ...string) error {
	_, err := f.Output(ctx, name, args...)
	return err
}

// Output implements Runner.
func (f *Fake) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Name: name, Args: append([]string(nil), args...)})
	r, ok := f.results[name]
	if !ok {
		return nil, &LaunchError{Program: name, NotFound: true}
	}
	return r.Out, r.Err
}
