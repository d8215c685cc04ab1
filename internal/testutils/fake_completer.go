// Package testutils provides fakes and deterministic generators for mychat tests.
package testutils

import (
	"context"
	"errors"
	"sync"

	"mychat/pkg/chattypes"
)

// FakeReply scripts one response of a FakeCompleter. A non-nil Err makes the call fail.
type FakeReply struct {
	Text  string
	Cost  float64
	Usage chattypes.Usage
	Err   error
}

// FakeCall records the arguments of one Complete call.
type FakeCall struct {
	History []chattypes.Message
	Model   chattypes.ModelConfig
}

// FakeCompleter is a scripted chattypes.Completer. Replies are consumed in order;
// once exhausted every further call fails.
type FakeCompleter struct {
	mu      sync.Mutex
	replies []FakeReply
	calls   []FakeCall
	block   chan struct{}
	entered chan struct{}
}

// NewFakeCompleter creates a completer that returns the given replies in order.
func NewFakeCompleter(replies ...FakeReply) *FakeCompleter {
	return &FakeCompleter{replies: replies}
}

// Blocking makes every call wait until Release is called. Entered is signalled once per call
// right after the call has been recorded.
func (f *FakeCompleter) Blocking() *FakeCompleter {
	f.block = make(chan struct{})
	f.entered = make(chan struct{}, 16)
	return f
}

// Entered returns the channel signalled when a blocking call starts.
func (f *FakeCompleter) Entered() <-chan struct{} {
	return f.entered
}

// Release unblocks all pending and future calls.
func (f *FakeCompleter) Release() {
	close(f.block)
}

// Complete implements chattypes.Completer.
func (f *FakeCompleter) Complete(ctx context.Context, history []chattypes.Message, model chattypes.ModelConfig) (chattypes.Reply, error) {
	f.mu.Lock()
	copied := make([]chattypes.Message, len(history))
	copy(copied, history)
	f.calls = append(f.calls, FakeCall{History: copied, Model: model})

	var next FakeReply
	exhausted := len(f.replies) == 0
	if !exhausted {
		next = f.replies[0]
		f.replies = f.replies[1:]
	}
	f.mu.Unlock()

	if f.block != nil {
		f.entered <- struct{}{}
		select {
		case <-f.block:
		case <-ctx.Done():
			return chattypes.Reply{}, &chattypes.CompletionServiceError{Kind: chattypes.KindNetwork, Err: ctx.Err()}
		}
	}

	if exhausted {
		return chattypes.Reply{}, &chattypes.CompletionServiceError{
			Provider: model.Provider,
			Model:    model.Model,
			Kind:     chattypes.KindAPI,
			Err:      errors.New("fake completer has no scripted replies left"),
		}
	}
	if next.Err != nil {
		return chattypes.Reply{}, next.Err
	}
	return chattypes.Reply{Text: next.Text, Cost: next.Cost, Usage: next.Usage, Model: model.Model}, nil
}

// Calls returns a copy of the recorded calls.
func (f *FakeCompleter) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}
