package navigate

import (
	"context"
	"net/url"
	"sync"
)

// Recorder is an in-memory Navigator. It remembers every redirect instead
// of following it.
type Recorder struct {
	mu        sync.Mutex
	location  *url.URL
	redirects []*url.URL
	Err       error
}

// NewRecorder starts at location, which may be empty.
func NewRecorder(location string) (*Recorder, error) {
	r := &Recorder{}
	if location == "" {
		return r, nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	r.location = u
	return r, nil
}

func (r *Recorder) Location() *url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.location == nil {
		return nil
	}
	loc := *r.location
	return &loc
}

func (r *Recorder) Redirect(_ context.Context, target *url.URL) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.redirects = append(r.redirects, target)
	return nil
}

func (r *Recorder) Replace(location *url.URL) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.location = location
}

func (r *Recorder) Redirects() []*url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*url.URL(nil), r.redirects...)
}

// Last returns the most recent redirect, or nil.
func (r *Recorder) Last() *url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.redirects) == 0 {
		return nil
	}
	return r.redirects[len(r.redirects)-1]
}
