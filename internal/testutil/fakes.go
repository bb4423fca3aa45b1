package testutil

import (
	"context"
	"errors"
	"sync"

	"mmh_backend/internal/email"
	"mmh_backend/internal/events"
	"mmh_backend/internal/registry"
)

// RecordingProvider keeps sent emails in memory. Setting Err makes every
// send fail after recording the attempt.
type RecordingProvider struct {
	mu   sync.Mutex
	sent []*email.Email
	Err  error
}

func (p *RecordingProvider) Send(_ context.Context, e *email.Email) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *e
	p.sent = append(p.sent, &cp)
	return p.Err
}

func (p *RecordingProvider) Close() error { return nil }

func (p *RecordingProvider) Sent() []*email.Email {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*email.Email, len(p.sent))
	copy(out, p.sent)
	return out
}

// SentTo returns messages whose To header contains addr.
func (p *RecordingProvider) SentTo(addr string) []*email.Email {
	var out []*email.Email
	for _, e := range p.Sent() {
		for _, to := range e.To {
			if to == addr {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// FakeRegistry answers lookups from a fixed map. Unknown ids are not found;
// Down simulates an unreachable registry.
type FakeRegistry struct {
	Companies map[string]string
	Down      bool
	Calls     int
}

func (f *FakeRegistry) Lookup(_ context.Context, ico string) (*registry.Company, error) {
	f.Calls++
	if f.Down {
		return nil, errors.Join(registry.ErrRegistryUnavailable, errors.New("connection refused"))
	}
	name, ok := f.Companies[ico]
	if !ok {
		return nil, registry.ErrCompanyNotFound
	}
	return &registry.Company{ICO: ico, Name: name}, nil
}

// RecordingPublisher keeps published order events in memory.
type RecordingPublisher struct {
	mu        sync.Mutex
	published []events.OrderEvent
	Err       error
}

func (p *RecordingPublisher) PublishOrderEvent(_ context.Context, ev events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, ev)
	return p.Err
}

func (p *RecordingPublisher) Close() error { return nil }

func (p *RecordingPublisher) Events() []events.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.OrderEvent, len(p.published))
	copy(out, p.published)
	return out
}
