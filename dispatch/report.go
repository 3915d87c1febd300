package dispatch

import "sync"

// Entry kinds
const (
	KindSkip = "skip" // confirmed subscriber with an invalid stored email
	KindFail = "fail" // a send that the provider rejected or that errored
)

// Entry is a subscriber that did not receive the issue, and why.
type Entry struct {
	Subject string
	Kind    string
	Reason  string
}

// Report collects the outcome of a publish run. It is safe for concurrent use.
// Nothing recorded here changes the result of the run.
type Report struct {
	mu      sync.Mutex
	entries []Entry
	sent    int
}

// Skip records a subscriber left out of the dispatch population.
func (r *Report) Skip(subject string, err error) {
	r.add(Entry{Subject: subject, Kind: KindSkip, Reason: err.Error()})
}

// Fail records a failed send.
func (r *Report) Fail(subject string, err error) {
	r.add(Entry{Subject: subject, Kind: KindFail, Reason: err.Error()})
}

// Sent records a successful send.
func (r *Report) Sent() {
	r.mu.Lock()
	r.sent++
	r.mu.Unlock()
}

func (r *Report) add(e Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (r *Report) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Counts returns the number of sent, skipped and failed subscribers.
func (r *Report) Counts() (sent, skipped, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		switch e.Kind {
		case KindSkip:
			skipped++
		case KindFail:
			failed++
		}
	}
	return r.sent, skipped, failed
}
