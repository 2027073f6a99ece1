package download

import "fmt"

// record is the shared handle of one asset download. done is closed once
// path and err are final.
type record struct {
	url  string
	done chan struct{}
	path string
	err  error
}

func newRecord(url string) *record {
	return &record{url: url, done: make(chan struct{})}
}

func (r *record) settle(path string, err error) {
	r.path = path
	r.err = err
	close(r.done)
}

func (r *record) String() string {
	return fmt.Sprintf("asset %s", r.url)
}

// BatchResult summarises one Process call.
type BatchResult struct {
	Total        int
	Started      int
	Deduplicated int
	Success      int
	Failed       int
	Errors       []string
}

// Stats are the lifetime counters of a Coordinator.
type Stats struct {
	Started      int
	Succeeded    int
	Failed       int
	Deduplicated int
}
