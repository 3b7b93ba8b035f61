package jobqueue

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// jobDoc is the document shape indexed for each queued job: script text,
// queue name and job id are all searchable, matching tcljob.c's
// "ns_job jobs ?-queue? ?pattern?" introspection which matches against
// more than a glob on the id.
type jobDoc struct {
	Queue  string `json:"queue"`
	ID     string `json:"id"`
	Script string `json:"script"`
}

// jobIndex is an in-memory bleve index over a Pool's live jobs. It is
// rebuilt from nothing on process start (no persisted database, per the
// module's non-goals) and kept current as jobs are queued and reaped.
type jobIndex struct {
	mu    sync.Mutex
	index bleve.Index
}

func newJobIndex() *jobIndex {
	m := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		// bleve.NewMemOnly only fails on a malformed mapping; the
		// default mapping above is never malformed.
		panic(fmt.Sprintf("jobqueue: building in-memory search index: %v", err))
	}
	return &jobIndex{index: idx}
}

func (ji *jobIndex) add(queueName, jobID, script string) {
	ji.mu.Lock()
	defer ji.mu.Unlock()
	_ = ji.index.Index(queueName+"/"+jobID, jobDoc{Queue: queueName, ID: jobID, Script: script})
}

func (ji *jobIndex) remove(queueName, jobID string) {
	ji.mu.Lock()
	defer ji.mu.Unlock()
	_ = ji.index.Delete(queueName + "/" + jobID)
}

// search runs a bleve query string query (field:value, free text, etc.)
// against indexed jobs and returns the matching "queue/id" keys.
func (ji *jobIndex) search(query string) ([]string, error) {
	ji.mu.Lock()
	defer ji.mu.Unlock()

	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = 1000
	res, err := ji.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("jobqueue: search %q: %w", query, err)
	}
	keys := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		keys = append(keys, hit.ID)
	}
	return keys, nil
}
