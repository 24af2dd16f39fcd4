package runs

import (
	"encoding/json"
	"time"

	"github.com/aristath/stockselect/internal/domain"
)

// Request asks for one strategy run on the current catalog.
type Request struct {
	Strategy string          `json:"strategy"`
	Size     int             `json:"size"`
	Seed     *int64          `json:"seed,omitempty"`
	Params   json.RawMessage `json:"params,omitempty"`
	NoCache  bool            `json:"no_cache,omitempty"`
}

// Run is a completed, recorded run.
type Run struct {
	ID        string          `json:"id"`
	Strategy  string          `json:"strategy"`
	Size      int             `json:"size"`
	Seed      int64           `json:"seed"`
	Params    json.RawMessage `json:"params"`
	Cached    bool            `json:"cached"`
	Result    *domain.Result  `json:"result"`
	CreatedAt time.Time       `json:"created_at"`
}

// BatchItem is the outcome of one request in a batch. Exactly one of Run
// and Error is set.
type BatchItem struct {
	Request Request `json:"request"`
	Run     *Run    `json:"run,omitempty"`
	Error   string  `json:"error,omitempty"`
	err     error
}

// Err returns the run error, if any.
func (b BatchItem) Err() error {
	return b.err
}

// ListFilter narrows a history listing.
type ListFilter struct {
	Strategy string
	Limit    int
}
