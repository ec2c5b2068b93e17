package watcher

import (
	"encoding/json"

	"codegraph/internal/messages"
)

func jobToJSON(job messages.AnalysisJob) ([]byte, error) {
	return json.Marshal(job)
}
