package bridge

import (
	"bytes"
	"encoding/json"

	"github.com/desertthunder/binder/internal/models"
)

// Frame operations exchanged over the sync socket.
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpSet         = "set"
	OpSnapshot    = "snapshot"
	OpError       = "error"
)

// Frame is a single message on the sync socket.
//
// Clients send subscribe, unsubscribe and set frames. The mirror answers with a snapshot frame for the path
// right after a subscribe and after every set on that path, the writer's own set included. A snapshot with
// null data means nothing has been stored at the path yet.
type Frame struct {
	Op      string          `json:"op"`
	Path    string          `json:"path,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// DataPath returns the document path holding a collection's progress.
func DataPath(collectionID string) string {
	return "collections/" + collectionID + "/data"
}

// DecodeSnapshot reads a snapshot payload. Empty reports an explicit empty value for a brand-new collection.
func DecodeSnapshot(data json.RawMessage) (p models.Progress, empty bool, err error) {
	if isNull(data) {
		return models.Progress{}, true, nil
	}
	p, err = models.ParseProgress(data)
	if err != nil {
		return nil, false, err
	}
	return p, false, nil
}

func isNull(data json.RawMessage) bool {
	data = bytes.TrimSpace(data)
	return len(data) == 0 || string(data) == "null"
}
