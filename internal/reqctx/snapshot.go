// Package reqctx carries the request-scoped facts (sales channel, locale)
// that survive the hop across the work queue. Producer and consumer may be
// different processes, so the snapshot is a plain serializable value, never a
// live reference into the producing request.
package reqctx

import (
	"encoding/json"

	"github.com/google/uuid"
)

type Snapshot struct {
	ChannelID string `json:"channel_id"`
	Locale    string `json:"locale"`
	RequestID string `json:"request_id,omitempty"`
}

// Capture freezes the current request's scoping facts. A fresh request id is
// assigned when the caller has none, so queued work stays traceable in logs.
func Capture(channelID, locale, requestID string) Snapshot {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return Snapshot{ChannelID: channelID, Locale: locale, RequestID: requestID}
}

// Serialize renders the snapshot for queue transport.
func (s Snapshot) Serialize() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Restore rebuilds a snapshot on the consuming side.
func Restore(data string) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}
