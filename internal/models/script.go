package models

import (
	"encoding/json"
	"time"
)

// Script is the full ordered sequence of blocks for one content item.
// Blocks are opaque at this layer; the editing UI owns their shape. The
// version increments on every replace and is the basis for stale-merge
// detection.
type Script struct {
	ContentID string            `json:"content_id"`
	Version   int64             `json:"version"`
	Blocks    []json.RawMessage `json:"blocks"`
	UpdatedAt time.Time         `json:"updated_at"`
}
