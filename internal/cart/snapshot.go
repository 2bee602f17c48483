package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	perrors "github.com/abgdnv/storefront/internal/errors"
)

// SnapshotVersion is the schema version written by EncodeSnapshot.
const SnapshotVersion = 1

type snapshot struct {
	Version int        `json:"version"`
	SavedAt time.Time  `json:"savedAt"`
	Items   []LineItem `json:"items"`
}

// EncodeSnapshot serializes items into a versioned, self-contained document.
func EncodeSnapshot(items []LineItem, savedAt time.Time) ([]byte, error) {
	if items == nil {
		items = []LineItem{}
	}
	data, err := json.Marshal(snapshot{Version: SnapshotVersion, SavedAt: savedAt.UTC(), Items: items})
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a snapshot written by EncodeSnapshot. A bare JSON array of line items
// is accepted as the legacy unversioned format. Empty input decodes to an empty cart.
// The result is not sanitized; see Sanitize.
func DecodeSnapshot(data []byte) ([]LineItem, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] == '[' {
		var items []LineItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to decode legacy cart snapshot: %w", err)
		}
		return items, nil
	}
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode cart snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("version %d: %w", s.Version, perrors.ErrUnsupportedSnapshot)
	}
	return s.Items, nil
}

// Sanitize restores the line item invariants on untrusted input: items without an id, with a
// non-positive quantity or without stock are dropped, duplicate ids are merged into the first
// occurrence and quantities are clamped to stock.
func Sanitize(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		if it.Product.ID == "" || it.Quantity < 1 || it.Product.Stock < 1 {
			continue
		}
		if i, ok := index[it.Product.ID]; ok {
			out[i].Quantity += min(it.Quantity, out[i].Product.Stock-out[i].Quantity)
			continue
		}
		it.Quantity = min(it.Quantity, it.Product.Stock)
		index[it.Product.ID] = len(out)
		out = append(out, it)
	}
	return out
}
