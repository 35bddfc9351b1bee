// Package ingest feeds documents from a Kafka topic into an index.
package ingest

import (
	"encoding/json"
	"fmt"
)

// Message operations.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// Message is the JSON value of one Kafka record.
type Message struct {
	Op   string `json:"op"`
	ID   string `json:"id"`
	Text string `json:"text,omitempty"`
}

// DecodeJSON unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}

// Decode parses and validates a record value. An empty op means upsert.
func Decode(value []byte) (Message, error) {
	m, err := DecodeJSON[Message](value)
	if err != nil {
		return Message{}, err
	}
	if m.Op == "" {
		m.Op = OpUpsert
	}
	if m.Op != OpUpsert && m.Op != OpDelete {
		return Message{}, fmt.Errorf("unknown op %q", m.Op)
	}
	if m.ID == "" {
		return Message{}, fmt.Errorf("message has no id")
	}
	return m, nil
}

// resolve keeps the last message per id, in first-seen order, and splits
// the result into upserts and deletes. The two sets never share an id, so
// applying them in either order gives the same index.
func resolve(msgs []Message) (upserts []Message, deletes []string) {
	last := make(map[string]int, len(msgs))
	order := make([]string, 0, len(msgs))
	for i, m := range msgs {
		if _, seen := last[m.ID]; !seen {
			order = append(order, m.ID)
		}
		last[m.ID] = i
	}
	for _, id := range order {
		m := msgs[last[id]]
		if m.Op == OpDelete {
			deletes = append(deletes, id)
		} else {
			upserts = append(upserts, m)
		}
	}
	return upserts, deletes
}
