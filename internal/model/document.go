package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DocumentKey is the composite identity of a source document. A single
// message can carry several documents, and the same document name can recur
// under a new message, so all three parts are required.
type DocumentKey struct {
	MessageID string `json:"message_id"`
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
}

// String returns the opaque key recorded by the deduplicator.
func (k DocumentKey) String() string {
	return k.MessageID + "-" + k.Timestamp + "-" + k.Name
}

// Validate checks that every part of the key is present.
func (k DocumentKey) Validate() error {
	if strings.TrimSpace(k.MessageID) == "" {
		return eris.New("document key: message id is required")
	}
	if strings.TrimSpace(k.Timestamp) == "" {
		return eris.New("document key: timestamp is required")
	}
	if strings.TrimSpace(k.Name) == "" {
		return eris.New("document key: name is required")
	}
	return nil
}

// Document is a parsed source document ready for the pipeline.
type Document struct {
	Key        DocumentKey `json:"key"`
	Path       string      `json:"path,omitempty"`
	PickupDate time.Time   `json:"pickup_date"`
	Items      []LineItem  `json:"items"`
}
