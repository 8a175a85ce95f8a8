// Package domain contains entity without logic, just meta-data
package domain

import (
	"github.com/google/uuid"
)

// DefaultTrackID tags frames that arrive without a track id.
const DefaultTrackID TrackID = "default"

type (
	TrackID   string
	SessionID string
	RequestID string
)

// NewSessionID is a tiny helper to avoid ad-hoc uuid calls in adapters.
func NewSessionID() SessionID { return SessionID(uuid.NewString()) }

func NewRequestID() RequestID { return RequestID(uuid.NewString()) }

func NewTrackID() TrackID { return TrackID(uuid.NewString()) }
