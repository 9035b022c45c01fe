package domain

import (
	"encoding/json"
	"time"
)

// Submission represents one guest-provided photo with an optional dedication.
// The wire format (see submissionWire) is the one the existing frontend
// already speaks; the field names date back to the original Spanish backend.
type Submission struct {
	// ID is the public identifier of the submission (a UUID string).
	ID string

	// SenderName is the display name of the guest who sent the photo.
	SenderName string

	// SenderContact is an optional phone number or chat handle. It is
	// stored for the hosts but never served or broadcast.
	SenderContact string

	// MediaURL is the serving path of the stored image, e.g. /uploads/<uuid>.jpg.
	MediaURL string

	// Caption is the dedication text. Empty is a valid caption.
	Caption string

	// CreatedAt is assigned at append time and is the sole ordering key.
	CreatedAt time.Time

	// Visible is the moderation flag. New submissions start visible.
	Visible bool
}

// submissionWire is the JSON shape served and broadcast. The frontend
// compares estado strictly against the numbers 0/1, so the flag must not
// marshal as a boolean. SenderContact deliberately has no wire field.
type submissionWire struct {
	ID         string    `json:"uid"`
	SenderName string    `json:"nombre"`
	MediaURL   string    `json:"url"`
	Caption    string    `json:"texto"`
	CreatedAt  time.Time `json:"timestamp"`
	Estado     int       `json:"estado"`
}

func (s Submission) MarshalJSON() ([]byte, error) {
	estado := 0
	if s.Visible {
		estado = 1
	}
	return json.Marshal(submissionWire{
		ID:         s.ID,
		SenderName: s.SenderName,
		MediaURL:   s.MediaURL,
		Caption:    s.Caption,
		CreatedAt:  s.CreatedAt,
		Estado:     estado,
	})
}

func (s *Submission) UnmarshalJSON(data []byte) error {
	var w submissionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Submission{
		ID:         w.ID,
		SenderName: w.SenderName,
		MediaURL:   w.MediaURL,
		Caption:    w.Caption,
		CreatedAt:  w.CreatedAt,
		Visible:    w.Estado == 1,
	}
	return nil
}

// NewSubmission is the intake payload for a submission that hasn't been
// persisted yet. MediaURL must already point at stored media; normalizing
// uploads, remote URLs and base64 payloads into a file is the intake
// layer's job.
type NewSubmission struct {
	SenderName    string `validate:"required"`
	SenderContact string
	Caption       string
	MediaURL      string `validate:"required"`
}
