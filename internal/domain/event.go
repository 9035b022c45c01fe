package domain

// EventType discriminates the two message kinds pushed to display clients.
type EventType string

const (
	// EventNewImage carries a single freshly-appended submission.
	EventNewImage EventType = "NEW_IMAGE"

	// EventUpdateImages carries the entire current visible set. Clients
	// must treat it as a total overwrite of their local view, not a merge.
	EventUpdateImages EventType = "UPDATE_IMAGES"
)

// Event is the envelope broadcast to every connected display client.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// NewImageEvent builds the incremental event published after an append.
func NewImageEvent(sub Submission) Event {
	return Event{Type: EventNewImage, Data: sub}
}

// UpdateImagesEvent builds the full-set event published after a moderation
// action. The payload order is the canonical display order.
func UpdateImagesEvent(visible []Submission) Event {
	if visible == nil {
		visible = []Submission{}
	}
	return Event{Type: EventUpdateImages, Data: visible}
}
