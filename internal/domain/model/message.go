package model

// Sender is the denormalized author profile embedded in every broadcast
// payload, resolved by the message store at persistence time.
type Sender struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// CanonicalMessage is a ChatEvent after durable persistence. It carries the
// permanent identifier assigned by the store and is the only form of chat
// content that is ever broadcast to clients. Immutable after creation; the
// registry only reads it to serialize outbound frames.
type CanonicalMessage struct {
	ID        string `json:"id"`
	RoomID    string `json:"roomId"`
	Content   string `json:"content"`
	Sender    Sender `json:"sender"`
	CreatedAt string `json:"createdAt"`
}
