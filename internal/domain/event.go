package domain

// EventKind tags the events a session can deliver
type EventKind string

const (
	KindReactionAdded   EventKind = "reaction_added"
	KindReactionRemoved EventKind = "reaction_removed"
	KindMessagePosted   EventKind = "message"
)

// Event is one of ReactionAdded, ReactionRemoved or MessagePosted
type Event interface {
	Kind() EventKind
}

// ReactionAdded is delivered when a user adds an emoji reaction
type ReactionAdded struct {
	Emoji         string
	User          string
	ChannelID     string
	ItemTimestamp string
}

func (ReactionAdded) Kind() EventKind { return KindReactionAdded }

// ReactionRemoved is delivered when a user removes an emoji reaction
type ReactionRemoved struct {
	Emoji         string
	User          string
	ChannelID     string
	ItemTimestamp string
}

func (ReactionRemoved) Kind() EventKind { return KindReactionRemoved }

// MessagePosted is delivered when a regular message is posted
type MessagePosted struct {
	Message *Message
}

func (MessagePosted) Kind() EventKind { return KindMessagePosted }
