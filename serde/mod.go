// Package serde defines the primitives to serialize and deserialize (serde)
// the data a session exports: archived replay records and their nested
// terms, occurrences and verdicts.
//
// A message serializes itself for the format of the context it is given;
// the format engines are registered next to the message definitions so
// that a message package stays independent of the encodings.
package serde

// Message is the interface a data model implements to be serialized and
// deserialized.
type Message interface {
	// Serialize returns the bytes of the message according to the context.
	Serialize(ctx Context) ([]byte, error)
}

// Factory is the interface to implement to instantiate a data model from
// its serialized form.
type Factory interface {
	// Deserialize returns the message instantiated from the data according
	// to the context.
	Deserialize(ctx Context, data []byte) (Message, error)
}

// Format is the identifier type of a format implementation.
type Format string

const (
	// FormatJSON identifies the JSON format.
	FormatJSON Format = "JSON"
)

// FormatEngine is the interface to implement to encode and decode one kind
// of message in a given format.
type FormatEngine interface {
	// Encode returns the bytes of the message in the format of the engine.
	Encode(ctx Context, message Message) ([]byte, error)

	// Decode returns the message read from the data in the format of the
	// engine.
	Decode(ctx Context, data []byte) (Message, error)
}
