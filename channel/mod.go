// Package channel implements the message-passing substrate of a session
// using in-memory queues, one per declared channel.
//
// A private channel queues its messages and a receive consumes the oldest
// message matching the receive pattern; the attacker neither sees nor
// forges private traffic. A public channel belongs to the attacker:
// honest sends enter a transcript and the attacker knowledge, and a
// receive on a public channel is always fed an attacker-chosen term, never
// a queued one.
//
// Documentation Last Review: 14.02.2023
//
package channel

import (
	"github.com/sbaloglu/proverif-codes/term"
)

// Broadcast is one message that went over a public channel, either sent by
// an honest process or injected by the attacker for a receive.
type Broadcast struct {
	Channel  string
	Message  term.Term
	Injected bool
}
