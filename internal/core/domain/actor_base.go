package domain

import (
	"github.com/asynkron/protoactor-go/actor"
)

// ActorRequest is implemented by every request message. A nil ReplyTo means the
// response goes to the sender.
type ActorRequest interface {
	ReplyTo() *actor.PID
}

type ActorRequestMixIn struct {
	ReplyToPID *actor.PID
}

func (r ActorRequestMixIn) ReplyTo() *actor.PID {
	return r.ReplyToPID
}

// ActorResponse carries the failure of a request, if any.
type ActorResponse interface {
	Err() error
}

type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) Err() error {
	return r.ResponseError
}
