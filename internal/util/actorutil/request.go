package actorutil

import (
	"github.com/berfenger/growatt2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
)

type forRequest struct {
	req domain.ActorRequest
}

type ExtendedRequest interface {
	Respond(ctx actor.Context, resp domain.ActorResponse)
	ReplyTo(ctx actor.Context) *actor.PID
}

func ForRequest(r domain.ActorRequest) ExtendedRequest {
	return forRequest{req: r}
}

func (r forRequest) Respond(ctx actor.Context, resp domain.ActorResponse) {
	if replyTo := r.req.ReplyTo(); replyTo != nil {
		ctx.Send(replyTo, resp)
	} else {
		ctx.Respond(resp)
	}
}

func (r forRequest) ReplyTo(ctx actor.Context) *actor.PID {
	if replyTo := r.req.ReplyTo(); replyTo != nil {
		return replyTo
	}
	return ctx.Sender()
}

// RespondIfWaiting answers only when the request carries a reply address or a sender.
func RespondIfWaiting(ctx actor.Context, req domain.ActorRequest, resp domain.ActorResponse) {
	if replyTo := ForRequest(req).ReplyTo(ctx); replyTo != nil {
		ctx.Send(replyTo, resp)
	}
}
