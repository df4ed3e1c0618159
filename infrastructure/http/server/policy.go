package server

import (
	"chat-relay/errors"
	stderrors "errors"
)

// Action tells the session what to do with a failed send.
type Action int

const (
	// LogOnly drops the message silently for the client.
	LogOnly Action = iota
	// ReplyError sends an error frame to the originating client only.
	ReplyError
)

func (a Action) String() string {
	switch a {
	case ReplyError:
		return "reply_error"
	default:
		return "log_only"
	}
}

type rule struct {
	target error
	action Action
}

// pipelinePolicy maps send failures to the session's reaction.
// The first matching rule wins; anything unmatched is only logged.
var pipelinePolicy = []rule{
	{errors.ErrReceiverNotFound, ReplyError},
	{errors.ErrParse, LogOnly},
	{errors.ErrDecode, LogOnly},
	{errors.ErrPersistence, LogOnly},
}

func Classify(err error) Action {
	for _, r := range pipelinePolicy {
		if stderrors.Is(err, r.target) {
			return r.action
		}
	}
	return LogOnly
}
