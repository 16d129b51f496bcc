package notify

import "errors"

var (
	ErrClosed  = errors.New("notify: bus closed")
	ErrWebhook = errors.New("notify: webhook rejected post")
)
