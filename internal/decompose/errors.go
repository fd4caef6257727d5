package decompose

import "errors"

var (
	errUpstreamTimeout = errors.New("upstream timeout")
	errUpstreamError   = errors.New("upstream error")
	errParseError      = errors.New("parse error")
)
