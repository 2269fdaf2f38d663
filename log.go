package websocket

// Logging call sites live at state transitions and wire events, never on
// the per-byte path, following the metrics package's sparing use of
// zerolog in tzrikka-timpani: a logger is a parameter threaded through,
// not a global.

func logStateTransition(o *DialOptions, from, to connState) {
	o.log().Debug().
		Stringer("from", from).
		Stringer("to", to).
		Msg("websocket: state transition")
}

func logProtocolError(o *DialOptions, err *ProtocolError) {
	o.log().Debug().
		Uint16("close_code", uint16(err.Code)).
		Str("reason", err.Reason).
		Msg("websocket: protocol error")
}

func logCloseHandshake(o *DialOptions, code CloseCode, reason string, local bool) {
	o.log().Trace().
		Uint16("close_code", uint16(code)).
		Str("reason", reason).
		Bool("local", local).
		Msg("websocket: close frame")
}
