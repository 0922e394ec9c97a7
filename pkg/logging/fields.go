package logging

import "log/slog"

// Domain identifiers

func Room(id string) slog.Attr {
	return slog.String("room_id", id)
}

func Client(id string) slog.Attr {
	return slog.String("client_id", id)
}

func Event(typ string) slog.Attr {
	return slog.String("event", typ)
}

func Gateway(id string) slog.Attr {
	return slog.String("gateway_id", id)
}

// Request / tracing

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func TraceID(id string) slog.Attr {
	return slog.String("trace_id", id)
}

// Error handling

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
