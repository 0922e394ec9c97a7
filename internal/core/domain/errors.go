package domain

import "errors"

var (
	ErrClientNotFound = errors.New("client not found")
	ErrClientClosed   = errors.New("client closed")
	ErrSendBufferFull = errors.New("send buffer full")
	ErrInvalidRoomID  = errors.New("invalid room id")
	ErrEmptyContent   = errors.New("empty message content")
)
