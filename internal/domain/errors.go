package domain

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")

	// ErrRequestFailed means the session could not produce a reply
	ErrRequestFailed = errors.New("request failed")

	// ErrMalformedReply means the reply did not have the expected shape
	ErrMalformedReply = errors.New("malformed reply")

	ErrTrackedHistoryNotFound = errors.New("tracked history not found")
	ErrNotConnected           = errors.New("session not connected")
	ErrSnapshotNotFound       = errors.New("snapshot not found")
)
