// internal/llmclient/errors.go
package llmclient

import "errors"

var (
	// ErrTransport covers network failures, non-2xx statuses and missing
	// credentials.
	ErrTransport = errors.New("generateContent transport failure")
	// ErrProtocol means a response body arrived but could not be decoded.
	ErrProtocol = errors.New("undecodable generateContent response")
)
