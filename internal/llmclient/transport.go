// internal/llmclient/transport.go
package llmclient

import "context"

// Transport sends one generateContent request. The API key is passed per call
// so a key rotated mid-task takes effect on the next request.
//
// Implementations wrap failures in ErrTransport or ErrProtocol. A response with
// zero candidates is not an error at this layer.
type Transport interface {
	Generate(ctx context.Context, apiKey string, req *GenerateRequest) (*GenerateResponse, error)
}
