// Package handlers contains the HTTP handlers for the gateway.
package handlers

// Handlers bundles all HTTP handlers for route registration
type Handlers struct {
	Chat   *ChatHandler
	KB     *KBHandler
	Health *HealthHandler
}

// NewHandlers creates the handler bundle
func NewHandlers(chat *ChatHandler, kb *KBHandler, health *HealthHandler) *Handlers {
	return &Handlers{
		Chat:   chat,
		KB:     kb,
		Health: health,
	}
}
