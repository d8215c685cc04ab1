// Package chattypes defines core architectural interfaces for mychat.
package chattypes

// Service defines the interface for mychat services that provide specific functionality.
// Services are registered in a registry and initialized once at startup.
type Service interface {
	Name() string
	Initialize() error
}
