package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/asaskevich/govalidator"
)

// Settings is the recognized storage configuration surface.
type Settings struct {
	Provider string
	Endpoint string
	APIKey   string
	Retries  int
	Timeout  time.Duration
}

// New selects and wires a provider from settings, wrapped in the retry
// policy. Invalid provider or endpoint values fail here so a misconfigured
// deployment dies at startup, not on the first participant's submission.
func New(settings Settings, logger *slog.Logger, metrics *Metrics) (Client, error) {
	provider, err := ParseProvider(settings.Provider)
	if err != nil {
		return nil, err
	}

	var inner Client
	switch provider {
	case ProviderMemory:
		inner = NewMemoryClient()
	case ProviderIPFS:
		if !govalidator.IsURL(settings.Endpoint) {
			return nil, fmt.Errorf("storage endpoint %q is not a valid URL", settings.Endpoint)
		}
		inner = NewIPFSClient(settings.Endpoint, settings.APIKey, settings.Timeout)
	}

	return NewRetrying(inner, settings.Retries, defaultBaseDelay, nil, logger, metrics), nil
}
