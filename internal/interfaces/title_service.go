package interfaces

import "context"

// TitleService generates and persists chat session titles
type TitleService interface {
	// GenerateTitle builds a title from the session's first user message
	// using the title prompt current at call time, stores it on the
	// session and returns it
	GenerateTitle(ctx context.Context, identity *Identity, sessionID string) (string, error)

	// GenerateTitleForText titles the given text directly without reading
	// or updating any session
	GenerateTitleForText(ctx context.Context, text string) (string, error)
}
