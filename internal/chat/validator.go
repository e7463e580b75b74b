package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/skillswap/swap-app/internal/models"
)

const (
	MaxMessageBytes = 4096 // 4KB max payload
	MaxTextChars    = 2000 // max character count
)

// ValidateMessage checks that a chat message meets content requirements.
// Every failure wraps models.ErrInvalidInput.
func ValidateMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("chat: message text is empty: %w", models.ErrInvalidInput)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("chat: message contains invalid UTF-8: %w", models.ErrInvalidInput)
	}
	if len(text) > MaxMessageBytes {
		return fmt.Errorf("chat: message exceeds %d byte limit: %w", MaxMessageBytes, models.ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > MaxTextChars {
		return fmt.Errorf("chat: message exceeds %d character limit: %w", MaxTextChars, models.ErrInvalidInput)
	}
	return nil
}
