package middleware

import (
	"errors"
	"unicode/utf8"
)

// ValidateMessageContent validates an incoming chat message.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("message cannot be empty")
	}
	if len(content) > 100000 { // ~100KB limit
		return errors.New("message exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}

// ValidateOwnerID validates a conversation owner identifier.
func ValidateOwnerID(id string) error {
	if len(id) == 0 {
		return errors.New("owner ID cannot be empty")
	}
	if len(id) > 64 {
		return errors.New("owner ID exceeds maximum length")
	}
	return nil
}

// ValidateTranscript validates a call transcript for extraction.
func ValidateTranscript(transcript string) error {
	if len(transcript) == 0 {
		return errors.New("transcript cannot be empty")
	}
	if len(transcript) > 500000 { // ~500KB limit
		return errors.New("transcript exceeds maximum length")
	}
	if !utf8.ValidString(transcript) {
		return errors.New("transcript must be valid UTF-8")
	}
	return nil
}
