package http

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"

	"challenge-tracker/internal/store"
)

const (
	joinCodeLength   = 4
	joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	joinCodeAttempts = 10
)

// newJoinCode generates a short uppercase code that no other team in the
// challenge already uses. Codes are compared case-insensitively by the store.
func newJoinCode(ctx context.Context, teams store.TeamStore, challengeID uuid.UUID) (string, error) {
	for attempt := 0; attempt < joinCodeAttempts; attempt++ {
		code, err := randomCode(joinCodeLength)
		if err != nil {
			return "", err
		}
		existing, err := teams.GetTeamByJoinCode(ctx, challengeID, code)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not find a free join code after %d attempts", joinCodeAttempts)
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating join code: %w", err)
	}
	for i, b := range buf {
		buf[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
	}
	return string(buf), nil
}
