package services

import (
	"fmt"
	"strings"
)

const maxErrorMessageLen = 1000

func stringPtr(value string) *string { return &value }

func intPtr(value int) *int { return &value }

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func truncateMessage(msg string) string {
	if len(msg) > maxErrorMessageLen {
		return fmt.Sprintf("%s...", msg[:maxErrorMessageLen-3])
	}
	return msg
}
