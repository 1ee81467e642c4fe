package main

import (
	"fmt"
	"strings"
	"time"

	st "github.com/meinside/rpi-tools/status"
)

// calculates uptime of this bot
func uptimeSince(launched time.Time) (uptime string) {
	now := time.Now()
	gap := now.Sub(launched)

	uptimeSeconds := int(gap.Seconds())
	numDays := uptimeSeconds / (60 * 60 * 24)
	numHours := (uptimeSeconds % (60 * 60 * 24)) / (60 * 60)

	return fmt.Sprintf("*%d* дн. *%d* ч.", numDays, numHours)
}

// calculates memory usage of this bot
func memoryUsage() (usage string) {
	sys, heap := st.MemoryUsage()

	return fmt.Sprintf("sys *%.1f MB*, heap *%.1f MB*", float32(sys)/1024/1024, float32(heap)/1024/1024)
}

// removes markdown characters for avoiding
// 'Bad Request: Can't parse message text: Can't find end of the entity starting at byte offset ...' errors
// from the server
func removeMarkdownChars(original, replaceWith string) string {
	removed := strings.ReplaceAll(original, "*", replaceWith)
	removed = strings.ReplaceAll(removed, "_", replaceWith)
	removed = strings.ReplaceAll(removed, "`", replaceWith)
	return removed
}

// displayName builds a human-readable name of a user:
// @username when set, then full name, then the numeric id.
func displayName(username, firstName, lastName string, userID int64) string {
	if username != "" {
		return "@" + username
	}

	name := strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
	if name != "" {
		return name
	}

	return fmt.Sprintf("ID %d", userID)
}

// accuracy returns the percentage of correct answers.
func accuracy(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}
