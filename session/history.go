package session

import "time"

// TruncateHistory truncates the conversation history based on token and message limits.
// The message limit is applied first, then the token limit, dropping the oldest
// messages. Non-positive limits are ignored.
func TruncateHistory(history []Message, tokenLimit, messageLimit int) []Message {
	if len(history) == 0 {
		return history
	}

	if messageLimit > 0 && len(history) > messageLimit {
		history = history[len(history)-messageLimit:]
	}
	if tokenLimit <= 0 {
		return history
	}

	total := CountTokens(history)
	for total > tokenLimit && len(history) > 0 {
		total -= history[0].TokenCount
		history = history[1:]
	}

	return history
}

// AppendMessage stamps msg with its estimated token count, and with now when
// it carries no timestamp, then appends it to history.
func AppendMessage(history []Message, msg Message, now time.Time) []Message {
	msg.TokenCount = EstimateTokens(msg.Content)
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	return append(history, msg)
}
