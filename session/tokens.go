package session

// EstimateTokens approximates how many model tokens a chat message costs.
// AppendMessage stamps the result on every stored message so that
// RecentMessages can cut history to a token budget without a tokenizer.
// Latin text runs about four characters per token; other scripts and
// emoji count as a token each.
func EstimateTokens(text string) int {
	weight := 0
	for _, r := range text {
		if r <= 127 {
			weight++
		} else {
			weight += 4
		}
	}
	return (weight + 3) / 4
}

// CountTokens sums the estimated token counts of messages.
func CountTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += m.TokenCount
	}
	return total
}
