package chat

// ToggleReaction applies user's emoji to reactions and returns the new list.
// A user holds at most one reaction: the same emoji again removes it, a
// different emoji replaces it in place.
func ToggleReaction(reactions []Reaction, user, emoji string) []Reaction {
	out := make([]Reaction, 0, len(reactions)+1)
	seen := false
	for _, r := range reactions {
		if r.User != user {
			out = append(out, r)
			continue
		}
		if seen {
			continue
		}
		seen = true
		if r.Emoji != emoji {
			out = append(out, Reaction{User: user, Emoji: emoji})
		}
	}
	if !seen {
		out = append(out, Reaction{User: user, Emoji: emoji})
	}
	return out
}
