package comment

import "sort"

// Tally maps parent comment id -> emoji -> reaction records, oldest first.
type Tally map[string]map[string][]Comment

// ReactionCount is one emoji chip under a comment.
type ReactionCount struct {
	Emoji string
	Count int
	Mine  bool
}

// Aggregate collects emoji reactions by the comment they target. Reactions
// without a target are dropped.
func Aggregate(comments []Comment) Tally {
	tally := make(Tally)
	for _, c := range SortByCreated(comments) {
		if !c.IsReaction() || c.SourceComment == "" {
			continue
		}
		byEmoji, ok := tally[c.SourceComment]
		if !ok {
			byEmoji = make(map[string][]Comment)
			tally[c.SourceComment] = byEmoji
		}
		byEmoji[c.Content] = append(byEmoji[c.Content], c)
	}
	return tally
}

// Counts lists the emojis under parentID in order of their first reaction.
// Mine is set when userID authored one of the reactions.
func (t Tally) Counts(parentID, userID string) []ReactionCount {
	byEmoji := t[parentID]
	if len(byEmoji) == 0 {
		return nil
	}
	counts := make([]ReactionCount, 0, len(byEmoji))
	for emoji, reactions := range byEmoji {
		item := ReactionCount{Emoji: emoji, Count: len(reactions)}
		for _, reaction := range reactions {
			if reaction.IsMine(userID) {
				item.Mine = true
				break
			}
		}
		counts = append(counts, item)
	}
	sort.Slice(counts, func(i, j int) bool {
		a := byEmoji[counts[i].Emoji][0].CreatedAt
		b := byEmoji[counts[j].Emoji][0].CreatedAt
		if a.Equal(b) {
			return counts[i].Emoji < counts[j].Emoji
		}
		return a.Before(b)
	})
	return counts
}

// Find returns the reaction userID left with emoji under parentID.
func (t Tally) Find(parentID, emoji, userID string) (Comment, bool) {
	for _, reaction := range t[parentID][emoji] {
		if reaction.IsMine(userID) {
			return reaction, true
		}
	}
	return Comment{}, false
}
