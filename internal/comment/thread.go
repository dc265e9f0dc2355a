package comment

import "sort"

// Thread is a root comment with its direct replies. Comment is nil when the
// root was deleted but replies survive.
type Thread struct {
	ID      string
	Comment *Comment
	Replies []Comment
}

func (t Thread) Deleted() bool {
	return t.Comment == nil
}

// Len counts the root, when present, plus its replies.
func (t Thread) Len() int {
	if t.Comment == nil {
		return len(t.Replies)
	}
	return len(t.Replies) + 1
}

// Assemble groups non-reaction records into threads keyed by root id.
// Threads come out in order of first encounter over the time-ordered input.
func Assemble(comments []Comment) []Thread {
	ordered := SortByCreated(comments)

	index := make(map[string]int, len(ordered))
	threads := make([]Thread, 0)
	for _, c := range ordered {
		if c.IsReaction() {
			continue
		}
		root := c.Root()
		pos, ok := index[root]
		if !ok {
			pos = len(threads)
			index[root] = pos
			threads = append(threads, Thread{ID: root, Replies: []Comment{}})
		}
		if c.ID == root {
			item := c
			threads[pos].Comment = &item
			continue
		}
		threads[pos].Replies = append(threads[pos].Replies, c)
	}
	return threads
}

// SortByCreated returns the records in ascending creation order. Ties keep
// their input order. Already ordered input is returned as is.
func SortByCreated(comments []Comment) []Comment {
	if sort.SliceIsSorted(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	}) {
		return comments
	}
	ordered := make([]Comment, len(comments))
	copy(ordered, comments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	return ordered
}
