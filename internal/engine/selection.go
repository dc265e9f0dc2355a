package engine

import "chronicle/discuss/internal/comment"

// editing is the comment being edited together with the mentions its body
// carried when editing began.
type editing struct {
	target   comment.Comment
	mentions []string
}

// selection holds the two independent focus axes. Each axis keeps at most
// one value; selecting again silently replaces the previous one.
type selection struct {
	edit    *editing
	replyTo *comment.Comment
}

// Selection is a read-only copy of the focus state.
type Selection struct {
	EditingID string
	// ReplyTargetID is the comment the user picked, ReplyRootID the thread
	// the reply will be attached to.
	ReplyTargetID string
	ReplyRootID   string
}

func (s selection) view() Selection {
	var out Selection
	if s.edit != nil {
		out.EditingID = s.edit.target.ID
	}
	if s.replyTo != nil {
		out.ReplyTargetID = s.replyTo.ID
		out.ReplyRootID = s.replyTo.Root()
	}
	return out
}

func (s Selection) Replying() bool {
	return s.ReplyTargetID != ""
}

func (s Selection) Editing() bool {
	return s.EditingID != ""
}
