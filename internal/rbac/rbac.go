package rbac

type Role string
type Action string

const (
	RoleViewer    Role = "viewer"
	RoleCommenter Role = "commenter"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

const (
	ActionRead    Action = "read"
	ActionComment Action = "comment"
	// ActionModerate allows editing and deleting other people's comments.
	ActionModerate Action = "moderate"
	ActionAdmin    Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleModerator:
		return action == ActionRead || action == ActionComment || action == ActionModerate
	case RoleCommenter:
		return action == ActionRead || action == ActionComment
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

// CanChange reports whether role may edit or delete a comment. Authors may
// always change their own comments as long as they can still comment.
func CanChange(role Role, isAuthor bool) bool {
	if isAuthor && Can(role, ActionComment) {
		return true
	}
	return Can(role, ActionModerate)
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleCommenter, RoleModerator, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
