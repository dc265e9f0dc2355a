package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "viewer read", role: RoleViewer, action: ActionRead, allow: true},
		{name: "viewer comment", role: RoleViewer, action: ActionComment, allow: false},
		{name: "commenter read", role: RoleCommenter, action: ActionRead, allow: true},
		{name: "commenter comment", role: RoleCommenter, action: ActionComment, allow: true},
		{name: "commenter moderate", role: RoleCommenter, action: ActionModerate, allow: false},
		{name: "moderator moderate", role: RoleModerator, action: ActionModerate, allow: true},
		{name: "moderator admin", role: RoleModerator, action: ActionAdmin, allow: false},
		{name: "admin admin", role: RoleAdmin, action: ActionAdmin, allow: true},
		{name: "unknown role", role: Role("guest"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestCanChange(t *testing.T) {
	cases := []struct {
		name     string
		role     Role
		isAuthor bool
		allow    bool
	}{
		{name: "author commenter", role: RoleCommenter, isAuthor: true, allow: true},
		{name: "other commenter", role: RoleCommenter, isAuthor: false, allow: false},
		{name: "author demoted to viewer", role: RoleViewer, isAuthor: true, allow: false},
		{name: "moderator", role: RoleModerator, isAuthor: false, allow: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanChange(tc.role, tc.isAuthor); got != tc.allow {
				t.Fatalf("CanChange(%q, %v) = %v, want %v", tc.role, tc.isAuthor, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("moderator") != RoleModerator || Normalize("root") != RoleViewer {
		t.Fatal("unexpected normalization")
	}
}
