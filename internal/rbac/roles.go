package rbac

// Role names. Keep these stable; they are part of issued tokens.
const (
	// RoleAdmin has full access to the admin API, including the
	// blocklist and political data management.
	RoleAdmin = "admin"

	// RoleCampaigner can create and edit campaigns.
	RoleCampaigner = "campaigner"

	// RoleReviewer has read-only access to campaigns and statistics.
	RoleReviewer = "reviewer"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
