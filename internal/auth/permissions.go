package auth

const (
	PermUserRead   = "USER_READ"
	PermUserWrite  = "USER_WRITE"
	PermUserDelete = "USER_DELETE"

	PermRoleRead   = "ROLE_READ"
	PermRoleWrite  = "ROLE_WRITE"
	PermRoleDelete = "ROLE_DELETE"

	PermPermissionRead   = "PERMISSION_READ"
	PermPermissionWrite  = "PERMISSION_WRITE"
	PermPermissionDelete = "PERMISSION_DELETE"
)

// DefaultRoleName is assigned to registrations that name no roles.
const DefaultRoleName = "USER"

var BuiltinPermissions = []Permission{
	{Name: PermUserRead, Description: "Read user details"},
	{Name: PermUserWrite, Description: "Modify users"},
	{Name: PermUserDelete, Description: "Delete users"},
	{Name: PermRoleRead, Description: "Read roles"},
	{Name: PermRoleWrite, Description: "Modify roles"},
	{Name: PermRoleDelete, Description: "Delete roles"},
	{Name: PermPermissionRead, Description: "Read permissions"},
	{Name: PermPermissionWrite, Description: "Modify permissions"},
	{Name: PermPermissionDelete, Description: "Delete permissions"},
}
