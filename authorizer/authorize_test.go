package authorizer_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/authorizer"
	"github.com/vistable/vistable/kit/errors"
)

func account(role vistable.Role) vistable.Principal {
	return vistable.Principal{ID: uuid.New(), Type: vistable.PrincipalAccount, Role: role}
}

func recordOwnedBy(owner vistable.Principal, access ...vistable.AccessEntry) *vistable.DashboardPermission {
	id := owner.ID
	return &vistable.DashboardPermission{
		DashboardID: uuid.New(),
		OwnerID:     &id,
		OwnerType:   owner.Type,
		Access:      access,
	}
}

func TestAuthorizeSuperAdminShortCircuits(t *testing.T) {
	t.Parallel()

	super := account(vistable.RoleSuperAdmin)
	rec := &vistable.DashboardPermission{DashboardID: uuid.New()}

	for _, lvl := range []vistable.AccessLevel{vistable.AccessView, vistable.AccessEdit, vistable.AccessRemove} {
		require.NoError(t, authorizer.Authorize(super, rec, lvl))
	}
}

func TestAuthorizeOwnerAllowedAtEveryLevel(t *testing.T) {
	t.Parallel()

	owner := account(vistable.RoleAuthor)
	rec := recordOwnedBy(owner)

	for _, lvl := range []vistable.AccessLevel{vistable.AccessView, vistable.AccessEdit, vistable.AccessRemove} {
		require.NoError(t, authorizer.Authorize(owner, rec, lvl))
	}
}

func TestAuthorizeLevelOrdering(t *testing.T) {
	t.Parallel()

	owner := account(vistable.RoleAuthor)
	editor := account(vistable.RoleAuthor)
	rec := recordOwnedBy(owner, vistable.AccessEntry{ID: editor.ID, Type: editor.Type, Level: vistable.AccessEdit})

	require.NoError(t, authorizer.Authorize(editor, rec, vistable.AccessView))
	require.NoError(t, authorizer.Authorize(editor, rec, vistable.AccessEdit))

	err := authorizer.Authorize(editor, rec, vistable.AccessRemove)
	require.Error(t, err)
	require.Equal(t, errors.EForbidden, errors.ErrorCode(err))
	require.Contains(t, errors.ErrorMessage(err), "insufficient privileges")
}

func TestAuthorizeViewerCannotEdit(t *testing.T) {
	t.Parallel()

	owner := account(vistable.RoleAuthor)
	viewer := account(vistable.RoleReader)
	rec := recordOwnedBy(owner, vistable.AccessEntry{ID: viewer.ID, Type: viewer.Type, Level: vistable.AccessView})

	require.NoError(t, authorizer.Authorize(viewer, rec, vistable.AccessView))

	err := authorizer.Authorize(viewer, rec, vistable.AccessEdit)
	require.Error(t, err)
	require.Equal(t, errors.EForbidden, errors.ErrorCode(err))
}

func TestAuthorizeNoEntryDenied(t *testing.T) {
	t.Parallel()

	owner := account(vistable.RoleAuthor)
	stranger := account(vistable.RoleAuthor)
	// once any explicit entry exists the list is restricted, including VIEW
	rec := recordOwnedBy(owner, vistable.AccessEntry{ID: uuid.New(), Type: vistable.PrincipalAccount, Level: vistable.AccessView})

	err := authorizer.Authorize(stranger, rec, vistable.AccessView)
	require.Error(t, err)
	require.Equal(t, errors.EForbidden, errors.ErrorCode(err))
}

func TestAuthorizeOwnerlessOpenForView(t *testing.T) {
	t.Parallel()

	stranger := account(vistable.RoleReader)
	rec := &vistable.DashboardPermission{DashboardID: uuid.New()}

	require.NoError(t, authorizer.Authorize(stranger, rec, vistable.AccessView))

	err := authorizer.Authorize(stranger, rec, vistable.AccessEdit)
	require.Error(t, err)
	require.Equal(t, errors.EForbidden, errors.ErrorCode(err))
}

func TestAuthorizeAPIKeyPrincipalMatchedByType(t *testing.T) {
	t.Parallel()

	owner := account(vistable.RoleAuthor)
	keyID := uuid.New()
	rec := recordOwnedBy(owner, vistable.AccessEntry{ID: keyID, Type: vistable.PrincipalAPIKey, Level: vistable.AccessEdit})

	key := vistable.Principal{ID: keyID, Type: vistable.PrincipalAPIKey, Role: vistable.RoleAuthor}
	require.NoError(t, authorizer.Authorize(key, rec, vistable.AccessEdit))

	// same id presented as an account does not match the APIKEY entry
	impostor := vistable.Principal{ID: keyID, Type: vistable.PrincipalAccount, Role: vistable.RoleAuthor}
	require.Error(t, authorizer.Authorize(impostor, rec, vistable.AccessEdit))
}
