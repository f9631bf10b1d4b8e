package user

import (
	"net/mail"
	"strings"

	"github.com/keithlinneman/linnemanlabs-users/internal/xerrors"
)

// normalize trims u and checks the fields every stored user must carry.
func normalize(u User) (User, error) {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)
	if u.Name == "" {
		return User{}, xerrors.E(xerrors.KindInvalidArgument, "Name cannot be empty")
	}
	if u.Email == "" {
		return User{}, xerrors.E(xerrors.KindInvalidArgument, "Email cannot be empty")
	}
	if !validEmail(u.Email) {
		return User{}, xerrors.Ef(xerrors.KindInvalidArgument, "Email %q is not a valid address", u.Email)
	}
	return u, nil
}

// validEmail accepts a bare addr-spec, no display name or angle brackets.
func validEmail(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s && a.Name == ""
}

// apply merges p into u. The result still has to pass normalize.
func (p Patch) apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	return u
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool { return p.Name == nil && p.Email == nil }
