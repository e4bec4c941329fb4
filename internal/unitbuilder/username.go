package unitbuilder

import "regexp"

// userNamePattern is the validation rule placed on a container's declared
// security-context user name.
var userNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]{0,30}$`)

// ValidUserName reports whether name satisfies the unit builder's user-name
// grammar.
func ValidUserName(name string) bool {
	return userNamePattern.MatchString(name)
}
