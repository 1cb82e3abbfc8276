package mediaproxy

import (
	"path"
	"strings"

	"github.com/suteetoe/scouting-service/pkg/apperror"
)

// ErrForbiddenPath is returned for object paths outside the tenant's
// namespace.
var ErrForbiddenPath = &apperror.Error{Code: apperror.EForbidden, Reason: "forbidden", Msg: "path is outside the tenant namespace"}

// ValidatePath checks that raw names an object under "<tenantID>/" and
// returns its cleaned form. It runs before any cache or storage access.
func ValidatePath(tenantID, raw string) (string, error) {
	if tenantID == "" || raw == "" || strings.ContainsAny(tenantID, "/\\") {
		return "", ErrForbiddenPath
	}
	if strings.HasPrefix(raw, "/") || strings.Contains(raw, "\\") {
		return "", ErrForbiddenPath
	}
	for _, seg := range strings.Split(raw, "/") {
		if seg == ".." {
			return "", ErrForbiddenPath
		}
	}

	clean := path.Clean(raw)
	if !strings.HasPrefix(clean, tenantID+"/") || clean == tenantID+"/" {
		return "", ErrForbiddenPath
	}
	return clean, nil
}
