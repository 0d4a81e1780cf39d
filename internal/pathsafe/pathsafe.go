// Package pathsafe resolves (type, id) pairs to file paths under a data
// root and validates ids against path traversal before any path is ever
// composed (spec §4.2).
package pathsafe

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shirokuma-go/kb/internal/kberrors"
	"github.com/shirokuma-go/kb/internal/kbtypes"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateID rejects any id that could escape the data root or confuse a
// filename, per spec §4.2. It is applied to every id before any path is
// composed from it, regardless of type.
func ValidateID(id string) error {
	if id == "" {
		return kberrors.NewInvalidRequest("id must not be empty")
	}
	if id == "." || id == ".." {
		return kberrors.NewInvalidRequest("invalid id %q", id)
	}
	if strings.Contains(id, "..") ||
		strings.ContainsAny(id, "/\\%") ||
		strings.ContainsRune(id, 0) {
		return kberrors.NewInvalidRequest("invalid id %q: contains unsafe characters", id)
	}
	if filepath.IsAbs(id) {
		return kberrors.NewInvalidRequest("invalid id %q: must not be absolute", id)
	}
	if !idPattern.MatchString(id) {
		return kberrors.NewInvalidRequest("invalid id %q: must match %s", id, idPattern.String())
	}
	return nil
}

// ValidateTypeName rejects a type name that isn't a safe path component.
// Type names are additionally checked against kbtypes.TypeNamePattern by
// the type registry for creation; this check only guards path safety.
func ValidateTypeName(name string) error {
	if name == "" {
		return kberrors.NewInvalidRequest("type must not be empty")
	}
	if strings.ContainsAny(name, "/\\%") || strings.Contains(name, "..") {
		return kberrors.NewInvalidRequest("invalid type %q", name)
	}
	return nil
}

// sessionIDPattern matches the timestamp-based session id format
// YYYY-MM-DD-HH.MM.SS.mmm (spec §4.6.6, §6).
var sessionIDPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})-\d{2}\.\d{2}\.\d{2}\.\d{3}$`)

// dailyIDPattern matches the daily id format YYYY-MM-DD.
var dailyIDPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// SessionDate extracts the YYYY-MM-DD date prefix from a session id.
func SessionDate(id string) (string, error) {
	m := sessionIDPattern.FindStringSubmatch(id)
	if m == nil {
		return "", kberrors.NewInvalidRequest("malformed session id %q", id)
	}
	return m[1], nil
}

// ValidSessionID reports whether id matches the session id format.
func ValidSessionID(id string) bool { return sessionIDPattern.MatchString(id) }

// ValidDailyID reports whether id matches the daily id format.
func ValidDailyID(id string) bool { return dailyIDPattern.MatchString(id) }

// Resolve computes the on-disk path for (itemType, id) under dataRoot,
// per spec §4.2 and §6. It validates id first and never composes a path
// from an unvalidated id.
func Resolve(dataRoot, itemType, id string) (string, error) {
	if err := ValidateTypeName(itemType); err != nil {
		return "", err
	}
	if err := ValidateID(id); err != nil {
		return "", err
	}

	switch itemType {
	case kbtypes.TypeSessions:
		date, err := SessionDate(id)
		if err != nil {
			return "", err
		}
		return filepath.Join(dataRoot, "sessions", date, fmt.Sprintf("sessions-%s.md", id)), nil
	case kbtypes.TypeDailies:
		if !ValidDailyID(id) {
			return "", kberrors.NewInvalidRequest("malformed daily id %q", id)
		}
		return filepath.Join(dataRoot, "sessions", id, fmt.Sprintf("dailies-%s.md", id)), nil
	default:
		return filepath.Join(dataRoot, itemType, fmt.Sprintf("%s-%s.md", itemType, id)), nil
	}
}

// TypeDir returns the directory under dataRoot that holds files for
// itemType, used by the type registry (existence check for delete) and
// the rebuild engine (directory scan).
func TypeDir(dataRoot, itemType string) (string, error) {
	if err := ValidateTypeName(itemType); err != nil {
		return "", err
	}
	if itemType == kbtypes.TypeSessions || itemType == kbtypes.TypeDailies {
		return filepath.Join(dataRoot, "sessions"), nil
	}
	return filepath.Join(dataRoot, itemType), nil
}
