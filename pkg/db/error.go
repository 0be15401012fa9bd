package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Substrings the drivers in use put in their duplicate-key errors: postgres
// 23505, mysql 1062, sqlite 2067. Matched when the dialector does not
// translate to gorm.ErrDuplicatedKey.
var duplicateKeyMarkers = []string{
	"duplicate key value violates unique constraint",
	"Error 1062",
	"UNIQUE constraint failed",
}

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()
	for _, marker := range duplicateKeyMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
