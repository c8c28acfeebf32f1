package api

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const runIDPrefix = "run_"

var runIDPattern = regexp.MustCompile(`^run_[0-9a-f]{32}$`)

// NewRunID generates an identifier for one scoring run. It tags log lines
// and partial-cache rows written during the run.
func NewRunID() string {
	return runIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidateRunID checks whether the given string is a valid run ID
// (matches "run_" + 32 lowercase hex characters).
func ValidateRunID(id string) bool {
	return runIDPattern.MatchString(id)
}
