//go:build tools

// Package match_chat pins the code generators used by go:generate directives, mockgen for mocks/.
package match_chat

import (
	_ "go.uber.org/mock/mockgen"
)
