// Package fanout turns a notification into provider calls: collect the
// audience's tokens, split them by provider, dispatch in batches and record
// the outcome.
package fanout

import (
	"strings"

	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

// Collection is the deduplicated audience of one notification.
type Collection struct {
	// Tokens in first-seen order.
	Tokens []string
	// Owners maps each token to the first user seen holding it.
	Owners map[string]string
}

// CollectTokens extracts the unique device tokens from users. When
// creatorUserID is set, the creator's token is left out entirely, even if
// other records carry the same value.
func CollectTokens(users []push.UserRecord, creatorUserID string) Collection {
	excluded := ""
	if creatorUserID != "" {
		for _, u := range users {
			if u.ID == creatorUserID {
				excluded = strings.TrimSpace(u.PushToken)
				break
			}
		}
	}

	out := Collection{
		Tokens: make([]string, 0, len(users)),
		Owners: make(map[string]string, len(users)),
	}
	for _, u := range users {
		token := strings.TrimSpace(u.PushToken)
		if token == "" || token == excluded {
			continue
		}
		if _, seen := out.Owners[token]; seen {
			continue
		}
		out.Owners[token] = u.ID
		out.Tokens = append(out.Tokens, token)
	}
	return out
}

// Dedupe drops empty and repeated tokens, keeping first-seen order.
func Dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
