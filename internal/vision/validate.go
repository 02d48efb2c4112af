package vision

import (
	"strings"
)

// refusalPhrases are apology/refusal fragments that mark a whole response
// as unusable. Matching is case-insensitive substring. The list was
// collected from production responses that slipped into inventories as
// garbage items.
var refusalPhrases = []string{
	"i cannot",
	"i can't",
	"i'm sorry",
	"i am sorry",
	"i apologize",
	"as an ai",
	"unable to",
	"cannot identify",
	"cannot provide",
	"cannot detect",
	"provided image",
	"no visible",
	"no visual",
	"no discernible",
	"not contain any",
	"no objects",
	"entirely black",
	"completely black",
	"impossible to identify",
}

const (
	maxNameLength = 60
	maxNameWords  = 7
)

// jsonSpecials are characters that indicate a name is a fragment of
// malformed JSON rather than an object name.
const jsonSpecials = `{}[]"\`

// IsRefusal reports whether the full response text contains a refusal or
// apology phrase. Such responses are discarded wholesale.
func IsRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// ValidName reports whether a detection name passes the quality filter:
// non-empty, at most 60 characters, at most 7 words, free of JSON-special
// characters and free of refusal/error phrases.
func ValidName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if len(name) > maxNameLength {
		return false
	}
	if len(strings.Fields(name)) > maxNameWords {
		return false
	}
	if strings.ContainsAny(name, jsonSpecials) {
		return false
	}
	lower := strings.ToLower(name)
	if strings.Contains(lower, "error") {
		return false
	}
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	return true
}
