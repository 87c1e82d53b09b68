package utils

import (
	"fmt"
	"regexp"
)

// CompileRegexPattern compiles a single configured pattern.
// An empty pattern is a configuration error, not a match-everything.
func CompileRegexPattern(name, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, WrapErrorf(ErrConfigValidation, "%s is empty", name)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s ('%s'): %w", ErrConfigValidation, name, pattern, err)
	}
	return re, nil
}
