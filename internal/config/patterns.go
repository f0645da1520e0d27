package config

import (
	"fmt"
	"regexp"

	"github.com/hashicorp/go-multierror"
)

// CompilePatterns compiles a list of regular expressions.
// Every pattern is tried so that a single call reports all mistakes;
// the returned error wraps ErrInvalidPattern once per bad pattern.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	var result error
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%w %q: %w", ErrInvalidPattern, p, err))
			continue
		}
		compiled = append(compiled, re)
	}
	if result != nil {
		return nil, result
	}
	return compiled, nil
}
