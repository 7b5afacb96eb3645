package l402

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// CondRequestPath is the caveat condition that pins a token to a
	// single request path.
	CondRequestPath = "RequestPath"

	// CondExpiresAt is the caveat condition that limits the lifetime of
	// a token to a unix timestamp in seconds.
	CondExpiresAt = "expires_at"
)

// ErrUnknownCaveat is returned when a macaroon carries a caveat no
// registered satisfier understands. The caveat interpreter is closed:
// anything we cannot evaluate rejects the token.
var ErrUnknownCaveat = errors.New("unknown caveat")

// CaveatError wraps the caveat that failed its predicate during
// verification.
type CaveatError struct {
	// Caveat is the violated caveat.
	Caveat Caveat

	// Err describes the violation.
	Err error
}

// Error implements the error interface.
func (e *CaveatError) Error() string {
	return fmt.Sprintf("caveat violated (%s): %v", e.Caveat, e.Err)
}

// Unwrap returns the underlying violation.
func (e *CaveatError) Unwrap() error {
	return e.Err
}

// VerifyContext carries the request attributes caveat predicates are
// evaluated against.
type VerifyContext struct {
	// Path is the request path.
	Path string

	// Now is the verification time.
	Now time.Time
}

// Satisfier provides a generic interface to satisfy a caveat based on its
// condition.
type Satisfier struct {
	// Condition is the condition of the caveat we'll attempt to satisfy.
	Condition string

	// SatisfyPrevious ensures a caveat is in accordance with a previous
	// one with the same condition. This is needed since caveats of the
	// same condition can be used multiple times as long as they enforce
	// more permissions than the previous.
	SatisfyPrevious func(previous, current Caveat) error

	// SatisfyFinal satisfies the final caveat of a condition. If multiple
	// caveats with the same condition exist, this will only be executed
	// once all previous caveats are also satisfied.
	SatisfyFinal func(Caveat, *VerifyContext) error
}

// NewRequestPathSatisfier implements a satisfier for the RequestPath
// condition. The caveat value must equal the request path exactly, after
// both sides are normalized to a single leading slash.
func NewRequestPathSatisfier() Satisfier {
	return Satisfier{
		Condition: CondRequestPath,
		SatisfyPrevious: func(prev, cur Caveat) error {
			// Successive path caveats can only restate the same
			// path; a different path can never be satisfied
			// together with the previous one.
			if NormalizePath(prev.Value) != NormalizePath(cur.Value) {
				return fmt.Errorf("%s caveat does not match "+
					"previous value %s", cur.Value,
					prev.Value)
			}
			return nil
		},
		SatisfyFinal: func(c Caveat, ctx *VerifyContext) error {
			if c.Op != OpEqual {
				return fmt.Errorf("unsupported operator %q "+
					"for %s", c.Op, CondRequestPath)
			}
			if NormalizePath(c.Value) != NormalizePath(ctx.Path) {
				return fmt.Errorf("path %s not authorized",
					ctx.Path)
			}
			return nil
		},
	}
}

// NewExpirySatisfier implements a satisfier for the expires_at condition.
// The verification time must be strictly below the caveat's unix timestamp.
func NewExpirySatisfier() Satisfier {
	parse := func(c Caveat) (int64, error) {
		ts, err := strconv.ParseInt(c.Value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %v",
				CondExpiresAt, c.Value, err)
		}
		return ts, nil
	}

	return Satisfier{
		Condition: CondExpiresAt,
		SatisfyPrevious: func(prev, cur Caveat) error {
			prevTs, err := parse(prev)
			if err != nil {
				return err
			}
			curTs, err := parse(cur)
			if err != nil {
				return err
			}

			// Appended caveats may only tighten the expiry, never
			// extend it.
			if curTs > prevTs {
				return fmt.Errorf("expiry %d extends "+
					"previous bound %d", curTs, prevTs)
			}
			return nil
		},
		SatisfyFinal: func(c Caveat, ctx *VerifyContext) error {
			if c.Op != OpLess {
				return fmt.Errorf("unsupported operator %q "+
					"for %s", c.Op, CondExpiresAt)
			}
			ts, err := parse(c)
			if err != nil {
				return err
			}
			if !ctx.Now.Before(time.Unix(ts, 0)) {
				return fmt.Errorf("token expired at %d", ts)
			}
			return nil
		},
	}
}

// VerifyCaveats determines whether every caveat holds for the given request
// context. The interpreter is closed world: a caveat whose condition has no
// registered satisfier fails verification.
func VerifyCaveats(caveats []Caveat, ctx *VerifyContext,
	satisfiers ...Satisfier) error {

	byCondition := make(map[string]Satisfier, len(satisfiers))
	for _, s := range satisfiers {
		byCondition[s.Condition] = s
	}

	// Walk the caveats grouped by condition, preserving their order, and
	// check the attenuation chain before the final predicate.
	grouped := make(map[string][]Caveat)
	for _, c := range caveats {
		if _, ok := byCondition[c.Condition]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCaveat,
				c.Condition)
		}
		grouped[c.Condition] = append(grouped[c.Condition], c)
	}

	for condition, group := range grouped {
		satisfier := byCondition[condition]

		for i, c := range group[1:] {
			err := satisfier.SatisfyPrevious(group[i], c)
			if err != nil {
				return &CaveatError{Caveat: c, Err: err}
			}
		}

		final := group[len(group)-1]
		if err := satisfier.SatisfyFinal(final, ctx); err != nil {
			return &CaveatError{Caveat: final, Err: err}
		}
	}

	return nil
}

// FormatUnix renders a time as the unix seconds value an expires_at caveat
// carries.
func FormatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// NormalizePath collapses any number of leading slashes into exactly one, so
// "/protected", "protected" and "//protected" all compare equal.
func NormalizePath(p string) string {
	return "/" + strings.TrimLeft(p, "/")
}
