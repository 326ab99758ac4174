/*Package perms implements namespace scoped permissions.

A namespace is a dot-delimited hierarchical path identifying a resource or a
class of resources, for example

	ixdir.organization.3.network.7.poc_set.users

A rule grants a bitmask of permission flags over a namespace. The rule covers
the namespace itself and everything below it. A segment can be the wildcard
"*", which matches exactly one arbitrary segment.

A set of rules is resolved against a concrete path by picking the most
specific matching rule: rules with more segments beat rules with fewer
segments, and at equal length rules with more literal segments beat rules
with more wildcards.
*/
package perms

import (
	"fmt"
	"strings"
)

// Flag is a bitmask of permissions granted over a namespace.
type Flag int

// the permission flags
const (
	PermRead   Flag = 0x01
	PermUpdate Flag = 0x02
	PermCreate Flag = 0x04
	PermDelete Flag = 0x08

	// PermCRUD grants everything
	PermCRUD Flag = PermRead | PermCreate | PermUpdate | PermDelete

	// PermDenied grants nothing
	PermDenied Flag = 0
)

// Has returns true if f contains every bit of want.
func (f Flag) Has(want Flag) bool {
	return f&want == want
}

// String returns a compact "crud" style representation, useful in logs.
func (f Flag) String() string {
	if f == PermDenied {
		return "-"
	}
	var b strings.Builder
	if f.Has(PermCreate) {
		b.WriteByte('c')
	}
	if f.Has(PermRead) {
		b.WriteByte('r')
	}
	if f.Has(PermUpdate) {
		b.WriteByte('u')
	}
	if f.Has(PermDelete) {
		b.WriteByte('d')
	}
	return b.String()
}

// Namespace is a dot-delimited hierarchical resource path.
type Namespace string

// Wildcard matches exactly one arbitrary segment
const Wildcard = "*"

// NewNamespace joins the passed parts with dots. Parts can be strings,
// stringers or integers. Everything is lowercased.
func NewNamespace(parts ...interface{}) Namespace {
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		segments = append(segments, strings.ToLower(fmt.Sprintf("%v", part)))
	}
	return Namespace(strings.Join(segments, "."))
}

// Segments splits the namespace at the dots. The empty namespace has no
// segments.
func (n Namespace) Segments() []string {
	if len(n) == 0 {
		return nil
	}
	return strings.Split(string(n), ".")
}

// Child returns the namespace extended by one or more segments.
func (n Namespace) Child(parts ...interface{}) Namespace {
	child := NewNamespace(parts...)
	if len(n) == 0 {
		return child
	}
	return n + "." + child
}

// Match checks whether the rule namespace n covers the concrete path.
//
// It returns a specificity score for the match; higher is more specific.
// A rule matches if all its segments match the leading segments of the path,
// where the wildcard "*" matches any single segment. The empty namespace
// matches nothing, and rules longer than the path do not match.
func (n Namespace) Match(path Namespace) (specificity int, ok bool) {
	rule := n.Segments()
	target := path.Segments()
	if len(rule) == 0 || len(rule) > len(target) {
		return 0, false
	}
	literals := 0
	for i, segment := range rule {
		if segment == Wildcard {
			continue
		}
		if segment != target[i] {
			return 0, false
		}
		literals++
	}
	// length dominates, literal count breaks ties between equally long rules
	return len(rule)*(len(target)+1) + literals, true
}

// Set maps namespaces to granted permission flags.
type Set map[Namespace]Flag

// Add grants flags over a namespace. Flags accumulate if the namespace
// already has a rule.
func (s Set) Add(namespace Namespace, flags Flag) {
	s[namespace] |= flags
}

// Merge adds all rules of the other set to this set.
func (s Set) Merge(other Set) {
	for namespace, flags := range other {
		s.Add(namespace, flags)
	}
}

// Resolve returns the effective permission flags for the concrete path.
//
// The most specific matching rule wins. If two rules match with identical
// specificity their flags are combined.
func (s Set) Resolve(path Namespace) Flag {
	best := -1
	flags := PermDenied
	for namespace, ruleFlags := range s {
		specificity, ok := namespace.Match(path)
		if !ok {
			continue
		}
		if specificity > best {
			best = specificity
			flags = ruleFlags
		} else if specificity == best {
			flags |= ruleFlags
		}
	}
	return flags
}

// Check returns true if the set grants all the requested flags on the path.
func (s Set) Check(path Namespace, flags Flag) bool {
	return s.Resolve(path).Has(flags)
}

// ResolveExplicit returns the effective permission flags for the concrete
// path, considering only rules of the same depth as the path itself.
//
// Explicit resolution is used for visibility scoped attributes such as
// contact sets: a broad grant on a parent namespace must not open them up,
// the rule has to name the full namespace, wildcards included.
func (s Set) ResolveExplicit(path Namespace) Flag {
	depth := len(path.Segments())
	best := -1
	flags := PermDenied
	for namespace, ruleFlags := range s {
		if len(namespace.Segments()) != depth {
			continue
		}
		specificity, ok := namespace.Match(path)
		if !ok {
			continue
		}
		if specificity > best {
			best = specificity
			flags = ruleFlags
		} else if specificity == best {
			flags |= ruleFlags
		}
	}
	return flags
}

// CheckExplicit returns true if the set grants all the requested flags on
// the path through a rule of the same depth as the path.
func (s Set) CheckExplicit(path Namespace, flags Flag) bool {
	return s.ResolveExplicit(path).Has(flags)
}
