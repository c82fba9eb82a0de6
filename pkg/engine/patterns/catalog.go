// Package patterns holds the vulnerability-indicator catalog and the engine
// that matches it against commit messages.
package patterns

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownProfile is returned for a profile name outside Profiles.
var ErrUnknownProfile = errors.New("unknown pattern profile")

// Severity ranks how serious a matched indicator is.
type Severity string

const (
	Critical Severity = "critical"
	High     Severity = "high"
	Medium   Severity = "medium"
	Low      Severity = "low"
	Info     Severity = "info"
)

// Weight is the severity's contribution to a finding's risk score.
func (s Severity) Weight() float64 {
	switch s {
	case Critical:
		return 9
	case High:
		return 7
	case Medium:
		return 5
	case Low:
		return 3
	case Info:
		return 1
	}
	return 0
}

// Category groups patterns by vulnerability class.
type Category string

const (
	MemorySafety                Category = "memory_safety"
	Cryptography                Category = "cryptography"
	WebSecurity                 Category = "web_security"
	InputValidation             Category = "input_validation"
	AuthenticationAuthorization Category = "authentication_authorization"
	Concurrency                 Category = "concurrency"
	DataExposure                Category = "data_exposure"
	CodeInjection               Category = "code_injection"
	Generic                     Category = "generic"
)

// Pattern is one vulnerability indicator.
type Pattern struct {
	Name        string   `json:"name"`
	Regex       string   `json:"regex"`
	Severity    Severity `json:"severity"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	CWE         string   `json:"cwe,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	// ExtractsReferences marks the pattern whose first capture group is a
	// CVE identifier. A match doubles the finding's risk score.
	ExtractsReferences bool `json:"extracts_references,omitempty"`
}

// DefaultCatalog returns the built-in patterns.
func DefaultCatalog() []Pattern {
	return []Pattern{
		{
			Name:        "Use After Free",
			Regex:       `(?i)\b(use[-\s]after[-\s]free|uaf|dangling[-\s]pointer)\b`,
			Severity:    Critical,
			Category:    MemorySafety,
			Description: "Memory accessed after it has been freed",
			CWE:         "CWE-416",
			Examples:    []string{"fix use after free in parser", "UAF in connection teardown"},
		},
		{
			Name:        "Buffer Overflow",
			Regex:       `(?i)\b(buffer[-\s]overflow|stack[-\s]overflow|heap[-\s]overflow|bof|ovflw|StackO)\b`,
			Severity:    Critical,
			Category:    MemorySafety,
			Description: "Write or read past the bounds of a buffer",
			CWE:         "CWE-120",
			Examples:    []string{"fix buffer overflow in decoder", "heap-overflow when parsing headers"},
		},
		{
			Name:        "Double Free",
			Regex:       `(?i)\b(double[-\s]free|free[-\s]after[-\s]free)\b`,
			Severity:    High,
			Category:    MemorySafety,
			Description: "Memory released twice",
			CWE:         "CWE-415",
			Examples:    []string{"avoid double free on error path"},
		},
		{
			Name:        "Race Condition",
			Regex:       `(?i)\b(race[-\s]condition|data[-\s]race|concurrency[-\s]bug)\b`,
			Severity:    High,
			Category:    Concurrency,
			Description: "Unsynchronized access to shared state",
			CWE:         "CWE-362",
			Examples:    []string{"fix data race in scheduler"},
		},
		{
			Name:        "Memory Leak",
			Regex:       `(?i)\b(memory[-\s]leak|mem[-\s]leak|resource[-\s]leak)\b`,
			Severity:    Medium,
			Category:    MemorySafety,
			Description: "Allocated resources never released",
			CWE:         "CWE-401",
			Examples:    []string{"plug memory leak in cache"},
		},
		{
			Name:        "Null Pointer Dereference",
			Regex:       `(?i)\b(null[-\s]pointer|nullptr[-\s]dereference|segfault|sigsegv)\b`,
			Severity:    Medium,
			Category:    MemorySafety,
			Description: "Dereference of a null or invalid pointer",
			CWE:         "CWE-476",
			Examples:    []string{"fix segfault on empty input"},
		},
		{
			Name:        "Code Injection",
			Regex:       `(?i)\b(code[-\s]injection|command[-\s]injection|sql[-\s]injection|remote[-\s]code[-\s]execution|rce)\b`,
			Severity:    Critical,
			Category:    CodeInjection,
			Description: "Untrusted input executed as code or commands",
			CWE:         "CWE-94",
			Examples:    []string{"prevent sql injection in search", "RCE via template rendering"},
		},
		{
			Name:        "Type Confusion",
			Regex:       `(?i)\b(type confusion|confused)\b`,
			Severity:    Critical,
			Category:    CodeInjection,
			Description: "Object accessed through an incompatible type",
			CWE:         "CWE-843",
			Examples:    []string{"fix type confusion in JIT"},
		},
		{
			Name:        "Authentication Bypass",
			Regex:       `(?i)\b(auth[-\s]bypass|authentication[-\s]bypass|privilege[-\s]escalation)\b`,
			Severity:    Critical,
			Category:    AuthenticationAuthorization,
			Description: "Access granted without valid credentials",
			CWE:         "CWE-287",
			Examples:    []string{"close auth bypass in token refresh"},
		},
		{
			Name:        "Cross-Site Scripting",
			Regex:       `(?i)\b(xss|cross[-\s]site[-\s]scripting)\b`,
			Severity:    Medium,
			Category:    WebSecurity,
			Description: "Untrusted input rendered as markup",
			CWE:         "CWE-79",
			Examples:    []string{"escape titles to prevent XSS"},
		},
		{
			Name:        "Weak Cryptography",
			Regex:       `(?i)\b(weak[-\s]crypto|weak[-\s]cipher|broken[-\s]crypto|md5|sha1\b|des\b|rc4)\b`,
			Severity:    Medium,
			Category:    Cryptography,
			Description: "Use of a broken or weak algorithm",
			CWE:         "CWE-327",
			Examples:    []string{"replace md5 with sha256"},
		},
		{
			Name:               "CVE Reference",
			Regex:              `(?i)\bcve[-\s]?(\d{4}[-\s]?\d{4,})\b`,
			Severity:           Info,
			Category:           Generic,
			Description:        "Commit references a published CVE",
			Examples:           []string{"backport fix for CVE-2021-44228"},
			ExtractsReferences: true,
		},
		{
			Name:        "Security Fix",
			Regex:       `(?i)\b(security[-\s]fix|security[-\s]patch|vulnerability|exploit|malicious|vulnerable|fallthrough)\b`,
			Severity:    Info,
			Category:    Generic,
			Description: "Commit describes itself as security related",
			Examples:    []string{"security fix for session handling"},
		},
	}
}

// Profiles maps profile names to the patterns they select.
var Profiles = map[string]func(Pattern) bool{
	"all":          func(Pattern) bool { return true },
	"vuln":         func(p Pattern) bool { return p.Category != Generic },
	"memorysafety": byCategory(MemorySafety),
	"crypto":       byCategory(Cryptography),
	"web":          byCategory(WebSecurity),
	"injection":    byCategory(CodeInjection),
	"auth":         byCategory(AuthenticationAuthorization),
	"concurrency":  byCategory(Concurrency),
}

func byCategory(c Category) func(Pattern) bool {
	return func(p Pattern) bool { return p.Category == c }
}

// ProfileNames lists the valid profile names, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(Profiles))
	for name := range Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select filters catalog down to the patterns of a profile.
func Select(profile string, catalog []Pattern) ([]Pattern, error) {
	keep, ok := Profiles[profile]
	if !ok {
		return nil, fmt.Errorf("%w %q (valid: %v)", ErrUnknownProfile, profile, ProfileNames())
	}
	var out []Pattern
	for _, p := range catalog {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out, nil
}
