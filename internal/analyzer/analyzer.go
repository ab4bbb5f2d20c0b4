// Package analyzer runs a fixed set of string and regex heuristics over
// submitted source text. It is pure and stateless: one call, one report.
package analyzer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxSourceSize caps analyzable input at 1 MB.
const MaxSourceSize = 1_000_000

var (
	ErrEmptySource    = errors.New("analyzer: source is empty")
	ErrSourceTooLarge = errors.New("analyzer: source exceeds size limit")
)

// Metrics are the raw counters derived from the source text.
type Metrics struct {
	LinesOfCode       int     `json:"linesOfCode"`
	NonEmptyLines     int     `json:"nonEmptyLines"`
	Comments          int     `json:"comments"`
	CommentRatio      float64 `json:"commentRatio"`
	AverageLineLength float64 `json:"averageLineLength"`
	Language          string  `json:"language"`
}

// Issue is a single heuristic finding tied to a line.
type Issue struct {
	Type       string `json:"type"`
	Severity   string `json:"severity"`
	Line       int    `json:"line"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

// Suggestion is a file-level improvement hint.
type Suggestion struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Message  string `json:"message"`
	Impact   string `json:"impact"`
}

// Complexity aggregates the structural counters.
type Complexity struct {
	Cyclomatic int    `json:"cyclomatic"`
	Functions  int    `json:"functions"`
	MaxNesting int    `json:"maxNesting"`
	Label      string `json:"complexity"`
}

// Breakdown counts issues per severity.
type Breakdown struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// Summary is the human-facing verdict.
type Summary struct {
	Quality        string    `json:"quality"`
	Score          int       `json:"score"`
	TotalIssues    int       `json:"totalIssues"`
	Breakdown      Breakdown `json:"breakdown"`
	Recommendation string    `json:"recommendation"`
}

// Report is the full analysis result.
type Report struct {
	Metrics     Metrics      `json:"metrics"`
	Issues      []Issue      `json:"issues"`
	Suggestions []Suggestion `json:"suggestions"`
	Score       int          `json:"score"`
	Complexity  Complexity   `json:"complexity"`
	Summary     Summary      `json:"summary"`
}

const (
	severityError   = "error"
	severityWarning = "warning"
	severityInfo    = "info"
)

var (
	reFunctionJS    = regexp.MustCompile(`\bfunction\b|=>\s*[({]`)
	reFunctionPy    = regexp.MustCompile(`^\s*def\s+\w+`)
	reFunctionGo    = regexp.MustCompile(`^\s*func\s+`)
	reIncludeC      = regexp.MustCompile(`^\s*#include\s*<`)
	reDefSignature  = regexp.MustCompile(`(?m)^\s*def\s+\w+\s*\(.*\)\s*:`)
	reBranch        = regexp.MustCompile(`\b(if|for|while|case|catch|elif|switch)\b`)
	reBoolOp        = regexp.MustCompile(`&&|\|\|`)
	reVarDecl       = regexp.MustCompile(`\bvar\s+\w+`)
	reLooseEquality = regexp.MustCompile(`[^=!<>]==[^=]|[^=!<>]!=[^=]`)
	reConsoleLog    = regexp.MustCompile(`\bconsole\.log\s*\(`)
	reEvalCall      = regexp.MustCompile(`\beval\s*\(`)
	reEmptyCatch    = regexp.MustCompile(`catch\s*(\([^)]*\))?\s*\{\s*\}`)
	reTodoMarker    = regexp.MustCompile(`(?i)\b(TODO|FIXME|HACK)\b`)
	reTryOrErrCheck = regexp.MustCompile(`\btry\b|\bcatch\b|\bexcept\b|if\s+err\s*!=\s*nil`)
)

const maxLineLength = 120

// Analyze runs every heuristic over the source and assembles the report.
func Analyze(source string) (Report, error) {
	if strings.TrimSpace(source) == "" {
		return Report{}, ErrEmptySource
	}
	if len(source) > MaxSourceSize {
		return Report{}, ErrSourceTooLarge
	}

	lines := strings.Split(source, "\n")
	language := detectLanguage(source)
	metrics := computeMetrics(lines, language)
	complexity := computeComplexity(source, lines, language)
	issues := findIssues(lines, language)
	score := computeScore(issues)
	suggestions := buildSuggestions(metrics, complexity, source)
	summary := buildSummary(score, issues)

	return Report{
		Metrics:     metrics,
		Issues:      issues,
		Suggestions: suggestions,
		Score:       score,
		Complexity:  complexity,
		Summary:     summary,
	}, nil
}

func detectLanguage(source string) string {
	switch {
	case strings.Contains(source, "package ") && reFunctionGo.MatchString(source):
		return "go"
	case reIncludeC.MatchString(source):
		return "c"
	case reDefSignature.MatchString(source):
		return "python"
	case strings.Contains(source, "public class ") || strings.Contains(source, "public static void main"):
		return "java"
	case strings.Contains(source, ": string") || strings.Contains(source, ": number") || strings.Contains(source, "interface "):
		return "typescript"
	case reFunctionJS.MatchString(source) || strings.Contains(source, "const ") || strings.Contains(source, "let "):
		return "javascript"
	default:
		return "plaintext"
	}
}

func computeMetrics(lines []string, language string) Metrics {
	nonEmpty := 0
	comments := 0
	totalLength := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		totalLength += len(line)
		if trimmed == "" {
			continue
		}
		nonEmpty++
		if isCommentLine(trimmed, language) {
			comments++
		}
	}

	ratio := 0.0
	if nonEmpty > 0 {
		ratio = float64(comments) / float64(nonEmpty)
	}
	average := 0.0
	if len(lines) > 0 {
		average = float64(totalLength) / float64(len(lines))
	}

	return Metrics{
		LinesOfCode:       len(lines),
		NonEmptyLines:     nonEmpty,
		Comments:          comments,
		CommentRatio:      ratio,
		AverageLineLength: average,
		Language:          language,
	}
}

func isCommentLine(trimmed, language string) bool {
	if language == "python" {
		return strings.HasPrefix(trimmed, "#")
	}
	return strings.HasPrefix(trimmed, "//") ||
		strings.HasPrefix(trimmed, "/*") ||
		strings.HasPrefix(trimmed, "*") ||
		strings.HasPrefix(trimmed, "#")
}

func computeComplexity(source string, lines []string, language string) Complexity {
	cyclomatic := 1
	cyclomatic += len(reBranch.FindAllString(source, -1))
	cyclomatic += len(reBoolOp.FindAllString(source, -1))

	functions := 0
	for _, line := range lines {
		switch language {
		case "python":
			if reFunctionPy.MatchString(line) {
				functions++
			}
		case "go":
			if reFunctionGo.MatchString(line) {
				functions++
			}
		default:
			if reFunctionJS.MatchString(line) {
				functions++
			}
		}
	}

	maxNesting := 0
	depth := 0
	for _, r := range source {
		switch r {
		case '{':
			depth++
			if depth > maxNesting {
				maxNesting = depth
			}
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}

	label := "low"
	switch {
	case cyclomatic > 20:
		label = "high"
	case cyclomatic > 10:
		label = "moderate"
	}

	return Complexity{
		Cyclomatic: cyclomatic,
		Functions:  functions,
		MaxNesting: maxNesting,
		Label:      label,
	}
}

func findIssues(lines []string, language string) []Issue {
	issues := make([]Issue, 0)
	jsLike := language == "javascript" || language == "typescript"

	for index, line := range lines {
		number := index + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isCommentLine(trimmed, language) {
			if reTodoMarker.MatchString(trimmed) {
				issues = append(issues, Issue{
					Type:       "todo-marker",
					Severity:   severityInfo,
					Line:       number,
					Message:    "Unresolved TODO/FIXME marker",
					Suggestion: "Resolve the marker or track it in your issue tracker",
				})
			}
			continue
		}

		if reEvalCall.MatchString(line) {
			issues = append(issues, Issue{
				Type:       "eval-usage",
				Severity:   severityError,
				Line:       number,
				Message:    "eval() executes arbitrary code and is a security risk",
				Suggestion: "Replace eval() with explicit parsing or a lookup table",
			})
		}
		if reEmptyCatch.MatchString(line) {
			issues = append(issues, Issue{
				Type:       "empty-catch",
				Severity:   severityError,
				Line:       number,
				Message:    "Empty catch block swallows errors silently",
				Suggestion: "Handle the error or at least log it",
			})
		}
		if jsLike && reVarDecl.MatchString(line) {
			issues = append(issues, Issue{
				Type:       "var-declaration",
				Severity:   severityWarning,
				Line:       number,
				Message:    "var has function scope and hoisting pitfalls",
				Suggestion: "Use let or const instead of var",
			})
		}
		if jsLike && reLooseEquality.MatchString(line) {
			issues = append(issues, Issue{
				Type:       "loose-equality",
				Severity:   severityWarning,
				Line:       number,
				Message:    "Loose equality coerces types",
				Suggestion: "Use === / !== for strict comparison",
			})
		}
		if reConsoleLog.MatchString(line) {
			issues = append(issues, Issue{
				Type:       "console-log",
				Severity:   severityWarning,
				Line:       number,
				Message:    "console.log left in code",
				Suggestion: "Remove debug output or use a logger",
			})
		}
		if len(line) > maxLineLength {
			issues = append(issues, Issue{
				Type:       "long-line",
				Severity:   severityWarning,
				Line:       number,
				Message:    fmt.Sprintf("Line exceeds %d characters", maxLineLength),
				Suggestion: "Break the line up for readability",
			})
		}
		if reTodoMarker.MatchString(line) {
			issues = append(issues, Issue{
				Type:       "todo-marker",
				Severity:   severityInfo,
				Line:       number,
				Message:    "Unresolved TODO/FIXME marker",
				Suggestion: "Resolve the marker or track it in your issue tracker",
			})
		}
	}

	return issues
}

func computeScore(issues []Issue) int {
	score := 100
	for _, issue := range issues {
		switch issue.Severity {
		case severityError:
			score -= 10
		case severityWarning:
			score -= 5
		default:
			score -= 1
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

func buildSuggestions(metrics Metrics, complexity Complexity, source string) []Suggestion {
	suggestions := make([]Suggestion, 0)

	if metrics.NonEmptyLines >= 10 && metrics.CommentRatio < 0.05 {
		suggestions = append(suggestions, Suggestion{
			Type:     "documentation",
			Priority: "medium",
			Message:  "Almost no comments; document intent where it is not obvious",
			Impact:   "Easier onboarding and review",
		})
	}
	if complexity.Label != "low" {
		suggestions = append(suggestions, Suggestion{
			Type:     "complexity",
			Priority: "high",
			Message:  "High cyclomatic complexity; extract smaller functions",
			Impact:   "Lower defect rate and simpler testing",
		})
	}
	if complexity.MaxNesting > 4 {
		suggestions = append(suggestions, Suggestion{
			Type:     "nesting",
			Priority: "medium",
			Message:  "Deeply nested blocks; use early returns to flatten control flow",
			Impact:   "More readable code paths",
		})
	}
	if metrics.NonEmptyLines >= 20 && !reTryOrErrCheck.MatchString(source) {
		suggestions = append(suggestions, Suggestion{
			Type:     "error-handling",
			Priority: "high",
			Message:  "No error handling detected",
			Impact:   "Failures surface as crashes instead of handled states",
		})
	}
	if complexity.Functions == 0 && metrics.NonEmptyLines >= 30 {
		suggestions = append(suggestions, Suggestion{
			Type:     "structure",
			Priority: "low",
			Message:  "No functions detected in a long file; factor logic into units",
			Impact:   "Reusable, individually testable pieces",
		})
	}

	return suggestions
}

func buildSummary(score int, issues []Issue) Summary {
	breakdown := Breakdown{}
	for _, issue := range issues {
		switch issue.Severity {
		case severityError:
			breakdown.Errors++
		case severityWarning:
			breakdown.Warnings++
		default:
			breakdown.Info++
		}
	}

	quality := "poor"
	recommendation := "Significant rework recommended before sharing this code."
	switch {
	case score >= 80:
		quality = "excellent"
		recommendation = "Ready to go; only minor polish possible."
	case score >= 60:
		quality = "good"
		recommendation = "Solid overall; address the warnings when convenient."
	case score >= 40:
		quality = "fair"
		recommendation = "Work through the flagged issues before merging."
	}

	return Summary{
		Quality:        quality,
		Score:          score,
		TotalIssues:    len(issues),
		Breakdown:      breakdown,
		Recommendation: recommendation,
	}
}
