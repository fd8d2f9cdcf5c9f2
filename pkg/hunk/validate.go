package hunk

import "strings"

// validate checks a candidate search/replace pair and reports every
// issue found. HunkIndex on returned issues is filled in by the caller.
func validate(search, replace string) []Issue {
	var issues []Issue

	if strings.TrimSpace(search) == "" {
		issues = append(issues, Issue{Kind: IssueEmptySearch, Message: "search body is blank"})
	}

	if containsMarker(search) || containsMarker(replace) {
		issues = append(issues, Issue{Kind: IssueNestedMarkers, Message: "body contains a SEARCH or REPLACE marker literal"})
	}

	if looksLikeJSONArtifact(search) {
		issues = append(issues, Issue{Kind: IssueJSONArtifact, Message: "search body looks like a tool-call payload, not source text"})
	}

	if fenceCount := strings.Count(search, "```") + strings.Count(replace, "```"); fenceCount%2 != 0 {
		issues = append(issues, Issue{Kind: IssueUnbalancedFences, Message: "odd number of markdown code fences in body"})
	}

	if len(strings.TrimSpace(search)) < 10 {
		issues = append(issues, Issue{Kind: IssueShortSearch, Message: "search body shorter than 10 characters, likely ambiguous"})
	}

	if strings.Count(search, "...") >= 3 {
		issues = append(issues, Issue{Kind: IssuePossibleTruncation, Message: "search body contains three or more elisions"})
	}

	return issues
}

func containsMarker(s string) bool {
	return strings.Contains(s, "<<<<<<< SEARCH") || strings.Contains(s, ">>>>>>> REPLACE")
}

func looksLikeJSONArtifact(s string) bool {
	const (
		diffKey      = `"diff":`
		toolCall     = `"tool_call"`
		toolCalls    = `"tool_calls"`
		functionCall = `"function_call"`
	)
	return strings.Contains(s, diffKey) ||
		strings.Contains(s, toolCall) ||
		strings.Contains(s, toolCalls) ||
		strings.Contains(s, functionCall)
}
