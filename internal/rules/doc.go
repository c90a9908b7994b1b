// Package rules evaluates operator-authored retry rules against failed jobs.
//
// A rule document is a YAML (or JSON) list of mappings. Each mapping holds
// optional matchers and an action:
//
//	- exception_message_regex: "connection reset"
//	  action: retry
//	  retry_limit: 5
//	- class_regex: "^Billing"
//	  args_json_regex: '"dry_run":true'
//	  expiry: 2026-12-01T00:00:00Z
//	  action: clear
//
// Rules are compiled once when the document is loaded. Parsing never fails
// on a bad rule: a malformed matcher disables that rule, and the rest of the
// document keeps working. The first matching rule wins.
package rules
