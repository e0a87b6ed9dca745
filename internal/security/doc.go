// Package security builds the read-only security posture report exposed by
// Engine.SecurityReport.
//
// # What this package must NOT do
//
//   - Read configuration or registries directly; callers pass a ReportInput.
//   - Change engine behavior. The report only describes it.
package security
