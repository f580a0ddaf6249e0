package scheduler

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ParseScontrolOutput parses `scontrol show job <id>` output into a flat
// Key=Value map. The output packs multiple pairs per line with no reliable
// separator other than "key=", so this mirrors the source's approach:
// regex out every KEY=VALUE token, where VALUE runs until the next KEY=.
func ParseScontrolOutput(output string) (map[string]string, error) {
	if strings.TrimSpace(output) == "" {
		return nil, fmt.Errorf("empty scontrol output")
	}

	fields := map[string]string{}
	keyRE := regexp.MustCompile(`(?:^|\s)(\w+)=`)

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		keys := keyRE.FindAllStringSubmatchIndex(line, -1)
		for i, loc := range keys {
			end := len(line)
			if i+1 < len(keys) {
				end = keys[i+1][0]
			}
			fields[line[loc[2]:loc[3]]] = strings.TrimSpace(line[loc[1]:end])
		}
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("no job information found in scontrol output")
	}
	return fields, nil
}

var notFoundEmptyStates = map[string]bool{"": true}

var placeholderReasons = map[string]bool{
	"None": true, "(null)": true, "N/A": true,
}

// mapExternalState implements spec §4.2's state mapping table.
func mapExternalState(state string) Status {
	switch state {
	case "PENDING":
		return StatusPending
	case "RUNNING", "SUSPENDED":
		return StatusRunning
	case "COMPLETED", "NOT_FOUND":
		return StatusCompleted
	default:
		// FAILED, CANCELLED, TIMEOUT, OUT_OF_MEMORY, NODE_FAIL, PREEMPTED,
		// and anything unrecognized all land on FAILED.
		return StatusFailed
	}
}

var finishedStates = map[string]bool{
	"COMPLETED": true, "FAILED": true, "CANCELLED": true,
	"TIMEOUT": true, "OUT_OF_MEMORY": true, "NODE_FAIL": true, "NOT_FOUND": true,
}

// IsJobFinished reports whether state is a terminal SLURM state. The empty
// string is deliberately not finished (spec §9 Open Question): it gates
// ExtractErrorMessage so output with an empty or missing JobState never
// composes a spurious error message. NOT_FOUND is finished; its synthesized
// summary carries exit code 0:0 and no error message.
func IsJobFinished(state string) bool {
	if notFoundEmptyStates[state] {
		return false
	}
	return finishedStates[state]
}

// IsJobSuccessful reports the §4.2 success predicate: exit code exactly "0:0".
func IsJobSuccessful(exitCode string) bool {
	return exitCode == "0:0"
}

// ParseTimestamp parses a SLURM `YYYY-MM-DDTHH:MM:SS` timestamp, returning
// nil for placeholder tokens or malformed input.
func ParseTimestamp(raw string) *time.Time {
	switch raw {
	case "", "Unknown", "N/A", "(null)", "None":
		return nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", raw)
	if err != nil {
		return nil
	}
	return &t
}

// ExtractErrorMessage composes the §4.2 error-message string for a job that
// has finished unsuccessfully. Returns "" when the job hasn't finished, or
// finished successfully.
func ExtractErrorMessage(fields map[string]string) string {
	state := fields["JobState"]
	exitCode := fields["ExitCode"]
	reason := fields["Reason"]

	if !IsJobFinished(state) || IsJobSuccessful(exitCode) {
		return ""
	}

	var parts []string
	if state != "" {
		parts = append(parts, fmt.Sprintf("Job state: %s", state))
	}
	if exitCode != "" && exitCode != "0:0" {
		parts = append(parts, fmt.Sprintf("Exit code: %s", exitCode))
	}
	if reason != "" && !placeholderReasons[reason] {
		parts = append(parts, fmt.Sprintf("Reason: %s", reason))
	}

	switch state {
	case "CANCELLED":
		parts = append(parts, "Job was cancelled")
	case "TIMEOUT":
		parts = append(parts, "Job exceeded time limit")
	case "OUT_OF_MEMORY":
		parts = append(parts, "Job ran out of memory")
	case "NODE_FAIL":
		parts = append(parts, "Node failure occurred")
	case "FAILED":
		if exitCode != "" && exitCode != "0:0" {
			parts = append(parts, "Job failed with non-zero exit code")
		} else {
			parts = append(parts, "Job failed")
		}
	}

	if len(parts) == 0 {
		return fmt.Sprintf("Job failed with state: %s", state)
	}
	return strings.Join(parts, "; ")
}

// Summarize turns parsed scontrol fields into a JobInfo (spec §4.1/§4.2).
func Summarize(fields map[string]string) JobInfo {
	state := fields["JobState"]
	internal := mapExternalState(state)

	info := JobInfo{
		ExternalState:  state,
		InternalStatus: internal,
		StartTime:      ParseTimestamp(fields["StartTime"]),
		EndTime:        ParseTimestamp(fields["EndTime"]),
		ExitCode:       fields["ExitCode"],
		Reason:         fields["Reason"],
		IsFinished:     IsJobFinished(state),
		IsSuccessful:   IsJobSuccessful(fields["ExitCode"]),
	}
	if internal == StatusFailed {
		info.ErrorMessage = ExtractErrorMessage(fields)
	}
	return info
}

// notFoundSummary synthesizes the JobInfo for a job no longer in the queue
// (non-zero scontrol exit): assumed successfully completed, end time now,
// start time unknown.
func notFoundSummary(now time.Time) JobInfo {
	end := now
	return JobInfo{
		ExternalState:  "NOT_FOUND",
		InternalStatus: StatusCompleted,
		StartTime:      nil,
		EndTime:        &end,
		ExitCode:       "0:0",
		Reason:         "Job completed and removed from SLURM queue",
		IsFinished:     true,
		IsSuccessful:   true,
	}
}

// IsValidTransition implements the §4.2 transition table. A no-op (same
// state) is always legal.
func IsValidTransition(current, next Status) bool {
	if current == next {
		return true
	}
	switch current {
	case StatusPending:
		return next == StatusRunning || next == StatusFailed
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		// COMPLETED and FAILED are terminal.
		return false
	}
}

// ShouldMonitor reports whether status is a monitorable (non-terminal) state.
func ShouldMonitor(status Status) bool {
	return status == StatusPending || status == StatusRunning
}

// TransitionReason builds a human-readable description of a state change,
// for the engine's info-level transition log line (spec §4.6).
func TransitionReason(current, next Status, info JobInfo) string {
	if current == next {
		return fmt.Sprintf("status unchanged: %s", current)
	}
	switch next {
	case StatusRunning:
		return fmt.Sprintf("job started running (scheduler state: %s)", info.ExternalState)
	case StatusCompleted:
		switch {
		case info.ExternalState == "NOT_FOUND":
			return "job completed and removed from scheduler queue (assumed successful)"
		case info.IsSuccessful:
			return fmt.Sprintf("job completed successfully (scheduler state: %s, exit code: %s)", info.ExternalState, info.ExitCode)
		default:
			return fmt.Sprintf("job completed (scheduler state: %s, exit code: %s)", info.ExternalState, info.ExitCode)
		}
	case StatusFailed:
		if info.Reason != "" && !placeholderReasons[info.Reason] {
			return fmt.Sprintf("job failed (scheduler state: %s, reason: %s)", info.ExternalState, info.Reason)
		}
		return fmt.Sprintf("job failed (scheduler state: %s)", info.ExternalState)
	default:
		return fmt.Sprintf("status changed from %s to %s (scheduler state: %s)", current, next, info.ExternalState)
	}
}
