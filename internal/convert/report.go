// Copyright (C) 2025 Quartzdata, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package convert

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// maxRejectionCauses bounds the per-run sample of rejected records so a
// pathological input cannot grow the report without limit.
const maxRejectionCauses = 100

// State names the orchestrator's lifecycle phase.
type State string

const (
	StateIdle       State = "idle"
	StateResolving  State = "resolving"
	StateStreaming  State = "streaming"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// RejectionCause records why one record was rejected.
type RejectionCause struct {
	Source string `json:"source"`
	Line   int64  `json:"line"`
	Reason string `json:"reason"`
}

// progress tracks live counters for an in-flight conversion. Counter fields
// are atomics so a status reader can snapshot them mid-run.
type progress struct {
	recordsRead      atomic.Int64
	recordsWritten   atomic.Int64
	recordsRejected  atomic.Int64
	coercionFailures atomic.Int64

	mu        sync.Mutex
	state     State
	causes    []RejectionCause
	truncated bool
}

func newProgress() *progress {
	return &progress{state: StateIdle}
}

func (p *progress) setState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

func (p *progress) currentState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *progress) reject(cause RejectionCause) {
	p.recordsRejected.Add(1)
	p.addCause(cause)
}

// softFailure records a tolerant-mode field failure. The record itself was
// written, so the rejected count is untouched.
func (p *progress) softFailure(cause RejectionCause) {
	p.coercionFailures.Add(1)
	p.addCause(cause)
}

func (p *progress) addCause(cause RejectionCause) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.causes) >= maxRejectionCauses {
		p.truncated = true
		return
	}
	p.causes = append(p.causes, cause)
}

// Report is the final accounting of one conversion run. Every record read
// is either written or rejected. CoercionFailures counts fields nulled by
// the tolerant policy, and RejectionsTruncated is set when more records
// were rejected than the sample holds.
type Report struct {
	RunID               string           `json:"run_id"`
	Source              string           `json:"source"`
	State               State            `json:"state"`
	RecordsRead         int64            `json:"records_read"`
	RecordsWritten      int64            `json:"records_written"`
	RecordsRejected     int64            `json:"records_rejected"`
	CoercionFailures    int64            `json:"coercion_failures"`
	Partitions          int              `json:"partitions"`
	Files               []FileReport     `json:"files"`
	Rejections          []RejectionCause `json:"rejections,omitempty"`
	RejectionsTruncated bool             `json:"rejections_truncated,omitempty"`
	FailureKind         FailureKind      `json:"failure_kind,omitempty"`
	FailureDetail       string           `json:"failure_detail,omitempty"`
	StartedAt           time.Time        `json:"started_at"`
	Elapsed             time.Duration    `json:"elapsed"`
}

// FileReport describes one output file in the final report.
type FileReport struct {
	Path        string `json:"path"`
	Partition   string `json:"partition,omitempty"`
	RecordCount int64  `json:"record_count"`
	FileSize    int64  `json:"file_size"`
	ChecksumMD5 string `json:"checksum_md5,omitempty"`
}

func newRunID() string {
	return uuid.NewString()
}

func (p *progress) buildReport(runID, source string, startedAt time.Time) *Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &Report{
		RunID:               runID,
		Source:              source,
		State:               p.state,
		RecordsRead:         p.recordsRead.Load(),
		RecordsWritten:      p.recordsWritten.Load(),
		RecordsRejected:     p.recordsRejected.Load(),
		CoercionFailures:    p.coercionFailures.Load(),
		Rejections:          append([]RejectionCause(nil), p.causes...),
		RejectionsTruncated: p.truncated,
		StartedAt:           startedAt,
		Elapsed:             time.Since(startedAt),
	}
}
