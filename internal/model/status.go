package model

// RecordStatus is the persisted lifecycle status of a download link
type RecordStatus string

const (
	// RecordStatusPending means the fetch was accepted but has not finished yet
	RecordStatusPending RecordStatus = "pending"

	// RecordStatusDownloaded means the artifact is placed and the link is live
	RecordStatusDownloaded RecordStatus = "downloaded"

	// RecordStatusFailed means the acquisition failed at some stage
	RecordStatusFailed RecordStatus = "failed"

	// RecordStatusDeleted means the artifact was reclaimed after retention
	RecordStatusDeleted RecordStatus = "deleted"
)

// String returns the string representation of RecordStatus
func (rs RecordStatus) String() string {
	return string(rs)
}

// IsValid reports whether rs is one of the known statuses
func (rs RecordStatus) IsValid() bool {
	switch rs {
	case RecordStatusPending, RecordStatusDownloaded, RecordStatusFailed, RecordStatusDeleted:
		return true
	}
	return false
}

// HasArtifact returns true if a record in this status must point to a live file
func (rs RecordStatus) HasArtifact() bool {
	return rs == RecordStatusDownloaded
}

// IsTerminal returns true if a single acquisition can end in this status
func (rs RecordStatus) IsTerminal() bool {
	return rs == RecordStatusDownloaded || rs == RecordStatusFailed
}

// Stage is the progress of one acquire invocation
type Stage string

const (
	// StageRequested means the request was accepted
	StageRequested Stage = "Requested"

	// StageResolving means metadata is being fetched
	StageResolving Stage = "Resolving"

	// StageFetching means the extractor is downloading and encoding
	StageFetching Stage = "Fetching"

	// StagePlacing means the artifact is being moved to its serving location
	StagePlacing Stage = "Placing"

	// StageCompleted means the link is ready
	StageCompleted Stage = "Completed"

	// StageFailed means the invocation stopped with an error
	StageFailed Stage = "Failed"
)

// String returns the string representation of Stage
func (s Stage) String() string {
	return string(s)
}

// IsActive returns true if work is still in progress
func (s Stage) IsActive() bool {
	return s == StageResolving || s == StageFetching || s == StagePlacing
}

// IsFinished returns true if the invocation reached a terminal stage
func (s Stage) IsFinished() bool {
	return s == StageCompleted || s == StageFailed
}
