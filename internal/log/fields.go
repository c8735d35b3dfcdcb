// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldCameraID  = "camera_id"
	FieldRequestID = "request_id"
	FieldComponent = "component"

	// Lifecycle fields
	FieldEvent      = "event"
	FieldOldState   = "old_state"
	FieldNewState   = "new_state"
	FieldReason     = "reason"
	FieldGeneration = "generation"
	FieldRetries    = "retries"

	// Admission fields
	FieldCapacity   = "capacity"
	FieldGrants     = "grants"
	FieldQueueDepth = "queue_depth"

	// Target fields; always carry the redacted form, never raw credentials.
	FieldTarget = "target"
)
