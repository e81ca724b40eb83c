package owasm

// Env is the narrow capability set the host (a blockchain node processing an
// oracle request) supplies to the engine. Every method is called
// synchronously from an import closure while the guest is running; the
// engine never calls these concurrently with itself for a single
// invocation, but a host implementation may be called from many concurrent
// invocations against distinct Env values.
//
// Phase semantics — which methods are legal during prepare vs. execute — are
// enforced by the Env implementation, not by the engine: a call made in the
// wrong phase must return an error wrapping ErrWrongPeriodAction.
type Env interface {
	// GetSpanSize returns the maximum byte length of any single I/O buffer
	// for this request. Constant for the lifetime of one invocation.
	GetSpanSize() int64

	// GetCalldata returns the user-supplied call input. Length <= span size.
	GetCalldata() ([]byte, error)

	// SetReturnData emits the script's result. Length must be <= span size;
	// the caller (import closure) enforces this before invoking Env.
	SetReturnData(data []byte) error

	// GetAskCount returns the request's ask count parameter.
	GetAskCount() int64

	// GetMinCount returns the request's min count parameter.
	GetMinCount() int64

	// GetPrepareTime returns the block time at the prepare phase.
	GetPrepareTime() int64

	// GetExecuteTime returns the block time at the execute phase. Valid only
	// during execute; returns an error wrapping ErrWrongPeriodAction otherwise.
	GetExecuteTime() (int64, error)

	// GetAnsCount returns the number of validator answers collected. Valid
	// only during execute; returns an error wrapping ErrWrongPeriodAction
	// otherwise.
	GetAnsCount() (int64, error)

	// AskExternalData registers a new external data request during the
	// prepare phase, identified by eid (external-data id) and did
	// (data-source id), carrying opaque calldata for that source.
	AskExternalData(eid, did int64, data []byte) error

	// GetExternalDataStatus reports the status code for validator vid's
	// answer to external-data request eid.
	GetExternalDataStatus(eid, vid int64) (int64, error)

	// GetExternalData fetches validator vid's answer bytes for external-data
	// request eid. Returns an error wrapping ErrUnavailableData if the
	// answer isn't ready.
	GetExternalData(eid, vid int64) ([]byte, error)
}
