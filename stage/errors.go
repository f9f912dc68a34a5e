package stage

// ConfigError reports an invalid stage graph or stage table: an unresolved
// stage reference, a cycle, or a run request for an unknown stage. It is a
// programming error in the operation definition and is kept distinct from
// stage-execution failures, which travel through the boolean result.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }
