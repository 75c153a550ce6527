package app

// Exit codes shared by the one-shot commands.
//
// A run that returns an error made no progress and is fatal. A run that
// completes but counts per-record failures advanced past them, so it exits
// with the partial code.
const (
	ExitOK      = 0
	ExitPartial = 1
	ExitFatal   = 2
)

// RunExitCode maps a run outcome onto the process exit code.
func RunExitCode(err error, failed int) int {
	if err != nil {
		return ExitFatal
	}
	if failed > 0 {
		return ExitPartial
	}
	return ExitOK
}
