package playground

// JSON-RPC methods spoken between the bridge and the worker.
const (
	// MethodExecute is a call from the bridge; the reply is a *Result.
	MethodExecute = "playground/execute"

	// MethodPrint is a notification from the worker carrying console output.
	MethodPrint = "playground/print"
)

// Request asks the worker to evaluate a playground.
type Request struct {
	CodeToEvaluate   string `json:"codeToEvaluate"`
	ConnectionString string `json:"connectionString"`

	// Source names the playground in run events. It is not sent.
	Source string `json:"-"`
}

// PrintParams carries console output fragments in the order they were
// printed.
type PrintParams struct {
	Output []string `json:"output"`
}
