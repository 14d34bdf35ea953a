package cacheaside

// Failure is one structured failure record.
//
// Operation ∈ {"GetOrPopulate.read", "GetOrPopulate.write",
// "GetOrPopulate.source", "BulkSet"}
type Failure struct {
	Operation string
	Key       string
	Message   string
	Err       error
	Stack     []byte // goroutine stack at the point of failure
}

// Reporter receives failures. Report must not block for long and must not
// panic; a panic is recovered and dropped.
type Reporter interface {
	Report(Failure)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Failure)

func (f ReporterFunc) Report(fl Failure) { f(fl) }

type NopReporter struct{}

func (NopReporter) Report(Failure) {}

// LogReporter writes failures to a Logger at error level. It is the default
// Reporter, built over Options.Logger.
type LogReporter struct {
	Logger Logger
	// OmitStack leaves the stack out of the log line.
	OmitStack bool
}

func (r LogReporter) Report(f Failure) {
	if r.Logger == nil {
		return
	}
	fields := Fields{
		"op":  f.Operation,
		"key": f.Key,
		"err": f.Err,
	}
	if !r.OmitStack && len(f.Stack) > 0 {
		fields["stack"] = string(f.Stack)
	}
	r.Logger.Error(f.Message, fields)
}
