package batch

type Record struct {
	MessageID string
	Body      string
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "fail"
)

// Outcome is the classification of one record of a batch.
type Outcome struct {
	MessageID string
	Status    Status
	Err       error
	Record    Record
}

// Report holds one outcome per input record, in input order.
type Report struct {
	Outcomes []Outcome
}

func (r Report) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailure {
			failed = append(failed, o)
		}
	}
	return failed
}

// FailedIDs lists the message ids the queue has to redeliver.
func (r Report) FailedIDs() []string {
	ids := []string{}
	for _, o := range r.Failures() {
		ids = append(ids, o.MessageID)
	}
	return ids
}
