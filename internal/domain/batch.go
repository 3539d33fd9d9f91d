package domain

// BatchResult is the per-monitor entry of a batch run. Succeeded reports
// whether the pipeline completed; it says nothing about the probe status.
type BatchResult struct {
	MonitorID    MonitorID     `json:"monitor_id"`
	Succeeded    bool          `json:"succeeded"`
	Outcome      *CheckOutcome `json:"outcome,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

type BatchSummary struct {
	Results        []BatchResult `json:"results"`
	SucceededCount int           `json:"succeeded_count"`
	FailedCount    int           `json:"failed_count"`
}

// Summarize counts the results. The slice is kept as is.
func Summarize(results []BatchResult) BatchSummary {
	s := BatchSummary{Results: results}
	if s.Results == nil {
		s.Results = []BatchResult{}
	}
	for _, r := range s.Results {
		if r.Succeeded {
			s.SucceededCount++
		} else {
			s.FailedCount++
		}
	}
	return s
}

func (s BatchSummary) Empty() bool { return len(s.Results) == 0 }
