package topology

// buildReport tallies errs by severity. Warnings never make a report
// invalid; error and critical entries do.
func buildReport(errs []TopologyError) *Report {
	if errs == nil {
		errs = []TopologyError{}
	}

	report := &Report{
		Errors:    errs,
		RepairLog: []string{},
	}
	for _, te := range errs {
		if te.Severity == SeverityWarning {
			report.WarningCount++
		} else {
			report.ErrorCount++
		}
	}
	report.Valid = report.ErrorCount == 0

	return report
}

func invalidInputReport(err error) *Report {
	return buildReport([]TopologyError{{
		ErrorType:    ErrorInvalidInput,
		FeatureIndex: -1,
		Description:  err.Error(),
		Severity:     SeverityCritical,
	}})
}
