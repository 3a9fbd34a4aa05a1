package model

// AccountSeries pairs a control account with its earned-value time series,
// oldest record first.
type AccountSeries struct {
	Account ControlAccount
	Records []EVMRecord
}

// PerformanceReport is the assembled input for the project performance
// workbook export.
type PerformanceReport struct {
	Summary EVMSummary
	Series  []AccountSeries
}

// CommitmentDocument is the assembled input for the commitment summary PDF.
type CommitmentDocument struct {
	Commitment  Commitment
	Items       []CommitmentItem
	Revisions   []CommitmentRevision
	Allocations []CommitmentWorkPackageAllocation
}
