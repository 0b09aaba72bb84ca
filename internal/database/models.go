package database

// ReportSummary is one row of the report index.
type ReportSummary struct {
	ID         string
	Date       string
	Project    string
	Author     string
	PhotoCount int
	HasAudio   bool
	CreatedAt  string
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalReports int
	Projects     int
	Days         int
	WithAudio    int
	LatestDate   string
}
