package report

// Inputs is everything Assemble needs to build a record.
type Inputs struct {
	ID              string
	Date            string
	Project         string
	Author          string
	Weather         string
	Merged          Merged
	SubsPresent     []string
	PhotoURLs       []string
	NotesRaw        string
	VoiceTranscript string
	AudioURL        string
}

// Assemble builds a StructuredReport from in. It only assigns fields; nil
// lists become empty lists.
func Assemble(in Inputs) *StructuredReport {
	return &StructuredReport{
		ID:              in.ID,
		Date:            in.Date,
		Project:         in.Project,
		Author:          in.Author,
		Weather:         in.Weather,
		CrewCounts:      orEmpty(in.Merged.CrewCounts),
		Equipment:       orEmpty(in.Merged.Equipment),
		Activities:      orEmpty(in.Merged.Activities),
		Quantities:      orEmpty(in.Merged.Quantities),
		SubsPresent:     orEmpty(in.SubsPresent),
		IssuesDelays:    in.Merged.IssuesDelays,
		Safety:          in.Merged.Safety,
		PhotoURLs:       orEmpty(in.PhotoURLs),
		NotesRaw:        in.NotesRaw,
		VoiceTranscript: in.VoiceTranscript,
		AudioURL:        in.AudioURL,
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
