package ingest

// State is a position in the submission state machine.
type State int

const (
	Idle State = iota
	Recording
	Transcribing
	Extracting
	Normalizing
	Merging
	Uploading
	Assembling
	Persisting
	Done
	Failed
)

var stateNames = [...]string{
	Idle:         "idle",
	Recording:    "recording",
	Transcribing: "transcribing",
	Extracting:   "extracting",
	Normalizing:  "normalizing",
	Merging:      "merging",
	Uploading:    "uploading",
	Assembling:   "assembling",
	Persisting:   "persisting",
	Done:         "done",
	Failed:       "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether s ends a submission.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}
