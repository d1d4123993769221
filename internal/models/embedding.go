package models

// Row is one stored chunk of a document table. ID is the source page number
// and is not unique: a page that yields several chunks stores several rows.
type Row struct {
	ID     int32
	Text   string
	Vector []float32
}

// Match is a row returned by a nearest-neighbor search, projected to id and text.
type Match struct {
	ID   int32
	Text string
}

// Page is the extracted text of one page of a source document.
type Page struct {
	Number int32
	Text   string
}

// TopMatch is the single closest chunk for a query
type TopMatch struct {
	Text       string `json:"text"`
	PageNumber int32  `json:"page_number"`
}

// IngestResult reports what happened to each chunk of an ingestion call.
type IngestResult struct {
	Attempted int     `json:"attempted"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	Errors    []error `json:"-"`
}

// Complete reports whether every attempted chunk was stored.
func (r IngestResult) Complete() bool {
	return r.Failed == 0
}

// Add merges other into r.
func (r *IngestResult) Add(other IngestResult) {
	r.Attempted += other.Attempted
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Errors = append(r.Errors, other.Errors...)
}

type Answer struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Source   TopMatch `json:"source"`
}
