package domain

// Upload is one scanned file received by the ingestion path.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type IngestOptions struct {
	Enhance  bool
	Parallel bool
}

// RecognizedText is the result of recognizing one image.
type RecognizedText struct {
	Text       string  `json:"text"`
	WordCount  int     `json:"word_count"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// wordCountMargin is how many more words a reading needs before word count
// outranks confidence.
const wordCountMargin = 3

// Better reports whether r should be preferred over other. Equal readings
// keep other.
func (r RecognizedText) Better(other RecognizedText) bool {
	diff := r.WordCount - other.WordCount
	if diff > wordCountMargin || diff < -wordCountMargin {
		return diff > 0
	}
	return r.Confidence > other.Confidence
}

type IngestFileResult struct {
	Filename   string         `json:"filename"`
	Type       InvoiceType    `json:"type,omitempty"`
	Location   FilingLocation `json:"location,omitempty"`
	Business   string         `json:"business,omitempty"`
	Bundle     *StoredBundle  `json:"bundle,omitempty"`
	OCRSource  string         `json:"ocr_source,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Error      string         `json:"error,omitempty"`
}

func (r IngestFileResult) Failed() bool {
	return r.Error != ""
}

type IngestReport struct {
	BatchID   string             `json:"batch_id"`
	Processed int                `json:"processed"`
	Failed    int                `json:"failed"`
	Results   []IngestFileResult `json:"results"`
}
