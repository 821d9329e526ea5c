package domain

import "strings"

// SourceCollection tags which logical collection a document was drawn from.
type SourceCollection string

const (
	SourceRFP              SourceCollection = "RFP"
	SourceDocumentation    SourceCollection = "Documentation"
	SourceAPIDocumentation SourceCollection = "APIDocumentation"
	SourceWebsite          SourceCollection = "Website"
	SourceEPCC             SourceCollection = "EPCC"
	SourceEPSM             SourceCollection = "EPSM"
)

type RetrievalMode string

const (
	ModeStandard RetrievalMode = "standard"
	ModeEPCC     RetrievalMode = "epcc"
	ModeEPSM     RetrievalMode = "epsm"
	ModeRFP      RetrievalMode = "rfp"
)

// ParseRetrievalMode maps free-form input to a mode; unknown values fall back to standard.
func ParseRetrievalMode(raw string) RetrievalMode {
	switch RetrievalMode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeEPCC:
		return ModeEPCC
	case ModeEPSM:
		return ModeEPSM
	case ModeRFP:
		return ModeRFP
	default:
		return ModeStandard
	}
}

// ContentTypeWebsiteScraped marks chunks ingested from allow-listed web pages.
const ContentTypeWebsiteScraped = "website_scraped"

type DocumentMetadata struct {
	Source            string            `json:"source"`
	SourceCollection  SourceCollection  `json:"source_collection,omitempty"`
	Domain            string            `json:"domain,omitempty"`
	URL               string            `json:"url,omitempty"`
	Title             string            `json:"title,omitempty"`
	ContentType       string            `json:"content_type,omitempty"`
	SourceAttribution string            `json:"source_attribution,omitempty"`
	CollectionWeight  float64           `json:"collection_weight,omitempty"`
	ChunkIndex        int               `json:"chunk_index"`
	Extra             map[string]string `json:"extra,omitempty"`
}

type RetrievedDocument struct {
	PageContent string           `json:"page_content"`
	Metadata    DocumentMetadata `json:"metadata"`
	Score       float64          `json:"score"`
}

// CollectionSpec binds a logical collection to its physical name and vector index.
type CollectionSpec struct {
	Name      string
	IndexName string
	Source    SourceCollection
}

// ExpandedQuery keeps the raw query next to its synonym-expanded form.
// Expanded always begins with Original.
type ExpandedQuery struct {
	Original string `json:"original"`
	Expanded string `json:"expanded"`
}
