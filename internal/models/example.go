package models

// Example is a ready-made schema context the user can switch to.
type Example struct {
	Name          string `json:"name" toml:"name"`
	Description   string `json:"description" toml:"description"`
	KeyPatterns   string `json:"key_patterns" toml:"key_patterns"`
	SampleData    string `json:"sample_data" toml:"sample_data"`
	IndexInfo     string `json:"index_info" toml:"index_info"`
	OtherMetadata string `json:"other_metadata" toml:"other_metadata"`
	Query         string `json:"query" toml:"query"`
}

func (e Example) Context() SchemaContext {
	return SchemaContext{
		KeyPatterns:   e.KeyPatterns,
		SampleData:    e.SampleData,
		IndexInfo:     e.IndexInfo,
		OtherMetadata: e.OtherMetadata,
	}
}

type ExampleSummary struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type SelectExampleRequest struct {
	Index int `json:"index"`
}
