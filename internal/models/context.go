package models

// SchemaContext describes the target Redis database. The four fields are
// independent free text; no field constrains another.
type SchemaContext struct {
	KeyPatterns   string `json:"key_patterns"`
	SampleData    string `json:"sample_data"`
	IndexInfo     string `json:"index_info"`
	OtherMetadata string `json:"other_metadata"`
}

// ContextPatch is a field-by-field edit from the context form. Nil fields are
// left unchanged.
type ContextPatch struct {
	KeyPatterns   *string `json:"key_patterns"`
	SampleData    *string `json:"sample_data"`
	IndexInfo     *string `json:"index_info"`
	OtherMetadata *string `json:"other_metadata"`
}

// Empty reports whether the patch carries no field at all.
func (p ContextPatch) Empty() bool {
	return p.KeyPatterns == nil && p.SampleData == nil && p.IndexInfo == nil && p.OtherMetadata == nil
}

// Apply returns a copy of c with the patch fields set.
func (c SchemaContext) Apply(p ContextPatch) SchemaContext {
	if p.KeyPatterns != nil {
		c.KeyPatterns = *p.KeyPatterns
	}
	if p.SampleData != nil {
		c.SampleData = *p.SampleData
	}
	if p.IndexInfo != nil {
		c.IndexInfo = *p.IndexInfo
	}
	if p.OtherMetadata != nil {
		c.OtherMetadata = *p.OtherMetadata
	}
	return c
}
