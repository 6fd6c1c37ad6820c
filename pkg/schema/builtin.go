package schema

func floatPtr(f float64) *float64 { return &f }

// assistantReplySchema is the terminal reply shape: spec.md §4.3's repair
// fallback ({answer:"", citations:[], diagnostics:{...}}) must itself
// satisfy this schema, so answer is the only required member, citations
// is optional with an empty-array default, and diagnostics stays
// open-ended.
func assistantReplySchema() *Validator {
	return &Validator{
		Name: "AssistantReply",
		Fields: &FieldSet{
			Fields: []Field{
				{Name: "answer", Kind: KindString, Required: true},
				{
					Name:       "citations",
					Kind:       KindArray,
					Required:   false,
					HasDefault: true,
					Default:    []interface{}{},
					ItemKind:   KindString,
				},
				{Name: "diagnostics", Kind: KindObject, Required: false},
			},
		},
	}
}

// actionSchema demonstrates a discriminated union: a tool-invocation
// intent tagged by "type", with a distinct field shape per variant.
func actionSchema() *Validator {
	return &Validator{
		Name: "Action",
		Fields: &FieldSet{
			Discriminant: "type",
			Variants: map[string]*FieldSet{
				"search": {
					Fields: []Field{
						{Name: "type", Kind: KindString, Required: true, Enum: []string{"search"}},
						{Name: "query", Kind: KindString, Required: true},
					},
				},
				"booking": {
					Fields: []Field{
						{Name: "type", Kind: KindString, Required: true, Enum: []string{"booking"}},
						{Name: "venue", Kind: KindString, Required: true},
						{Name: "time", Kind: KindString, Required: true},
					},
				},
			},
		},
	}
}

// recommendationSchema demonstrates enums, numeric bounds, and array
// minimum-length together.
func recommendationSchema() *Validator {
	return &Validator{
		Name: "Recommendation",
		Fields: &FieldSet{
			Fields: []Field{
				{Name: "label", Kind: KindString, Required: true, Enum: []string{"low", "medium", "high"}},
				{Name: "score", Kind: KindNumber, Required: true, Min: floatPtr(0), Max: floatPtr(1)},
				{Name: "tags", Kind: KindArray, Required: true, MinItems: 1, ItemKind: KindString},
			},
		},
	}
}
