package rpcservice

import (
	"github.com/xeipuuv/gojsonschema"
)

// searchFiltersSchema constrains search.query's optional filters object to
// the shape spec §6 documents: {stream_id, content_type, is_read, is_saved},
// all optional, no additional properties — this is the concrete SPEC_FULL.md
// §4.H home for the teacher's gojsonschema dependency, validating before
// dispatch rather than letting a malformed filter reach the cache layer.
const searchFiltersSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"stream_id": {"type": "string"},
		"content_type": {"type": "string"},
		"is_read": {"type": "boolean"},
		"is_saved": {"type": "boolean"}
	}
}`

var searchFiltersValidator *gojsonschema.Schema

func init() {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(searchFiltersSchema))
	if err != nil {
		panic("rpcservice: invalid search filters schema: " + err.Error())
	}
	searchFiltersValidator = schema
}

// validateSearchFilters rejects a malformed filters object with an
// invalid-params error before it reaches cache.SearchItems.
func validateSearchFilters(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	result, err := searchFiltersValidator.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return invalidParamsf("filters: %v", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return invalidParamsf("filters: %v", msgs)
	}
	return nil
}
