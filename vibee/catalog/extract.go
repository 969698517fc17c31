package catalog

import "encoding/json"

// ExtractResults pulls the record list out of a catalog response. The
// API is inconsistent about envelopes, so four shapes are probed in
// order: {data:{results:[...]}}, {results:[...]}, {data:[...]}, and a
// bare top-level array. Returns nil when none match.
func ExtractResults(raw json.RawMessage) []json.RawMessage {
	if !present(raw) {
		return nil
	}

	var env struct {
		Data    json.RawMessage   `json:"data"`
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(raw, &env); err == nil {
		if present(env.Data) {
			var inner struct {
				Results []json.RawMessage `json:"results"`
			}
			if err := json.Unmarshal(env.Data, &inner); err == nil && len(inner.Results) > 0 {
				return inner.Results
			}
		}
		if len(env.Results) > 0 {
			return env.Results
		}
		if present(env.Data) {
			var arr []json.RawMessage
			if err := json.Unmarshal(env.Data, &arr); err == nil && len(arr) > 0 {
				return arr
			}
		}
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr
	}
	return nil
}

// present reports whether a raw field carries a usable value.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
