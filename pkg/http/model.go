package http

// ValidationError is one entry of a 422 "detail" list. The shape follows
// the pydantic convention so existing clients keep parsing it.
type ValidationError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}
