package models

import "encoding/json"

// Requests for insights HTTP endpoints. Unknown timeframes are resolved by the use case.

type SummaryRequest struct {
	TF string `query:"tf" json:"tf" default:"daily"`
}

type PatternsRequest struct {
	TF string `query:"tf" json:"tf" default:"5m"`
}

type BreadthMARequest struct {
	MA int `query:"ma" json:"ma" default:"50" validate:"gte=5,lte=200"`
}

// PushRequest is an ETL push: analytic family key to payload.
type PushRequest map[string]json.RawMessage
