package models

// Requests for the market HTTP endpoints. Defined in domain for consistency and reuse.

type SnapshotRequest struct {
	Market string `query:"market" json:"market" validate:"required,oneof=WTI Brent"`
	AsOf   string `query:"asOf" json:"asOf"`
}

type DriversRequest struct {
	Market string `query:"market" json:"market" validate:"required,oneof=WTI Brent"`
	AsOf   string `query:"asOf" json:"asOf"`
}

type RegimeRequest struct {
	Market string `query:"market" json:"market" validate:"required,oneof=WTI Brent"`
	AsOf   string `query:"asOf" json:"asOf"`
}

// EventsRequest carries windowDays as a string so that an absent parameter can
// default to 7 while an explicit "0" still fails validation.
type EventsRequest struct {
	Market     string `query:"market" json:"market" validate:"required,oneof=WTI Brent"`
	AsOf       string `query:"asOf" json:"asOf"`
	WindowDays string `query:"windowDays" json:"windowDays"`
}
