package types

// JoinParams carries the optional fields of a join request. Nil
// pointers mean the field was absent (or malformed and treated as
// absent).
type JoinParams struct {
	UserID string
	Name   *string
	Team   *string
	Role   *string
	Health *float64
}

// JoinResult is returned to the caller of a successful join.
type JoinResult struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// LocationParams carries an authenticated location update.
type LocationParams struct {
	UserID string
	Token  string
	Lat    *float64
	Lon    *float64
	TS     *float64
}

// AbilityParams carries an authenticated ability activation.
type AbilityParams struct {
	UserID    string
	Token     string
	AbilityID string
	TS        *float64
}

// StatusParams carries an authenticated status merge.
type StatusParams struct {
	UserID string
	Token  string
	Team   *string
	Role   *string
	Health *float64
}
