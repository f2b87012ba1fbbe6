package v1

// enqueueItemRequest is the body for POST /items.
type enqueueItemRequest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// itemResponse is the API representation of a tracked item.
type itemResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title,omitempty"`
	Monitoring bool   `json:"monitoring"`
}

// networkPolicyRequest is the body for PUT /network/policy. A pointer
// distinguishes an absent field from an explicit false.
type networkPolicyRequest struct {
	RestrictedOnly *bool `json:"restricted_only"`
}

// networkPolicyResponse echoes the applied policy.
type networkPolicyResponse struct {
	RestrictedOnly bool `json:"restricted_only"`
}
