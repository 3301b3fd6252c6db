package transport

import "encoding/json"

// Party names the sender or recipient of a notification.
type Party struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

// NotifyRequest pushes a notification to one account or, without an email,
// to every connection.
type NotifyRequest struct {
	Email        string `json:"email"`
	Message      string `json:"message"`
	Type         string `json:"type"`
	From         *Party `json:"from"`
	To           *Party `json:"to"`
	ExtraMessage string `json:"extraMessage"`
}

// GraphQLRequest is the standard GraphQL-over-HTTP body.
type GraphQLRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// ParseVariables decodes the variables query parameter of GET requests.
func ParseVariables(raw []byte) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var vars map[string]interface{}
	if err := json.Unmarshal(raw, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}
