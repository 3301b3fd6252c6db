package graphql

import (
	"github.com/fastygo/ocxers/domain"
	"github.com/fastygo/ocxers/usecase/auth"
)

func argString(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func argStrings(args map[string]interface{}, key string) []string {
	list, _ := args[key].([]interface{})
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func argObjects(args map[string]interface{}, key string) []map[string]interface{} {
	list, _ := args[key].([]interface{})
	out := make([]map[string]interface{}, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func optString(m map[string]interface{}, key string) *string {
	if s, ok := m[key].(string); ok {
		return &s
	}
	return nil
}

func optBool(m map[string]interface{}, key string) *bool {
	if b, ok := m[key].(bool); ok {
		return &b
	}
	return nil
}

func optFloat(m map[string]interface{}, key string) *float64 {
	switch v := m[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	}
	return nil
}

func userInput(m map[string]interface{}) auth.UserInput {
	in := auth.UserInput{
		ID:              argString(m, "id"),
		Email:           optString(m, "email"),
		FirstName:       optString(m, "firstName"),
		LastName:        optString(m, "lastName"),
		Username:        optString(m, "username"),
		Password:        optString(m, "password"),
		IsActive:        optBool(m, "isActive"),
		IsCanary:        optBool(m, "isCanary"),
		Order:           optFloat(m, "order"),
		Role:            optString(m, "role"),
		Organization:    optString(m, "organization"),
		CurrentPassword: argString(m, "currentPassword"),
		NewPassword:     argString(m, "newPassword"),
	}
	if s := optString(m, "status"); s != nil {
		in.Status = domain.Ptr(domain.AccountStatus(*s))
	}
	return in
}

func invitee(m map[string]interface{}) auth.Invitee {
	send, _ := m["sendEmail"].(bool)
	return auth.Invitee{
		ID:           argString(m, "id"),
		Email:        argString(m, "email"),
		Username:     argString(m, "username"),
		FirstName:    argString(m, "firstName"),
		LastName:     argString(m, "lastName"),
		Role:         argString(m, "role"),
		Organization: argString(m, "organization"),
		SendEmail:    send,
	}
}

func activation(m map[string]interface{}) auth.ActivationInput {
	return auth.ActivationInput{
		Email:     argString(m, "email"),
		Password:  argString(m, "password"),
		FirstName: optString(m, "firstName"),
		LastName:  optString(m, "lastName"),
		Username:  optString(m, "username"),
	}
}

func orderItems(list []map[string]interface{}) []auth.OrderInput {
	items := make([]auth.OrderInput, 0, len(list))
	for _, m := range list {
		item := auth.OrderInput{ID: argString(m, "id")}
		if o := optFloat(m, "order"); o != nil {
			item.Order = *o
		}
		items = append(items, item)
	}
	return items
}
