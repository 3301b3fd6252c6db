package graphql

import (
	"strconv"

	"github.com/graphql-go/graphql"

	"github.com/fastygo/ocxers/domain"
	"github.com/fastygo/ocxers/usecase/auth"
)

var userStatusEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "UserStatus",
	Values: graphql.EnumValueConfigMap{
		string(domain.StatusActive):   &graphql.EnumValueConfig{Value: string(domain.StatusActive)},
		string(domain.StatusPending):  &graphql.EnumValueConfig{Value: string(domain.StatusPending)},
		string(domain.StatusDisabled): &graphql.EnumValueConfig{Value: string(domain.StatusDisabled)},
	},
})

var actionByType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ActionDateBy",
	Fields: graphql.Fields{
		"uid":         &graphql.Field{Type: graphql.String},
		"displayName": &graphql.Field{Type: graphql.String},
	},
})

var createdType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Created",
	Fields: graphql.Fields{
		"createdBy": &graphql.Field{Type: actionByType},
		"createdAt": &graphql.Field{Type: graphql.String},
	},
})

var updatedType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Updated",
	Fields: graphql.Fields{
		"updatedBy": &graphql.Field{Type: actionByType},
		"updatedAt": &graphql.Field{Type: graphql.String},
	},
})

var userType = graphql.NewObject(graphql.ObjectConfig{
	Name: "User",
	Fields: graphql.Fields{
		"id":           &graphql.Field{Type: graphql.String},
		"email":        &graphql.Field{Type: graphql.String},
		"firstName":    &graphql.Field{Type: graphql.String},
		"lastName":     &graphql.Field{Type: graphql.String},
		"username":     &graphql.Field{Type: graphql.String},
		"password":     &graphql.Field{Type: graphql.String},
		"status":       &graphql.Field{Type: userStatusEnum},
		"order":        &graphql.Field{Type: graphql.Float},
		"isActive":     &graphql.Field{Type: graphql.Boolean},
		"isCanary":     &graphql.Field{Type: graphql.Boolean},
		"role":         &graphql.Field{Type: graphql.String},
		"organization": &graphql.Field{Type: graphql.String},
		"created":      &graphql.Field{Type: createdType},
		"updated":      &graphql.Field{Type: updatedType},
	},
})

var fieldErrorType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Error",
	Fields: graphql.Fields{
		"path":    &graphql.Field{Type: graphql.String},
		"message": &graphql.Field{Type: graphql.String},
	},
})

var authResponseType = graphql.NewObject(graphql.ObjectConfig{
	Name: "AuthResponse",
	Fields: graphql.Fields{
		"token":  &graphql.Field{Type: graphql.String},
		"user":   &graphql.Field{Type: userType},
		"errors": &graphql.Field{Type: graphql.NewList(fieldErrorType)},
	},
})

var reasonType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Reason",
	Fields: graphql.Fields{
		"code": &graphql.Field{Type: graphql.Float},
		"data": &graphql.Field{Type: graphql.String},
	},
})

var inviteResponseType = graphql.NewObject(graphql.ObjectConfig{
	Name: "InviteUsersResponse",
	Fields: graphql.Fields{
		"status": &graphql.Field{Type: graphql.String},
		"value":  &graphql.Field{Type: graphql.String},
		"reason": &graphql.Field{Type: reasonType},
	},
})

var userInputType = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "UserInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"id":              &graphql.InputObjectFieldConfig{Type: graphql.String},
		"email":           &graphql.InputObjectFieldConfig{Type: graphql.String},
		"firstName":       &graphql.InputObjectFieldConfig{Type: graphql.String},
		"lastName":        &graphql.InputObjectFieldConfig{Type: graphql.String},
		"username":        &graphql.InputObjectFieldConfig{Type: graphql.String},
		"password":        &graphql.InputObjectFieldConfig{Type: graphql.String},
		"isActive":        &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
		"sendEmail":       &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
		"order":           &graphql.InputObjectFieldConfig{Type: graphql.Float},
		"isCanary":        &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
		"status":          &graphql.InputObjectFieldConfig{Type: userStatusEnum},
		"role":            &graphql.InputObjectFieldConfig{Type: graphql.String},
		"organization":    &graphql.InputObjectFieldConfig{Type: graphql.String},
		"newPassword":     &graphql.InputObjectFieldConfig{Type: graphql.String},
		"currentPassword": &graphql.InputObjectFieldConfig{Type: graphql.String},
	},
})

func userObject(a *domain.Account) map[string]interface{} {
	if a == nil {
		return nil
	}
	out := map[string]interface{}{
		"id":           a.ID,
		"email":        a.Email,
		"firstName":    a.FirstName,
		"lastName":     a.LastName,
		"username":     a.Username,
		"status":       string(a.Status),
		"order":        a.Order,
		"isActive":     a.IsActive,
		"isCanary":     a.IsCanary,
		"role":         a.Role,
		"organization": a.Organization,
	}
	if a.Status == "" {
		out["status"] = nil
	}
	if a.Created != nil {
		out["created"] = map[string]interface{}{
			"createdBy": actionBy(a.Created.CreatedBy),
			"createdAt": strconv.FormatInt(a.Created.CreatedAt, 10),
		}
	}
	if a.Updated != nil {
		out["updated"] = map[string]interface{}{
			"updatedBy": actionBy(a.Updated.UpdatedBy),
			"updatedAt": strconv.FormatInt(a.Updated.UpdatedAt, 10),
		}
	}
	return out
}

func actionBy(by domain.ActionBy) map[string]interface{} {
	return map[string]interface{}{"uid": by.UID, "displayName": by.DisplayName}
}

func signInObject(res auth.SignInResult) map[string]interface{} {
	out := map[string]interface{}{}
	if res.Token != "" {
		out["token"] = res.Token
	}
	if res.User != nil {
		out["user"] = userObject(res.User)
	}
	if len(res.Errors) > 0 {
		errs := make([]interface{}, 0, len(res.Errors))
		for _, fe := range res.Errors {
			errs = append(errs, map[string]interface{}{"path": fe.Path, "message": fe.Message})
		}
		out["errors"] = errs
	}
	return out
}

func outcomeObject(o auth.InviteOutcome) map[string]interface{} {
	out := map[string]interface{}{"status": o.Status}
	if o.Value != "" {
		out["value"] = o.Value
	}
	if o.Reason != nil {
		out["reason"] = map[string]interface{}{"code": float64(o.Reason.Code), "data": o.Reason.Data}
	}
	return out
}
