// Package graphql builds the account API schema. Fields that require a
// signed-in account are wrapped so that the session is checked before the
// resolver runs.
package graphql

import (
	"context"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/domain"
	"github.com/fastygo/ocxers/internal/metrics"
	"github.com/fastygo/ocxers/usecase/auth"
	"github.com/fastygo/ocxers/usecase/directory"
)

// Version is reported by whoAmI to anonymous callers.
const Version = "Backend v1.0.0"

// Accounts is the use case surface behind the resolvers.
type Accounts interface {
	SignIn(ctx context.Context, email, password string) auth.SignInResult
	InviteUsers(ctx context.Context, actor *domain.Account, invitees []auth.Invitee) []auth.InviteOutcome
	UpdateUser(ctx context.Context, actor *domain.Account, in auth.UserInput) (bool, error)
	UpdateUserOrder(ctx context.Context, items []auth.OrderInput) (bool, error)
	GetEmailByActivateCode(ctx context.Context, code string) (string, error)
	ActivateAccount(ctx context.Context, in auth.ActivationInput) (bool, error)
	SendResetPasswordLink(ctx context.Context, email string) (bool, error)
	CopyResetPasswordLink(ctx context.Context, actor *domain.Account, email, host string) (string, error)
	ChangePassword(ctx context.Context, actor *domain.Account, email, oldPassword, newPassword string) (bool, error)
	ResetPassword(ctx context.Context, code, newPassword string) (bool, error)
	DeleteUser(ctx context.Context, id string) (bool, error)
	GetUsers(ctx context.Context, f directory.Filters) ([]domain.Account, error)
	GetUserByID(ctx context.Context, id string) (*domain.Account, error)
}

var _ Accounts = (*auth.UseCase)(nil)

// Authenticator resolves the signed-in account of a request context.
type Authenticator interface {
	Resolve(ctx context.Context) (*domain.Account, error)
}

type protectedFn func(p graphql.ResolveParams, actor *domain.Account) (interface{}, error)

type resolver struct {
	accounts Accounts
	gate     Authenticator
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewSchema assembles the schema. m may be nil.
func NewSchema(accounts Accounts, gate Authenticator, m *metrics.Metrics, logger *zap.Logger) (graphql.Schema, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &resolver{accounts: accounts, gate: gate, metrics: m, logger: logger}
	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: r.queries()}),
		Mutation: graphql.NewObject(graphql.ObjectConfig{Name: "Mutation", Fields: r.mutations()}),
	})
}

// Execute runs one GraphQL request against schema.
func Execute(ctx context.Context, schema graphql.Schema, query, operation string, variables map[string]interface{}) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         schema,
		RequestString:  query,
		OperationName:  operation,
		VariableValues: variables,
		Context:        ctx,
	})
}

func (r *resolver) queries() graphql.Fields {
	return graphql.Fields{
		"whoAmI": &graphql.Field{
			Type: graphql.String,
			Resolve: r.public("whoAmI", func(p graphql.ResolveParams) (interface{}, error) {
				if actor, err := r.gate.Resolve(p.Context); err == nil {
					return actor.Email, nil
				}
				return Version, nil
			}),
		},
		"getUsers": &graphql.Field{
			Type:        graphql.NewList(userType),
			Description: "Requires authentication.",
			Args: graphql.FieldConfigArgument{
				"username":     &graphql.ArgumentConfig{Type: graphql.String},
				"organization": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
				"role":         &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
				"status":       &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
			},
			Resolve: r.protected("getUsers", func(p graphql.ResolveParams, _ *domain.Account) (interface{}, error) {
				users, err := r.accounts.GetUsers(p.Context, directory.Filters{
					Username:     argString(p.Args, "username"),
					Organization: argStrings(p.Args, "organization"),
					Role:         argStrings(p.Args, "role"),
					Status:       argStrings(p.Args, "status"),
				})
				if err != nil {
					return nil, err
				}
				out := make([]interface{}, 0, len(users))
				for i := range users {
					out = append(out, userObject(&users[i]))
				}
				return out, nil
			}),
		},
		"getUserById": &graphql.Field{
			Type:        userType,
			Description: "Requires authentication.",
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: r.protected("getUserById", func(p graphql.ResolveParams, _ *domain.Account) (interface{}, error) {
				user, err := r.accounts.GetUserByID(p.Context, argString(p.Args, "id"))
				if err != nil || user == nil {
					return nil, err
				}
				return userObject(user), nil
			}),
		},
	}
}

func (r *resolver) mutations() graphql.Fields {
	userArg := graphql.FieldConfigArgument{"user": &graphql.ArgumentConfig{Type: userInputType}}
	return graphql.Fields{
		"signIn": &graphql.Field{
			Type: authResponseType,
			Args: graphql.FieldConfigArgument{
				"email":    &graphql.ArgumentConfig{Type: graphql.String},
				"password": &graphql.ArgumentConfig{Type: graphql.String},
			},
			Resolve: r.public("signIn", func(p graphql.ResolveParams) (interface{}, error) {
				return signInObject(r.accounts.SignIn(p.Context, argString(p.Args, "email"), argString(p.Args, "password"))), nil
			}),
		},
		"signOut": &graphql.Field{
			Type: graphql.Boolean,
			Resolve: r.public("signOut", func(graphql.ResolveParams) (interface{}, error) {
				return true, nil
			}),
		},
		"changePassword": &graphql.Field{
			Type:        graphql.Boolean,
			Description: "Requires authentication.",
			Args: graphql.FieldConfigArgument{
				"email":       &graphql.ArgumentConfig{Type: graphql.String},
				"oldPassword": &graphql.ArgumentConfig{Type: graphql.String},
				"password":    &graphql.ArgumentConfig{Type: graphql.String},
			},
			Resolve: r.protected("changePassword", func(p graphql.ResolveParams, actor *domain.Account) (interface{}, error) {
				return r.accounts.ChangePassword(p.Context, actor,
					argString(p.Args, "email"), argString(p.Args, "oldPassword"), argString(p.Args, "password"))
			}),
		},
		"updateUser": &graphql.Field{
			Type:        graphql.Boolean,
			Description: "Requires authentication.",
			Args:        userArg,
			Resolve: r.protected("updateUser", func(p graphql.ResolveParams, actor *domain.Account) (interface{}, error) {
				m, _ := p.Args["user"].(map[string]interface{})
				return r.accounts.UpdateUser(p.Context, actor, userInput(m))
			}),
		},
		"updateUserOrder": &graphql.Field{
			Type:        graphql.Boolean,
			Description: "Requires authentication.",
			Args: graphql.FieldConfigArgument{
				"items": &graphql.ArgumentConfig{Type: graphql.NewList(userInputType)},
			},
			Resolve: r.protected("updateUserOrder", func(p graphql.ResolveParams, _ *domain.Account) (interface{}, error) {
				return r.accounts.UpdateUserOrder(p.Context, orderItems(argObjects(p.Args, "items")))
			}),
		},
		"inviteUsers": &graphql.Field{
			Type:        graphql.NewList(inviteResponseType),
			Description: "Requires authentication.",
			Args: graphql.FieldConfigArgument{
				"users": &graphql.ArgumentConfig{Type: graphql.NewList(userInputType)},
			},
			Resolve: r.protected("inviteUsers", func(p graphql.ResolveParams, actor *domain.Account) (interface{}, error) {
				raw := argObjects(p.Args, "users")
				invitees := make([]auth.Invitee, 0, len(raw))
				for _, m := range raw {
					invitees = append(invitees, invitee(m))
				}
				outcomes := r.accounts.InviteUsers(p.Context, actor, invitees)
				out := make([]interface{}, 0, len(outcomes))
				for _, o := range outcomes {
					out = append(out, outcomeObject(o))
				}
				return out, nil
			}),
		},
		"activateAccount": &graphql.Field{
			Type: graphql.Boolean,
			Args: userArg,
			Resolve: r.public("activateAccount", func(p graphql.ResolveParams) (interface{}, error) {
				m, _ := p.Args["user"].(map[string]interface{})
				return r.accounts.ActivateAccount(p.Context, activation(m))
			}),
		},
		"getEmailByActivateCode": &graphql.Field{
			Type: graphql.String,
			Args: graphql.FieldConfigArgument{
				"code": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: r.public("getEmailByActivateCode", func(p graphql.ResolveParams) (interface{}, error) {
				return r.accounts.GetEmailByActivateCode(p.Context, argString(p.Args, "code"))
			}),
		},
		"sendResetPasswordLink": &graphql.Field{
			Type: graphql.Boolean,
			Args: graphql.FieldConfigArgument{
				"email": &graphql.ArgumentConfig{Type: graphql.String},
			},
			Resolve: r.public("sendResetPasswordLink", func(p graphql.ResolveParams) (interface{}, error) {
				return r.accounts.SendResetPasswordLink(p.Context, argString(p.Args, "email"))
			}),
		},
		"copyResetPasswordLink": &graphql.Field{
			Type:        graphql.String,
			Description: "Requires authentication.",
			Args: graphql.FieldConfigArgument{
				"email": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"host":  &graphql.ArgumentConfig{Type: graphql.String},
			},
			Resolve: r.protected("copyResetPasswordLink", func(p graphql.ResolveParams, actor *domain.Account) (interface{}, error) {
				return r.accounts.CopyResetPasswordLink(p.Context, actor, argString(p.Args, "email"), argString(p.Args, "host"))
			}),
		},
		"resetPassword": &graphql.Field{
			Type: graphql.Boolean,
			Args: graphql.FieldConfigArgument{
				"code":     &graphql.ArgumentConfig{Type: graphql.String},
				"password": &graphql.ArgumentConfig{Type: graphql.String},
			},
			Resolve: r.public("resetPassword", func(p graphql.ResolveParams) (interface{}, error) {
				return r.accounts.ResetPassword(p.Context, argString(p.Args, "code"), argString(p.Args, "password"))
			}),
		},
		"deleteUser": &graphql.Field{
			Type:        graphql.Boolean,
			Description: "Requires authentication.",
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: r.protected("deleteUser", func(p graphql.ResolveParams, _ *domain.Account) (interface{}, error) {
				return r.accounts.DeleteUser(p.Context, argString(p.Args, "id"))
			}),
		},
	}
}

// public records the call and maps domain errors.
func (r *resolver) public(field string, fn graphql.FieldResolveFn) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		out, err := fn(p)
		r.metrics.ObserveResolver(field, err)
		if err != nil {
			r.logger.Debug("resolver failed", zap.String("field", field), zap.Error(err))
			return nil, toGraphQLError(err)
		}
		return out, nil
	}
}

// protected authenticates the request before running fn.
func (r *resolver) protected(field string, fn protectedFn) graphql.FieldResolveFn {
	return r.public(field, func(p graphql.ResolveParams) (interface{}, error) {
		actor, err := r.gate.Resolve(p.Context)
		if err != nil {
			return nil, err
		}
		return fn(p, actor)
	})
}
