package resolver

import (
	"context"
	"fmt"

	"ecosystem-api/internal/apperr"
	"ecosystem-api/internal/auth"
	"ecosystem-api/internal/store"

	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel/attribute"
)

type batchOp func(ctx context.Context, collection string, rows []store.Record) ([]store.Record, error)

type batchMutationDef struct {
	Name        string
	Operation   string
	Input       batchInputDef
	Description string
	op          func(r *Resolver) batchOp
}

func addOp(r *Resolver) batchOp    { return r.mutations.Add }
func updateOp(r *Resolver) batchOp { return r.mutations.Update }
func deleteOp(r *Resolver) batchOp { return r.mutations.Delete }

var batchMutations = []batchMutationDef{
	{Name: "budgetStatementsBatchAdd", Operation: "add", Input: budgetStatementAddInput, op: addOp},
	{Name: "budgetStatementWalletBatchAdd", Operation: "add", Input: walletAddInput, op: addOp},
	{Name: "budgetLineItemsBatchAdd", Operation: "add", Input: lineItemAddInput, op: addOp},
	{Name: "budgetLineItemsBatchUpdate", Operation: "update", Input: lineItemUpdateInput, op: updateOp, Description: "Every input must carry id."},
	{Name: "budgetLineItemsBatchDelete", Operation: "delete", Input: lineItemDeleteInput, op: deleteOp, Description: "Deletes by id and returns the deleted rows."},
}

func (r *Resolver) addBatchMutations(fields graphql.Fields) {
	for _, def := range batchMutations {
		entity, ok := entityByType(def.Input.Entity)
		if !ok {
			continue
		}
		fields[def.Name] = &graphql.Field{
			Type: graphql.NewList(r.buildGraphQLType(entity)),
			Args: graphql.FieldConfigArgument{
				"input": &graphql.ArgumentConfig{Type: graphql.NewList(r.batchInput(entity, def.Input))},
			},
			Description: def.Description,
			Resolve:     r.makeBatchResolver(entity, def),
		}
	}
}

func (r *Resolver) batchInput(e entityDef, def batchInputDef) *graphql.InputObject {
	required := make(map[string]bool, len(def.Required))
	for _, name := range def.Required {
		required[name] = true
	}
	fields := graphql.InputObjectConfigFieldMap{}
	for _, name := range def.Fields {
		f, ok := e.field(name)
		if !ok {
			continue
		}
		var typ graphql.Input = r.inputType(f)
		if required[name] {
			typ = graphql.NewNonNull(typ)
		}
		fields[name] = &graphql.InputObjectFieldConfig{Type: typ}
	}
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   def.Name,
		Fields: fields,
	})
}

func (r *Resolver) makeBatchResolver(e entityDef, def batchMutationDef) graphql.FieldResolveFn {
	op := def.op(r)
	return func(p graphql.ResolveParams) (interface{}, error) {
		rows := recordsFromInput(p.Args["input"])
		ctx, span := startResolverSpan(p.Context, "graphql.mutation.batch",
			attribute.String("graphql.field", def.Name),
			attribute.String("db.collection", e.Collection),
		)
		result, err := op(ctx, e.Collection, rows)
		setMutationResultAttributes(span, def.Operation, len(rows), len(result), err)
		finishResolverSpan(span, err)
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

// recordsFromInput converts a list argument into records. Null list items
// are dropped.
func recordsFromInput(raw interface{}) []store.Record {
	items, _ := raw.([]interface{})
	rows := make([]store.Record, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			rows = append(rows, store.Record(m))
		}
	}
	return rows
}

func (r *Resolver) buildUserType() *graphql.Object {
	if r.userType != nil {
		return r.userType
	}
	r.userType = graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.ID},
			"cuId":     &graphql.Field{Type: graphql.ID},
			"userName": &graphql.Field{Type: graphql.String},
		},
	})
	return r.userType
}

func (r *Resolver) addUserMutations(fields graphql.Fields) {
	userType := r.buildUserType()
	payload := graphql.NewObject(graphql.ObjectConfig{
		Name: "UserPayload",
		Fields: graphql.Fields{
			"user":      &graphql.Field{Type: userType},
			"authToken": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})
	nonNullString := graphql.NewNonNull(graphql.String)

	authInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "AuthInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"userName": &graphql.InputObjectFieldConfig{Type: nonNullString},
			"password": &graphql.InputObjectFieldConfig{Type: nonNullString},
		},
	})
	userInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "UserInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"cuId":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
			"userName": &graphql.InputObjectFieldConfig{Type: nonNullString},
			"password": &graphql.InputObjectFieldConfig{Type: nonNullString},
		},
	})
	passwordInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "UpdatePassword",
		Fields: graphql.InputObjectConfigFieldMap{
			"userName":    &graphql.InputObjectFieldConfig{Type: nonNullString},
			"password":    &graphql.InputObjectFieldConfig{Type: nonNullString},
			"newPassword": &graphql.InputObjectFieldConfig{Type: nonNullString},
		},
	})

	fields["userLogin"] = &graphql.Field{
		Type: graphql.NewNonNull(payload),
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(authInput)},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			in := inputArg(p.Args)
			session, err := r.gate.Login(p.Context, stringField(in, "userName"), stringField(in, "password"))
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{
				"user":      session.User,
				"authToken": session.Token,
			}, nil
		},
	}

	fields["userCreate"] = &graphql.Field{
		Type: graphql.NewNonNull(userType),
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{Type: userInput},
		},
		Description: "Requires the Manage capability on System.",
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			in := inputArg(p.Args)
			if in == nil {
				if _, ok := auth.ActorFromContext(p.Context); !ok {
					return nil, apperr.Authentication("Not authenticated, login first", nil)
				}
				return nil, apperr.Validation("missing_input", "input is required")
			}
			return r.gate.CreateUser(p.Context, auth.NewUser{
				CuID:     stringField(in, "cuId"),
				UserName: stringField(in, "userName"),
				Password: stringField(in, "password"),
			})
		},
	}

	fields["userChangePassword"] = &graphql.Field{
		Type: graphql.NewNonNull(userType),
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(passwordInput)},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			in := inputArg(p.Args)
			return r.gate.ChangePassword(p.Context, auth.PasswordChange{
				UserName:    stringField(in, "userName"),
				Password:    stringField(in, "password"),
				NewPassword: stringField(in, "newPassword"),
			})
		},
	}
}

func inputArg(args map[string]interface{}) map[string]interface{} {
	in, _ := args["input"].(map[string]interface{})
	return in
}

func stringField(in map[string]interface{}, key string) string {
	v, ok := in[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
