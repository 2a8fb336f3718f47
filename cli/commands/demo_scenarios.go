package commands

import (
	"context"
	"fmt"

	"github.com/satishbabariya/audit-go/audit"
	"github.com/satishbabariya/audit-go/audit/auditctx"
	"github.com/satishbabariya/audit-go/dbclient"
	"github.com/satishbabariya/audit-go/value"
)

type scenario struct {
	name string
	run  func(ic *audit.Interceptor, mem *dbclient.Memory) (rowsBefore, rowsAfter int, err error)
}

func actorCtx(id string) context.Context {
	return auditctx.With(context.Background(), auditctx.AuditContext{
		Actor: auditctx.Actor{Category: "user", Type: "User", ID: id},
	})
}

func countRows(mem *dbclient.Memory) int {
	d, _ := mem.Delegate("AuditLog")
	rows, _ := d.FindMany(context.Background(), value.Null())
	return len(rows)
}

func scenarios() []scenario {
	return []scenario{
		{
			name: "1. create user under an actor",
			run: func(ic *audit.Interceptor, mem *dbclient.Memory) (int, int, error) {
				before := countRows(mem)
				call := audit.OperationCall{Model: "User", Action: audit.ActionCreate, Args: value.FromAny(map[string]interface{}{
					"data": map[string]interface{}{"email": "a@x", "name": "A"},
				})}
				_, err := ic.ExecuteDelegate(actorCtx("u1"), call)
				return before, countRows(mem), err
			},
		},
		{
			name: "2. create user with nested posts.create",
			run: func(ic *audit.Interceptor, mem *dbclient.Memory) (int, int, error) {
				before := countRows(mem)
				call := audit.OperationCall{Model: "User", Action: audit.ActionCreate, Args: value.FromAny(map[string]interface{}{
					"data": map[string]interface{}{
						"email": "b@x",
						"name":  "B",
						"posts": map[string]interface{}{
							"create": []interface{}{
								map[string]interface{}{"title": "P1"},
								map[string]interface{}{"title": "P2"},
							},
						},
					},
				})}
				_, err := ic.ExecuteDelegate(actorCtx("u1"), call)
				return before, countRows(mem), err
			},
		},
		{
			name: "3. update only an excluded field",
			run: func(ic *audit.Interceptor, mem *dbclient.Memory) (int, int, error) {
				userDelegate, _ := mem.Delegate("User")
				row, err := userDelegate.Create(context.Background(), value.FromAny(map[string]interface{}{"email": "c@x", "name": "C"}))
				if err != nil {
					return 0, 0, err
				}
				id, _ := row.Get("id")
				idStr, _ := id.AsStr()

				before := countRows(mem)
				call := audit.OperationCall{Model: "User", Action: audit.ActionUpdate, Args: value.FromAny(map[string]interface{}{
					"where": map[string]interface{}{"id": idStr},
					"data":  map[string]interface{}{"updatedAt": "2026-07-31T00:00:00Z"},
				})}
				_, err = ic.ExecuteDelegate(actorCtx("u1"), call)
				return before, countRows(mem), err
			},
		},
		{
			name: "4. update name and redacted password",
			run: func(ic *audit.Interceptor, mem *dbclient.Memory) (int, int, error) {
				userDelegate, _ := mem.Delegate("User")
				row, err := userDelegate.Create(context.Background(), value.FromAny(map[string]interface{}{"email": "d@x", "name": "A", "password": "x"}))
				if err != nil {
					return 0, 0, err
				}
				id, _ := row.Get("id")
				idStr, _ := id.AsStr()

				before := countRows(mem)
				call := audit.OperationCall{Model: "User", Action: audit.ActionUpdate, Args: value.FromAny(map[string]interface{}{
					"where": map[string]interface{}{"id": idStr},
					"data":  map[string]interface{}{"name": "B", "password": "y"},
				})}
				_, err = ic.ExecuteDelegate(actorCtx("u1"), call)
				return before, countRows(mem), err
			},
		},
		{
			name: "5. deep nested upsert, all create branches",
			run: func(ic *audit.Interceptor, mem *dbclient.Memory) (int, int, error) {
				userDelegate, _ := mem.Delegate("User")
				row, err := userDelegate.Create(context.Background(), value.FromAny(map[string]interface{}{"email": "e@x", "name": "E"}))
				if err != nil {
					return 0, 0, err
				}
				id, _ := row.Get("id")
				idStr, _ := id.AsStr()

				before := countRows(mem)
				call := audit.OperationCall{Model: "Profile", Action: audit.ActionUpsert, Args: value.FromAny(map[string]interface{}{
					"where": map[string]interface{}{"userId": idStr},
					"create": map[string]interface{}{
						"userId": idStr,
						"avatar": map[string]interface{}{
							"create": map[string]interface{}{
								"image": map[string]interface{}{
									"create": map[string]interface{}{"url": "http://x/1.png"},
								},
							},
						},
					},
					"update": map[string]interface{}{},
				})}
				_, err = ic.ExecuteDelegate(actorCtx("u1"), call)
				return before, countRows(mem), err
			},
		},
		{
			name: "6. deep nested upsert, all update branches",
			run: func(ic *audit.Interceptor, mem *dbclient.Memory) (int, int, error) {
				userDelegate, _ := mem.Delegate("User")
				row, err := userDelegate.Create(context.Background(), value.FromAny(map[string]interface{}{"email": "f@x", "name": "F"}))
				if err != nil {
					return 0, 0, err
				}
				id, _ := row.Get("id")
				idStr, _ := id.AsStr()

				profileDelegate, _ := mem.Delegate("Profile")
				profile, err := profileDelegate.Create(context.Background(), value.FromAny(map[string]interface{}{"userId": idStr}))
				if err != nil {
					return 0, 0, err
				}
				profileID, _ := profile.Get("id")
				profileIDStr, _ := profileID.AsStr()

				avatarDelegate, _ := mem.Delegate("Avatar")
				avatar, err := avatarDelegate.Create(context.Background(), value.FromAny(map[string]interface{}{"profileId": profileIDStr}))
				if err != nil {
					return 0, 0, err
				}
				avatarID, _ := avatar.Get("id")
				avatarIDStr, _ := avatarID.AsStr()

				imageDelegate, _ := mem.Delegate("AvatarImage")
				if _, err := imageDelegate.Create(context.Background(), value.FromAny(map[string]interface{}{"avatarId": avatarIDStr, "url": "http://x/old.png"})); err != nil {
					return 0, 0, err
				}

				before := countRows(mem)
				call := audit.OperationCall{Model: "Profile", Action: audit.ActionUpsert, Args: value.FromAny(map[string]interface{}{
					"where":  map[string]interface{}{"userId": idStr},
					"create": map[string]interface{}{"userId": idStr},
					"update": map[string]interface{}{
						"avatar": map[string]interface{}{
							"upsert": map[string]interface{}{
								"where":  map[string]interface{}{"profileId": profileIDStr},
								"create": map[string]interface{}{},
								"update": map[string]interface{}{
									"image": map[string]interface{}{
										"upsert": map[string]interface{}{
											"where":  map[string]interface{}{"avatarId": avatarIDStr},
											"create": map[string]interface{}{"url": "http://x/new.png"},
											"update": map[string]interface{}{"url": "http://x/new.png"},
										},
									},
								},
							},
						},
					},
				})}
				_, err = ic.ExecuteDelegate(actorCtx("u1"), call)
				return before, countRows(mem), err
			},
		},
	}
}

func runScenario(s scenario, ic *audit.Interceptor, mem *dbclient.Memory) error {
	before, after, err := s.run(ic, mem)
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	fmt.Printf("%-45s %d -> %d audit rows\n", s.name, before, after)
	return nil
}
