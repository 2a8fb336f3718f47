package commands

import (
	"github.com/satishbabariya/audit-go/audit"
	"github.com/satishbabariya/audit-go/dbclient"
	"github.com/satishbabariya/audit-go/storage"
)

func demoAggregateMapping() audit.AggregateMapping {
	return audit.AggregateMapping{
		"User": {
			Type:       "User",
			IDResolver: audit.ByField("id"),
		},
		"Post": {
			Type:        "Post",
			ExcludeSelf: true,
			Aggregates:  []audit.AggregateRef{audit.ForeignKeyAggregate("model", "User", "authorId")},
		},
		"Profile": {
			Type:        "Profile",
			ExcludeSelf: true,
			Aggregates:  []audit.AggregateRef{audit.ForeignKeyAggregate("model", "User", "userId")},
		},
		"Avatar": {
			Type:        "Avatar",
			ExcludeSelf: true,
			Aggregates:  []audit.AggregateRef{audit.ForeignKeyAggregate("model", "Profile", "profileId")},
		},
		"AvatarImage": {
			Type:        "AvatarImage",
			ExcludeSelf: true,
			Aggregates:  []audit.AggregateRef{audit.ForeignKeyAggregate("model", "Avatar", "avatarId")},
		},
	}
}

func buildDemoInterceptor() (*dbclient.Memory, *audit.Interceptor, error) {
	mem := dbclient.NewMemory(demoSchema())
	writer := storage.NewClientWriter(mem)

	opts := []audit.Option{
		audit.WithBasePrisma(mem),
		audit.WithWriter(writer),
		audit.WithAggregateMapping(demoAggregateMapping()),
		audit.WithRedactFields("password"),
		audit.WithGlobalExcludeFields("updatedAt"),
		audit.WithSampling(samplingRate),
	}
	if len(excludeModels) > 0 {
		opts = append(opts, audit.WithExcludeModels(excludeModels...))
	}

	cfg, err := audit.NewConfig(opts...)
	if err != nil {
		return nil, nil, err
	}

	ic := audit.NewInterceptor(cfg, demoSchema())
	return mem, ic, nil
}
