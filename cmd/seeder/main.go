// Copyright 2026 Zein Alasali
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Seeder loads a demo construction dataset through the synchronizer, so a
// local instance has projects, cost items, and expenses to query against.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/zeinalasali/buildquery"
	"github.com/zeinalasali/buildquery/config"
	"github.com/zeinalasali/buildquery/core"
)

var (
	configPath = flag.String("config", "config.yaml", "path to YAML configuration file")
	orgID      = flag.Uint64("org", 1, "organization id to seed")
)

func init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// demoSnapshots returns the seed dataset for one organization: two projects
// with budgeted cost items and recorded expenses.
func demoSnapshots(org core.ID) []*core.EntitySnapshot {
	key := func(t core.EntityType, id core.ID) core.EntityKey {
		return core.EntityKey{OrgID: org, Type: t, EntityID: id}
	}

	return []*core.EntitySnapshot{
		{
			Key:         key(core.EntityTypeProject, 1),
			Name:        "Riverside Apartments",
			Description: "Six-story residential building with underground parking",
			Status:      "active",
		},
		{
			Key:         key(core.EntityTypeProject, 2),
			Name:        "Harbor Street Renovation",
			Description: "Facade restoration and roof replacement for a heritage warehouse",
			Status:      "planning",
		},
		{
			Key:         key(core.EntityTypeCostItem, 101),
			Name:        "Pour foundation",
			ProjectName: "Riverside Apartments",
			Category:    "structural",
			Amount:      42000, Currency: "USD",
			Quantity: 350, Unit: "m3",
		},
		{
			Key:         key(core.EntityTypeCostItem, 102),
			Name:        "Structural steel framing",
			ProjectName: "Riverside Apartments",
			Category:    "structural",
			Amount:      88000, Currency: "USD",
		},
		{
			Key:         key(core.EntityTypeCostItem, 103),
			Name:        "Electrical rough-in",
			ProjectName: "Riverside Apartments",
			Category:    "electrical",
			Amount:      31000, Currency: "USD",
		},
		{
			Key:         key(core.EntityTypeCostItem, 104),
			Name:        "Roof replacement",
			ProjectName: "Harbor Street Renovation",
			Category:    "roofing",
			Amount:      56000, Currency: "USD",
			Quantity: 900, Unit: "m2",
		},
		{
			Key:         key(core.EntityTypeExpense, 201),
			Name:        "Concrete delivery",
			ProjectName: "Riverside Apartments",
			Category:    "structural",
			Amount:      18400, Currency: "USD",
			Notes:       "first of three scheduled pours",
		},
		{
			Key:         key(core.EntityTypeExpense, 202),
			Name:        "Rebar order",
			ProjectName: "Riverside Apartments",
			Category:    "structural",
			Amount:      9600, Currency: "USD",
		},
		{
			Key:         key(core.EntityTypeExpense, 203),
			Name:        "Crane rental",
			ProjectName: "Riverside Apartments",
			Category:    "equipment",
			Amount:      7200, Currency: "USD",
			Quantity: 3, Unit: "days",
		},
		{
			Key:         key(core.EntityTypeExpense, 204),
			Name:        "Scaffolding install",
			ProjectName: "Harbor Street Renovation",
			Category:    "equipment",
			Amount:      5400, Currency: "USD",
		},
	}
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	config.LoadEnv()

	aiConfig := cfg.AIConfig()
	if err := aiConfig.Validate(); err != nil {
		panic(err)
	}

	engine, err := buildquery.NewEngine(cfg.Storage.Path,
		buildquery.WithAIConfig(aiConfig),
		buildquery.WithRetryConfig(cfg.RetryConfig()),
	)
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	sync, err := engine.NewSynchronizer()
	if err != nil {
		panic(err)
	}
	defer sync.Release()

	ctx := context.Background()
	snapshots := demoSnapshots(core.ID(*orgID))
	for _, snapshot := range snapshots {
		err := sync.Apply(ctx, core.EntityChanged{
			Key:      snapshot.Key,
			Op:       core.OpCreate,
			Snapshot: snapshot,
		})
		if err != nil {
			panic(err)
		}
	}
	sync.Wait()

	fmt.Printf("Seeded %d entities for org %d\n", len(snapshots), *orgID)
}
