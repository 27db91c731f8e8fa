package demo

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	_ "github.com/mattn/go-sqlite3"

	"github.com/elbow-jason/ecto"
	"github.com/elbow-jason/ecto/plan"
	"github.com/elbow-jason/ecto/types"
)

type Place struct {
	Name       string `db:"town_name,pk"`
	Population int    `db:"population"`
}

func example() error {
	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return err
	}
	_, err = sqldb.Exec(`
		CREATE TABLE location (
			town_name text,
			population integer
		)`)
	if err != nil {
		return err
	}
	towns := []Place{
		{Name: "Llanddew", Population: 300},
		{Name: "Brecon", Population: 8250},
	}
	for _, town := range towns {
		_, err = sqldb.Exec("INSERT INTO location (town_name, population) VALUES (?, ?)", town.Name, town.Population)
		if err != nil {
			return err
		}
	}

	adapter := ecto.NewSQLAdapter(sqldb)
	defer adapter.Close()
	repo := ecto.NewRepo(adapter, nil)

	// Map-shaped results: each row materializes to a map holding the
	// hydrated place under "place" and a projected column under
	// "crowded". Both map entries naming the place share one hydration.
	placePlan, err := plan.New(
		[]plan.Source{{Origin: plan.Origin{Table: "location", Alias: 0}, Entity: reflect.TypeOf(Place{})}},
		[]plan.Column{
			{Prov: plan.WholeEntity{Source: 0}},
			{Expr: "t0.population > 1000", Prov: plan.TaggedExpr{Tag: types.TagBoolean}},
		},
		plan.Map{Entries: []plan.MapEntry{
			{Key: "place", Value: plan.SourceRef{}},
			{Key: "crowded", Value: plan.Placeholder{}},
		}},
	)
	if err != nil {
		return err
	}

	ctx := context.Background()
	result, err := repo.GetBy(ctx, placePlan, map[string]any{"town_name": "Brecon"})
	if err != nil {
		return err
	}
	row := result.(map[string]any)
	place := row["place"].(*Place)
	fmt.Printf("%s (population %d, crowded: %v)\n", place.Name, place.Population, row["crowded"])
	return nil
}
