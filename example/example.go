package example

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

type Person struct {
	ID   int    `db:"id,pk"`
	Name string `db:"name"`
	Team string `db:"team"`
}

func example() {
	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		panic(err)
	}

	_, err = sqldb.Exec(`
	CREATE TABLE person (
		id integer,
		name text,
		team text
	)`)
	if err != nil {
		panic(err)
	}

	var al = Person{1, "Alastair", "engineering"}
	var ed = Person{2, "Ed", "engineering"}
	var pedro = Person{4, "Pedro", "management"}
	var mark = Person{10, "Mark", "leadership"}
	var gus = Person{11, "Gustavo", "leadership"}
	var people = []Person{ed, al, pedro, mark, gus}
	for _, p := range people {
		_, err := sqldb.Exec("INSERT INTO person (id, name, team) VALUES (?, ?, ?)", p.ID, p.Name, p.Team)
		if err != nil {
			panic(err)
		}
	}

	adapter := ecto.NewSQLAdapter(sqldb)
	defer adapter.Close()
	repo := ecto.NewRepo(adapter, nil)

	// A compiled plan selecting whole person entities alongside an
	// upper-cased projection of the name.
	personPlan, err := plan.New(
		[]plan.Source{{Origin: plan.Origin{Table: "person", Alias: 0}, Entity: reflect.TypeOf(Person{})}},
		[]plan.Column{
			{Prov: plan.WholeEntity{Source: 0}},
			{Expr: "upper(t0.name)", Prov: plan.Field{Tag: types.TagString}},
		},
		plan.Pair{Left: plan.SourceRef{}, Right: plan.Placeholder{}},
	)
	if err != nil {
		panic(err)
	}

	ctx := context.Background()

	results, err := repo.All(ctx, personPlan.WithFilter("team", "engineering"))
	if err != nil {
		panic(err)
	}
	for _, result := range results {
		pair := result.([]any)
		person := pair[0].(*Person)
		fmt.Printf("%s is shouted at as %s\n", person.Name, pair[1].(string))
	}

	// Fetch by primary key.
	got, err := repo.Get(ctx, personPlan, 4)
	if err != nil {
		panic(err)
	}
	fmt.Printf("person 4 is %s\n", got.([]any)[0].(*Person).Name)

	// Retire the whole leadership team, then make room.
	count, err := repo.UpdateAll(ctx, personPlan.WithFilter("team", "leadership"), map[string]any{"team": "emeritus"})
	if err != nil {
		panic(err)
	}
	fmt.Printf("%d leaders retired\n", count)

	count, err = repo.DeleteAll(ctx, personPlan.WithFilter("team", "emeritus"))
	if err != nil {
		panic(err)
	}
	fmt.Printf("%d rows deleted\n", count)
}
