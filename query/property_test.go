// query/property_test.go
package query

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genProfile() gopter.Gen {
	return gopter.CombineGens(
		gen.AlphaString(),
		gen.IntRange(0, 120),
		gen.Float64Range(-1000, 1000),
		gen.UInt32(),
		gen.Bool(),
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.IntRange(-50, 50)),
	).Map(func(vs []interface{}) profile {
		return profile{
			Name:   vs[0].(string),
			Age:    vs[1].(int),
			Score:  vs[2].(float64),
			Flags:  vs[3].(uint32),
			Active: vs[4].(bool),
			Tags:   vs[5].([]string),
			Scores: vs[6].([]int),
		}
	})
}

func TestProperty_BooleanLaws(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("double negation is identity", prop.ForAll(
		func(p profile, threshold int) bool {
			c := Gt(pAge, threshold)
			return Eval(c, p) == Eval(Not(Not(c)), p)
		},
		genProfile(),
		gen.IntRange(0, 120),
	))

	properties.Property("De Morgan over two leaves", prop.ForAll(
		func(p profile, threshold int, name string) bool {
			a, b := Gt(pAge, threshold), Eq(pName, name)
			return Eval(Not(And(a, b)), p) == Eval(Or(Not(a), Not(b)), p)
		},
		genProfile(),
		gen.IntRange(0, 120),
		gen.AlphaString(),
	))

	properties.Property("And with Always is identity", prop.ForAll(
		func(p profile, threshold int) bool {
			c := Lte(pAge, threshold)
			return Eval(And(c, Always[profile]()), p) == Eval(c, p)
		},
		genProfile(),
		gen.IntRange(0, 120),
	))

	properties.Property("Or with Never is identity", prop.ForAll(
		func(p profile, threshold int) bool {
			c := Lte(pAge, threshold)
			return Eval(Or(c, Never[profile]()), p) == Eval(c, p)
		},
		genProfile(),
		gen.IntRange(0, 120),
	))

	properties.TestingRun(t)
}

func TestProperty_ApplyLaws(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("Set is idempotent", prop.ForAll(
		func(p profile, name string) bool {
			m := Set(pName, name)
			once := Apply(m, p)
			return reflect.DeepEqual(Apply(m, once), once)
		},
		genProfile(),
		gen.AlphaString(),
	))

	properties.Property("Inc composes additively", prop.ForAll(
		func(p profile, a, b int) bool {
			viaTwo := Apply(Inc(pAge, b), Apply(Inc(pAge, a), p))
			viaOne := Apply(Inc(pAge, a+b), p)
			return viaTwo.Age == viaOne.Age
		},
		genProfile(),
		gen.IntRange(-100, 100),
		gen.IntRange(-100, 100),
	))

	properties.Property("Chain equals sequential application", prop.ForAll(
		func(p profile, name string, delta int) bool {
			m1, m2 := Set(pName, name), Inc(pAge, delta)
			chained := Apply(Chain(m1, m2), p)
			sequential := Apply(m2, Apply(m1, p))
			return chained.Name == sequential.Name && chained.Age == sequential.Age
		},
		genProfile(),
		gen.AlphaString(),
		gen.IntRange(-100, 100),
	))

	properties.Property("apply never mutates the input record", prop.ForAll(
		func(p profile, delta int) bool {
			before := p.Age
			_ = Apply(Inc(pAge, delta), p)
			return p.Age == before
		},
		genProfile(),
		gen.IntRange(-100, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_CodecRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("encode/decode preserves evaluation", prop.ForAll(
		func(p profile, threshold int, name, needle string) bool {
			c := And(
				Or(Eq(pName, name), Gt(pAge, threshold)),
				Not(Contains(pBio, needle)),
			)
			data, err := EncodeCondition(c)
			if err != nil {
				return false
			}
			decoded, err := DecodeCondition[profile](data)
			if err != nil {
				return false
			}
			return c.Equal(decoded) && Eval(c, p) == Eval(decoded, p)
		},
		genProfile(),
		gen.IntRange(0, 120),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("encoding is stable across decode cycles", prop.ForAll(
		func(threshold int, name string) bool {
			c := And(Eq(pName, name), Gte(pAge, threshold))
			first, err := EncodeCondition(c)
			if err != nil {
				return false
			}
			decoded, err := DecodeCondition[profile](first)
			if err != nil {
				return false
			}
			second, err := EncodeCondition(decoded)
			if err != nil {
				return false
			}
			return string(first) == string(second)
		},
		gen.IntRange(0, 120),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
