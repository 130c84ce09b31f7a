// query/fixtures_test.go
package query

import "time"

// profile is the shared test record. Field registration happens once at
// package init through the path variables below.
type profile struct {
	Name       string            `json:"name"`
	Age        int               `json:"age"`
	Score      float64           `json:"score"`
	Flags      uint32            `json:"flags"`
	Active     bool              `json:"active"`
	Bio        string            `json:"bio"`
	Joined     time.Time         `json:"joined"`
	MiddleName *string           `json:"middleName,omitempty"`
	Home       *address          `json:"home,omitempty"`
	Tags       []string          `json:"tags"`
	Scores     []int             `json:"scores"`
	Attrs      map[string]string `json:"attrs"`
	Location   Point             `json:"location"`
	Ratings    *[]float64        `json:"ratings,omitempty"`
}

type address struct {
	City  string  `json:"city"`
	Zip   string  `json:"zip"`
	Suite *string `json:"suite,omitempty"`
}

var (
	pName = NewField("name",
		func(p profile) string { return p.Name },
		func(p profile, v string) profile { p.Name = v; return p })
	pAge = NewField("age",
		func(p profile) int { return p.Age },
		func(p profile, v int) profile { p.Age = v; return p })
	pScore = NewField("score",
		func(p profile) float64 { return p.Score },
		func(p profile, v float64) profile { p.Score = v; return p })
	pFlags = NewField("flags",
		func(p profile) uint32 { return p.Flags },
		func(p profile, v uint32) profile { p.Flags = v; return p })
	pActive = NewField("active",
		func(p profile) bool { return p.Active },
		func(p profile, v bool) profile { p.Active = v; return p })
	pBio = NewField("bio",
		func(p profile) string { return p.Bio },
		func(p profile, v string) profile { p.Bio = v; return p })
	pJoined = NewField("joined",
		func(p profile) time.Time { return p.Joined },
		func(p profile, v time.Time) profile { p.Joined = v; return p })
	pMiddleName = NewOptField("middleName",
		func(p profile) *string { return p.MiddleName },
		func(p profile, v *string) profile { p.MiddleName = v; return p })
	pHome = NewOptField("home",
		func(p profile) *address { return p.Home },
		func(p profile, v *address) profile { p.Home = v; return p })
	pTags = NewSliceField("tags",
		func(p profile) []string { return p.Tags },
		func(p profile, v []string) profile { p.Tags = v; return p })
	pScores = NewSliceField("scores",
		func(p profile) []int { return p.Scores },
		func(p profile, v []int) profile { p.Scores = v; return p })
	pAttrs = NewMapField("attrs",
		func(p profile) map[string]string { return p.Attrs },
		func(p profile, v map[string]string) profile { p.Attrs = v; return p })
	pLocation = NewField("location",
		func(p profile) Point { return p.Location },
		func(p profile, v Point) profile { p.Location = v; return p })

	pRatings = NewOptField("ratings",
		func(p profile) *[]float64 { return p.Ratings },
		func(p profile, v *[]float64) profile { p.Ratings = v; return p })

	aCity = NewField("city",
		func(a address) string { return a.City },
		func(a address, v string) address { a.City = v; return a })
	aZip = NewField("zip",
		func(a address) string { return a.Zip },
		func(a address, v string) address { a.Zip = v; return a })
	aSuite = NewOptField("suite",
		func(a address) *string { return a.Suite },
		func(a address, v *string) address { a.Suite = v; return a })

	pHomeCity  = Join(NotNull(pHome), aCity)
	pHomeSuite = Join(NotNull(pHome), aSuite)
)

func strptr(s string) *string { return &s }

// alice is a fully populated baseline record.
func alice() profile {
	return profile{
		Name:   "Alice",
		Age:    34,
		Score:  7.5,
		Flags:  0b1010,
		Active: true,
		Bio:    "Distributed systems engineer",
		Joined: time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC),
		Home:   &address{City: "Utrecht", Zip: "3511"},
		Tags:   []string{"vip", "beta"},
		Scores: []int{10, 20, 30},
		Attrs:  map[string]string{"team": "core", "tier": "gold"},
		Location: Point{
			Lat: 52.0907,
			Lon: 5.1214,
		},
	}
}
