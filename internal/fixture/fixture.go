// Package fixture generates deterministic survey data shaped like the two
// study inputs. Every generator takes an explicit seed; nothing reads global
// random state.
package fixture

import (
	"math"
	"math/rand/v2"

	"github.com/KaramelBytes/surveyate/internal/dataset"
)

// Country codes used by both inputs.
const (
	Spain   = 1
	Germany = 2
)

type demographics struct {
	ageMean, ageSD float64
	female         float64
	education      []float64
	unemployed     float64
}

var segments = map[int]demographics{
	Spain:   {ageMean: 44, ageSD: 18, female: 0.51, education: []float64{0.25, 0.45, 0.30}, unemployed: 0.15},
	Germany: {ageMean: 46, ageSD: 19, female: 0.52, education: []float64{0.18, 0.40, 0.42}, unemployed: 0.06},
}

var (
	satdemoP  = []float64{0.10, 0.15, 0.20, 0.20, 0.15, 0.10, 0.10}
	citizenP  = []float64{0.10, 0.15, 0.20, 0.20, 0.25, 0.10}
	crisisP   = []float64{0.05, 0.05, 0.10, 0.10, 0.15, 0.15, 0.10, 0.10, 0.10, 0.05, 0.05}
	econP     = []float64{0.10, 0.15, 0.20, 0.25, 0.30}
	attitudeP = []float64{0.10, 0.15, 0.20, 0.25, 0.20, 0.10}
)

// AttitudeItems are the six EU attitude items, in file order.
var AttitudeItems = []string{"opinioneu", "countryeu", "eubenefic", "euworth", "eurestric", "eunotall"}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// choice draws lo+i with probability p[i].
func choice(r *rand.Rand, lo int, p []float64) float64 {
	u := r.Float64()
	acc := 0.0
	for i, w := range p {
		acc += w
		if u < acc {
			return float64(lo + i)
		}
	}
	return float64(lo + len(p) - 1)
}

func bernoulli(r *rand.Rand, p float64) float64 {
	if r.Float64() < p {
		return 1
	}
	return 0
}

// Segment generates one per-country synthetic segment with small-integer
// codes: treatment in {0,1}, gender in {1,2}, education in {1,2,3} and the
// unemployment indicator in {0,1}. Age is a truncated normal draw and can
// fall below zero, as in the generator the study used.
func Segment(seed uint64, country, n int) *dataset.Dataset {
	r := newRand(seed)
	demo, ok := segments[country]
	if !ok {
		demo = segments[Spain]
	}
	cols := map[string][]float64{}
	order := []string{"Nationality", "Age", "Gender", "Education", "Employment", "Treatment",
		"satdemo", "european_citizen", "crisis_country", "economicsituation"}
	order = append(order, AttitudeItems...)
	for _, name := range order {
		cols[name] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		cols["Nationality"][i] = float64(country)
		cols["Age"][i] = math.Trunc(demo.ageMean + demo.ageSD*r.NormFloat64())
		cols["Gender"][i] = 1 + bernoulli(r, demo.female)
		cols["Education"][i] = choice(r, 1, demo.education)
		cols["Employment"][i] = bernoulli(r, demo.unemployed)
		cols["Treatment"][i] = bernoulli(r, 0.5)
		cols["satdemo"][i] = choice(r, 0, satdemoP)
		cols["european_citizen"][i] = choice(r, 1, citizenP)
		cols["crisis_country"][i] = choice(r, 0, crisisP)
		cols["economicsituation"][i] = choice(r, 1, econP)
		for _, item := range AttitudeItems {
			cols[item][i] = choice(r, 1, attitudeP)
		}
	}
	out := make([]*dataset.Column, len(order))
	for j, name := range order {
		out[j] = dataset.NewNumeric(name, cols[name], nil)
	}
	label := "spain"
	if country == Germany {
		label = "germany"
	}
	ds, _ := dataset.New(label, dataset.Keys(label, n), out...)
	return ds
}

var likertLabels = []string{
	"Muy en desacuerdo",
	"Más bien en desacuerdo",
	"Ni de acuerdo ni en desacuerdo",
	"Más bien de acuerdo",
	"Muy de acuerdo",
}

var employmentLabels = []string{"Employed", "Self-employed", "Student", "Retired", "Housework", "Other"}

// Original generates a fielded-style dataset: Likert items and gender as
// Spanish text labels, employment as status labels, treatment coded {1,2}
// and a country column. Each opinioneu, satdemo and european_citizen value
// is null with probability missing.
func Original(seed uint64, n int, missing float64) *dataset.Dataset {
	r := newRand(seed)
	num := map[string][]float64{}
	numNull := map[string][]bool{}
	numOrder := []string{"treatment", "country", "age", "education", "satdemo", "european_citizen",
		"crisis_country", "economicsituation", "opinioneu", "countryeu"}
	for _, name := range numOrder {
		num[name] = make([]float64, n)
		numNull[name] = make([]bool, n)
	}
	txtOrder := []string{"female", "employmentstatus", "eubeneficial", "euworthforcountry", "eurestrictedpolicies", "eunotallow"}
	txt := map[string][]string{}
	for _, name := range txtOrder {
		txt[name] = make([]string, n)
	}
	for i := 0; i < n; i++ {
		country := 1 + int(bernoulli(r, 0.5))
		demo := segments[country]
		num["treatment"][i] = 1 + bernoulli(r, 0.5)
		num["country"][i] = float64(country)
		num["age"][i] = math.Max(18, math.Round(demo.ageMean+demo.ageSD*r.NormFloat64()))
		num["education"][i] = choice(r, 1, demo.education)
		num["satdemo"][i] = choice(r, 0, satdemoP)
		num["european_citizen"][i] = choice(r, 1, citizenP)
		num["crisis_country"][i] = choice(r, 0, crisisP)
		num["economicsituation"][i] = choice(r, 1, econP)
		num["opinioneu"][i] = choice(r, 1, attitudeP)
		num["countryeu"][i] = choice(r, 1, attitudeP)
		for _, name := range []string{"opinioneu", "satdemo", "european_citizen"} {
			if r.Float64() < missing {
				numNull[name][i] = true
			}
		}
		txt["female"][i] = "Hombre"
		if bernoulli(r, demo.female) == 1 {
			txt["female"][i] = "Mujer"
		}
		if bernoulli(r, demo.unemployed) == 1 {
			txt["employmentstatus"][i] = "Unemployed"
		} else {
			txt["employmentstatus"][i] = employmentLabels[r.IntN(len(employmentLabels))]
		}
		for _, name := range txtOrder[2:] {
			txt[name][i] = likertLabels[r.IntN(len(likertLabels))]
		}
	}
	cols := make([]*dataset.Column, 0, len(numOrder)+len(txtOrder))
	for _, name := range numOrder {
		cols = append(cols, dataset.NewNumeric(name, num[name], numNull[name]))
	}
	for _, name := range txtOrder {
		cols = append(cols, dataset.NewText(name, txt[name], nil))
	}
	ds, _ := dataset.New("original", dataset.Keys("original", n), cols...)
	return ds
}
