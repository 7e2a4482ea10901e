package insurance

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"telematics/pkg/logger"
	"telematics/pkg/models"
)

type Calculator struct {
	log logger.ILogger
}

func NewCalculator(log logger.ILogger) *Calculator {
	return &Calculator{log: log}
}

// CalculateAll prices every record in input order.
func (c *Calculator) CalculateAll(records []models.DriverRecord) ([]models.PremiumQuote, error) {
	quotes := make([]models.PremiumQuote, 0, len(records))
	for i := range records {
		q, err := Quote(&records[i])
		if err != nil {
			c.log.Error("error while pricing driver", logger.Int64("driver_id", records[i].DriverID), logger.Error(err))
			return nil, fmt.Errorf("driver %d: %w", records[i].DriverID, err)
		}
		quotes = append(quotes, q)
	}
	c.log.Info("premiums calculated", logger.Int("drivers", len(quotes)))
	return quotes, nil
}

type StylePremiums struct {
	Style       string  `json:"driving_style"`
	MeanPAYD    float64 `json:"payd_premium"`
	MeanPHYD    float64 `json:"phyd_premium"`
	MeanSavings float64 `json:"savings"`
	Drivers     int     `json:"drivers"`
}

type Summary struct {
	Total       int                            `json:"total"`
	ModelCounts map[models.Plan]int            `json:"model_counts"`
	ModelShare  map[models.Plan]float64        `json:"model_share"`
	ByStyle     []StylePremiums                `json:"by_style"`
	Crosstab    map[string]map[models.Plan]int `json:"crosstab"`
	MeanSavings float64                        `json:"mean_savings"`
	MaxSavings  float64                        `json:"max_savings"`
	MinSavings  float64                        `json:"min_savings"`
}

// Summarize aggregates recommended plans, premiums and savings. Styles are
// listed alphabetically.
func Summarize(quotes []models.PremiumQuote) Summary {
	s := Summary{
		Total:       len(quotes),
		ModelCounts: make(map[models.Plan]int),
		ModelShare:  make(map[models.Plan]float64),
		Crosstab:    make(map[string]map[models.Plan]int),
	}
	if len(quotes) == 0 {
		return s
	}

	type acc struct{ payd, phyd, savings []float64 }
	groups := make(map[string]*acc)
	savings := make([]float64, 0, len(quotes))
	s.MinSavings = quotes[0].Savings()
	for _, q := range quotes {
		s.ModelCounts[q.RecommendedModel]++
		if s.Crosstab[q.DrivingStyle] == nil {
			s.Crosstab[q.DrivingStyle] = make(map[models.Plan]int)
		}
		s.Crosstab[q.DrivingStyle][q.RecommendedModel]++

		g := groups[q.DrivingStyle]
		if g == nil {
			g = &acc{}
			groups[q.DrivingStyle] = g
		}
		sv := q.Savings()
		g.payd = append(g.payd, q.PAYDPremium)
		g.phyd = append(g.phyd, q.PHYDPremium)
		g.savings = append(g.savings, sv)
		savings = append(savings, sv)
		s.MaxSavings = max(s.MaxSavings, sv)
		s.MinSavings = min(s.MinSavings, sv)
	}
	for plan, n := range s.ModelCounts {
		s.ModelShare[plan] = round2(float64(n) / float64(len(quotes)) * 100)
	}
	s.MeanSavings = round2(stat.Mean(savings, nil))

	styles := make([]string, 0, len(groups))
	for style := range groups {
		styles = append(styles, style)
	}
	sort.Strings(styles)
	for _, style := range styles {
		g := groups[style]
		s.ByStyle = append(s.ByStyle, StylePremiums{
			Style:       style,
			MeanPAYD:    round2(stat.Mean(g.payd, nil)),
			MeanPHYD:    round2(stat.Mean(g.phyd, nil)),
			MeanSavings: round2(stat.Mean(g.savings, nil)),
			Drivers:     len(g.payd),
		})
	}
	return s
}
