package pipeline

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"

	"telematics/pkg/analytics"
	"telematics/pkg/generator"
	"telematics/pkg/insurance"
	"telematics/pkg/models"
	"telematics/pkg/risk"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetRowLine(false)
	table.SetHeader(header)
	return table
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printDistribution(w io.Writer, d generator.Distribution) {
	fmt.Fprintln(w, "\nDriving style distribution:")
	table := newTable(w, []string{"Style", "Share\n(%)", "Total km\n(mean)", "Braking\n(mean)", "Speeding\n(mean)", "Fines\n(mean)"})
	for _, m := range d.MeansByStyle {
		table.Append([]string{
			m.Style,
			fmt.Sprintf("%.1f", d.StyleShare[m.Style]),
			fmt.Sprintf("%.1f", m.TotalKm),
			fmt.Sprintf("%.1f", m.SuddenBrakingEvents),
			fmt.Sprintf("%.1f", m.SpeedingEvents),
			fmt.Sprintf("%.2f", m.TrafficFines),
		})
	}
	table.Render()

	fmt.Fprintln(w, "\nVehicle type distribution:")
	table = newTable(w, []string{"Vehicle", "Share\n(%)"})
	for _, v := range sortedKeys(d.VehicleShare) {
		table.Append([]string{v, fmt.Sprintf("%.1f", d.VehicleShare[v])})
	}
	table.Render()

	fmt.Fprintln(w, "\nMissing values:")
	table = newTable(w, []string{"Column", "Missing\n(#)"})
	for _, c := range sortedKeys(d.MissingValues) {
		table.Append([]string{c, fmt.Sprintf("%d", d.MissingValues[c])})
	}
	table.Render()
}

func printRiskSummary(w io.Writer, rows []risk.CategorySummary) {
	fmt.Fprintln(w, "\nRisk category summary:")
	table := newTable(w, []string{"Category", "Drivers\n(#)", "Risk score\n(mean)", "Scored\n(#)", "Accidents\n(mean)", "Total km\n(mean)"})
	for _, r := range rows {
		table.Append([]string{
			r.Category,
			fmt.Sprintf("%d", r.Drivers),
			fmt.Sprintf("%.2f", r.MeanScore),
			fmt.Sprintf("%d", r.ScoredDrivers),
			fmt.Sprintf("%.2f", r.MeanAccidents),
			fmt.Sprintf("%.2f", r.MeanTotalKm),
		})
	}
	table.Render()
}

func printModels(w io.Writer, r *analytics.Report) {
	fmt.Fprintln(w, "\nClassification model performance:")
	table := newTable(w, []string{"Model", "Accuracy", "Precision", "Recall", "F1"})
	for _, m := range r.Models {
		table.Append([]string{
			m.Name,
			fmt.Sprintf("%.3f", m.Accuracy),
			fmt.Sprintf("%.3f", m.Precision),
			fmt.Sprintf("%.3f", m.Recall),
			fmt.Sprintf("%.3f", m.F1),
		})
	}
	table.Render()
	for _, m := range r.Models {
		fmt.Fprintf(w, "\n%s classification report:\n%s", m.Name, m.ClassificationReport)
	}

	fmt.Fprintln(w, "\nCluster statistics:")
	table = newTable(w, []string{"Risk level", "Braking\n(mean)", "Speeding\n(mean)", "Accidents\n(mean)", "Fines\n(mean)", "Drivers\n(#)"})
	for _, s := range r.Clustering.Stats {
		table.Append([]string{
			s.Level,
			fmt.Sprintf("%.2f", s.BrakingEvents),
			fmt.Sprintf("%.2f", s.SpeedingEvents),
			fmt.Sprintf("%.2f", s.PreviousAccidents),
			fmt.Sprintf("%.2f", s.TrafficFines),
			fmt.Sprintf("%d", s.Drivers),
		})
	}
	table.Render()
	fmt.Fprintf(w, "Silhouette score: %.3f\n", r.Clustering.Silhouette)
}

func printPremiumSummary(w io.Writer, s insurance.Summary) {
	fmt.Fprintln(w, "\nRecommended insurance models:")
	table := newTable(w, []string{"Model", "Drivers\n(#)", "Share\n(%)"})
	for _, plan := range []models.Plan{models.PlanPAYD, models.PlanPHYD} {
		table.Append([]string{
			string(plan),
			fmt.Sprintf("%d", s.ModelCounts[plan]),
			fmt.Sprintf("%.1f", s.ModelShare[plan]),
		})
	}
	table.Render()

	fmt.Fprintln(w, "\nAverage premiums by driving style:")
	table = newTable(w, []string{"Style", "PAYD", "PHYD", "Savings", "PAYD\n(#)", "PHYD\n(#)"})
	for _, st := range s.ByStyle {
		table.Append([]string{
			st.Style,
			fmt.Sprintf("%.2f", st.MeanPAYD),
			fmt.Sprintf("%.2f", st.MeanPHYD),
			fmt.Sprintf("%.2f", st.MeanSavings),
			fmt.Sprintf("%d", s.Crosstab[st.Style][models.PlanPAYD]),
			fmt.Sprintf("%d", s.Crosstab[st.Style][models.PlanPHYD]),
		})
	}
	table.Render()
	fmt.Fprintf(w, "Savings: mean %.2f, max %.2f, min %.2f\n", s.MeanSavings, s.MaxSavings, s.MinSavings)
}
