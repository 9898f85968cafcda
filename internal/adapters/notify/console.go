package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/butterfly/internal/application/planner"
	"github.com/alejandrodnm/butterfly/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier y pinta los informes del planner y del tracker.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
// table=false imprime una línea compacta por tick.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Notify imprime la alerta en una línea.
func (c *Console) Notify(_ context.Context, alert domain.Alert) error {
	ts := alert.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	fmt.Fprintf(c.out, "[%s] ALERT %s: %s | %s\n", ts.Format("15:04:05"), alert.Kind, alert.Title, alert.Message)
	return nil
}

// PrintPrePlan imprime las estadísticas del corpus y la asignación por tiers.
func (c *Console) PrintPrePlan(res planner.PrePlanResult) {
	st := res.Stats
	fmt.Fprintf(c.out, "\n=== HISTORICAL CORPUS (%d weeks, %s to %s) ===\n",
		st.Count, st.First.Format("2006-01-02"), st.Last.Format("2006-01-02"))
	fmt.Fprintf(c.out, "  Mean: %.1f  Std: %.1f  Median: %.1f  Range: %d-%d\n",
		st.Mean, st.Std, st.Median, st.Min, st.Max)
	fmt.Fprintf(c.out, "  68%% band: %.0f-%.0f  95%% band: %.0f-%.0f  Most common: %s\n",
		res.Band68[0], res.Band68[1], res.Band95[0], res.Band95[1], res.MostCommon)

	plan := res.Tiered
	fmt.Fprintf(c.out, "\n=== TIERED ALLOCATION ($%.0f) ===\n", plan.Capital)
	table := tablewriter.NewWriter(c.out)
	table.Header("Bucket", "Z", "Wins", "Base", "Bonus", "Weight", "Dollars")
	for _, l := range plan.Displayed {
		table.Append(
			l.Bucket,
			fmt.Sprintf("%.2f", l.Z),
			fmt.Sprintf("%d", l.Wins),
			fmt.Sprintf("%.0f", l.BaseWeight),
			fmt.Sprintf("%.0f", l.Bonus),
			fmt.Sprintf("%.0f", l.Weight),
			fmt.Sprintf("$%.2f", l.Dollars),
		)
	}
	table.Render()

	hidden := len(plan.Lines) - len(plan.Displayed)
	fmt.Fprintf(c.out, "  Displayed: $%.2f of $%.2f (%d buckets under the display minimum)\n\n",
		plan.DisplayedTotal, plan.UnfilteredTotal, hidden)
}

// PrintLivePlan imprime un tick del pipeline en vivo.
func (c *Console) PrintLivePlan(lp planner.LivePlan) {
	if !c.table {
		c.printLiveCompact(lp)
		return
	}

	pr := lp.Projection
	fmt.Fprintf(c.out, "\n[%s] %s\n", lp.At.Format("15:04:05"), lp.Event.Slug)
	fmt.Fprintf(c.out, "  Count: %d after %.1fh | %dh remaining | pace: %.0f\n",
		lp.Observation.Count, lp.Observation.Hours(), lp.HoursRemaining, lp.Pace)
	fmt.Fprintf(c.out, "  Rates: short %.2f/h  long %.2f/h  hourly mean %.2f  std %.2f\n",
		lp.ShortRate, lp.LongRate, lp.Hourly.Mean, lp.Hourly.Std)
	fmt.Fprintf(c.out, "  Projection: short %.0f  long %.0f  avg %.0f | P10 %.0f  P50 %.0f  P90 %.0f (%d sims, %v)\n",
		pr.ProjShort, pr.ProjLong, pr.ProjAvg, pr.P10, pr.P50, pr.P90, pr.Simulations, pr.Elapsed.Round(time.Millisecond))
	if pr.Degenerate {
		fmt.Fprintln(c.out, "  >> degenerate spread: deterministic projection")
	}

	c.printProbabilities(lp)
	c.printPlan(lp)
	c.printSuggestions(lp.Suggestions)
	c.printScenarios(lp)
}

func (c *Console) printLiveCompact(lp planner.LivePlan) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] count:%d left:%dh avg:%.0f P50:%.0f",
		lp.At.Format("15:04:05"), lp.Observation.Count, lp.HoursRemaining, lp.Projection.ProjAvg, lp.Projection.P50)
	for _, rb := range lp.Top {
		fmt.Fprintf(&sb, " | %s %.1f%%", rb.Bucket, rb.Probability*100)
	}
	if lp.AllocationErr != nil {
		fmt.Fprintf(&sb, " | plan: %s", domain.Classify(lp.AllocationErr))
	}
	fmt.Fprintln(c.out, sb.String())
}

func (c *Console) printProbabilities(lp planner.LivePlan) {
	prices := lp.Event.Prices()
	table := tablewriter.NewWriter(c.out)
	table.Header("Bucket", "Sim", "Normal", "Price", "EV")
	for _, rb := range lp.Top {
		price, ok := prices[rb.Bucket]
		priceLabel, evLabel := "-", "-"
		if ok {
			priceLabel = fmt.Sprintf("%.1f¢", price*100)
			evLabel = fmt.Sprintf("%+.3f", domain.ExpectedValue(rb.Probability, price))
		}
		table.Append(
			rb.Bucket,
			fmt.Sprintf("%.1f%%", rb.Probability*100),
			fmt.Sprintf("%.1f%%", lp.Analytic[rb.Bucket]*100),
			priceLabel,
			evLabel,
		)
	}
	table.Render()
}

func (c *Console) printPlan(lp planner.LivePlan) {
	var infeasible *domain.InfeasibleAllocationError
	switch {
	case errors.As(lp.AllocationErr, &infeasible):
		fmt.Fprintf(c.out, "  >> INFEASIBLE: floor $%.2f > capital $%.2f (%.2fx)\n",
			infeasible.FloorCost, infeasible.Capital, infeasible.Ratio())
		return
	case lp.AllocationErr != nil:
		fmt.Fprintf(c.out, "  >> no plan: %v\n", lp.AllocationErr)
		return
	}

	plan := lp.Plan
	fmt.Fprintf(c.out, "\n=== %s ($%.0f: floor $%.2f + surplus $%.2f) ===\n",
		strings.ToUpper(plan.Strategy), plan.Capital, plan.FloorCost, plan.Surplus)
	table := tablewriter.NewWriter(c.out)
	table.Header("Bucket", "Role", "Price", "Prob", "Shares", "Cost", "Payout", "Net")
	for _, l := range plan.Lines {
		table.Append(
			l.Bucket,
			string(l.Role),
			fmt.Sprintf("%.1f¢", l.Price*100),
			fmt.Sprintf("%.1f%%", l.Probability*100),
			fmt.Sprintf("%.1f", l.Shares),
			fmt.Sprintf("$%.2f", l.Cost),
			fmt.Sprintf("$%.2f", l.Payout),
			fmt.Sprintf("$%+.2f", l.NetProfit),
		)
	}
	table.Render()
	fmt.Fprintf(c.out, "  Worst-case payout: $%.2f\n", plan.MinPayout())
}

func (c *Console) printSuggestions(suggestions []domain.Suggestion) {
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintf(c.out, "\n=== REBALANCE (%d) ===\n", len(suggestions))
	table := tablewriter.NewWriter(c.out)
	table.Header("Action", "Bucket", "Shares", "Amount", "Price", "Prob", "EV", "Now $", "Target $")
	for _, s := range suggestions {
		table.Append(
			string(s.Action),
			s.Bucket,
			fmt.Sprintf("%.0f", s.Shares),
			fmt.Sprintf("$%.2f", s.Amount),
			fmt.Sprintf("%.1f¢", s.Price*100),
			fmt.Sprintf("%.1f%%", s.Probability*100),
			fmt.Sprintf("%+.3f", s.EV),
			fmt.Sprintf("$%.2f", s.CurrentInvested),
			fmt.Sprintf("$%.2f", s.TargetInvested),
		)
	}
	table.Render()
}

func (c *Console) printScenarios(lp planner.LivePlan) {
	if len(lp.Scenarios) == 0 {
		return
	}
	fmt.Fprintln(c.out, "\n=== SCENARIOS ===")
	table := tablewriter.NewWriter(c.out)
	table.Header("Rate x", "Rate/h", "Predicted", "Top bucket", "Prob")
	for _, s := range lp.Scenarios {
		table.Append(
			fmt.Sprintf("%.2f", s.Multiplier),
			fmt.Sprintf("%.2f", s.Rate),
			fmt.Sprintf("%.0f", s.Predicted),
			s.TopBucket,
			fmt.Sprintf("%.1f%%", s.TopProbability*100),
		)
	}
	table.Render()
}

// PrintSnapshot imprime la exposición por bucket del último snapshot del tracker.
func (c *Console) PrintSnapshot(snap domain.LivePositionSnapshot) {
	if !c.table {
		fmt.Fprintf(c.out, "[%s] positions:%d value:$%.2f pnl:$%+.2f buckets:%d\n",
			snap.Timestamp.Format("15:04:05"), snap.TotalPositions, snap.TotalValue, snap.TotalPnL, len(snap.Exposures))
		return
	}

	fmt.Fprintf(c.out, "\n[%s] %d positions | value $%.2f | P&L $%+.2f\n",
		snap.Timestamp.Format("15:04:05"), snap.TotalPositions, snap.TotalValue, snap.TotalPnL)
	table := tablewriter.NewWriter(c.out)
	table.Header("Bucket", "Yes", "No", "Net", "Value", "P&L")
	for _, e := range snap.Exposures {
		table.Append(
			e.Bucket,
			fmt.Sprintf("%.0f", e.YesSize),
			fmt.Sprintf("%.0f", e.NoSize),
			fmt.Sprintf("%+.0f", e.Net()),
			fmt.Sprintf("$%.2f", e.Value()),
			fmt.Sprintf("$%+.2f", e.PnL),
		)
	}
	table.Render()
}

// PrintStoreStats imprime el resumen del store de snapshots (modo --report).
func (c *Console) PrintStoreStats(st domain.SnapshotStats) {
	if st.Count == 0 {
		fmt.Fprintln(c.out, "\n  No snapshots yet. Run --track first.")
		return
	}
	fmt.Fprintf(c.out, "\n  Snapshots:      %d\n", st.Count)
	fmt.Fprintf(c.out, "  First:          %s\n", st.First.Format(time.DateTime))
	fmt.Fprintf(c.out, "  Last:           %s\n", st.Last.Format(time.DateTime))
	fmt.Fprintf(c.out, "  Unique buckets: %d\n\n", st.UniqueBuckets)
}
