package domain

// Role etiqueta un bucket en la variante Winner/Hedge del allocator.
type Role string

const (
	RoleWinner Role = "Winner"
	RoleHedge  Role = "Hedge"
)

// BucketQuote es un bucket seleccionado con su precio por share (0 < price < 1).
type BucketQuote struct {
	Bucket string
	Price  float64
	Role   Role // solo lo usa la variante por roles
}

// AllocationLine es la asignación de un bucket dentro de un plan.
type AllocationLine struct {
	Bucket      string
	Price       float64
	Probability float64 // 0 si el plan no se construyó con probabilidades
	Role        Role
	Weight      float64 // peso normalizado del surplus (o peso tiered bruto)
	FloorShares float64
	FloorCost   float64
	SurplusCash float64
	ExtraShares float64
	Shares      float64
	Cost        float64 // dólares invertidos
	Payout      float64 // si gana el bucket: shares * $1
	NetProfit   float64 // payout - capital
}

// AllocationPlan es el resultado del allocator.
//
// Invariante: sum(Cost) <= Capital (igualdad en las estrategias que despliegan todo el
// capital) y, en floor+surplus, Payout >= Capital en cada línea.
type AllocationPlan struct {
	Strategy  string
	Capital   float64
	FloorCost float64
	Surplus   float64
	TotalCost float64
	Lines     []AllocationLine // ordenado por bucket
}

// Line devuelve la línea de un bucket.
func (p AllocationPlan) Line(bucket string) (AllocationLine, bool) {
	for _, l := range p.Lines {
		if l.Bucket == bucket {
			return l, true
		}
	}
	return AllocationLine{}, false
}

// MinPayout es el peor payout entre los buckets del plan.
func (p AllocationPlan) MinPayout() float64 {
	if len(p.Lines) == 0 {
		return 0
	}
	m := p.Lines[0].Payout
	for _, l := range p.Lines[1:] {
		if l.Payout < m {
			m = l.Payout
		}
	}
	return m
}

// Action de una sugerencia de rebalanceo.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Suggestion es una orden sugerida para acercar la cartera al objetivo.
type Suggestion struct {
	Bucket          string
	Action          Action
	Shares          float64
	Amount          float64 // |diff| en dólares
	Price           float64
	Probability     float64
	EV              float64
	CurrentShares   float64
	CurrentInvested float64
	TargetInvested  float64
}
