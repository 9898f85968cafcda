package domain

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Esquema canónico de buckets de los mercados semanales: 20 de ancho,
// "<20" abajo y "500+" arriba.
const (
	BucketWidth       = 20
	LowOverflowBound  = 20  // n < 20 → LowOverflowLabel
	HighOverflowStart = 500 // n >= 500 → HighOverflowLabel

	LowOverflowLabel  = "<20"
	HighOverflowLabel = "500+"

	// Midpoints fijos para los extremos abiertos.
	LowOverflowMidpoint  = 10.0
	HighOverflowMidpoint = 510.0
)

// Unbounded es el High de un bucket abierto por arriba ("500+").
const Unbounded = math.MaxInt

var (
	rangeRe = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)$`)
	lowRe   = regexp.MustCompile(`^<\s*(\d+)$`)
	highRe  = regexp.MustCompile(`^(\d+)\s*\+$`)
	aboveRe = regexp.MustCompile(`^>\s*(\d+)$`)

	// titleRe encuentra el bucket dentro de un título de mercado
	// ("Will Elon tweet 200-219 times...?").
	titleRe = regexp.MustCompile(`(\d+\s*-\s*\d+|\d+\s*\+|<\s*\d+)`)
)

// Bucket es un intervalo cerrado [Low, High] de conteos con su label canónico.
// OpenLow/OpenHigh marcan los extremos sin acotar del esquema.
type Bucket struct {
	Label    string
	Low      int
	High     int
	OpenLow  bool
	OpenHigh bool
}

// Midpoint devuelve el punto representativo del bucket.
// Rangos: (low+high)/2. Extremos abiertos: sentinels documentados
// (10 para "<20", 510 para "500+"), generalizados a low+10 / bound/2.
func (b Bucket) Midpoint() float64 {
	switch {
	case b.OpenHigh:
		if b.Low == HighOverflowStart {
			return HighOverflowMidpoint
		}
		return float64(b.Low) + BucketWidth/2
	case b.OpenLow:
		if b.High+1 == LowOverflowBound {
			return LowOverflowMidpoint
		}
		return float64(b.High+1) / 2
	default:
		return float64(b.Low+b.High) / 2
	}
}

// RepresentativeCount es el conteo entero que representa al bucket en el corpus
// histórico: floor((low+high)/2), o el sentinel en los extremos.
func (b Bucket) RepresentativeCount() int {
	return int(math.Floor(b.Midpoint()))
}

// Contains devuelve true si n cae dentro del bucket.
func (b Bucket) Contains(n int) bool {
	return n >= b.Low && n <= b.High
}

// BucketForCount devuelve el label canónico de 20 de ancho para un conteo.
func BucketForCount(n int) string {
	if n < LowOverflowBound {
		return LowOverflowLabel
	}
	if n >= HighOverflowStart {
		return HighOverflowLabel
	}
	low := BucketWidth * (n / BucketWidth)
	return fmt.Sprintf("%d-%d", low, low+BucketWidth-1)
}

// BucketForValue bucketiza un conteo simulado (float) truncando hacia abajo.
func BucketForValue(x float64) string {
	if math.IsNaN(x) || x < 0 {
		return LowOverflowLabel
	}
	if x >= HighOverflowStart {
		return HighOverflowLabel
	}
	return BucketForCount(int(math.Floor(x)))
}

// ParseBucket convierte un label en Bucket. Acepta "A-B" (también anchos
// irregulares como "140-339"), "<N", "N+" y ">N". Cualquier otra cosa es ParseError.
// Los alias de los extremos del esquema ("0-19", ">499") se normalizan a "<20" y "500+".
func ParseBucket(label string) (Bucket, error) {
	b, err := parseBucket(label)
	if err != nil {
		return Bucket{}, err
	}
	return canonical(b), nil
}

// canonical reescribe un bucket con los mismos límites que un extremo del esquema.
func canonical(b Bucket) Bucket {
	switch {
	case b.Low == 0 && b.High == LowOverflowBound-1:
		return Bucket{Label: LowOverflowLabel, Low: 0, High: LowOverflowBound - 1, OpenLow: true}
	case b.Low == HighOverflowStart && b.High == Unbounded:
		return Bucket{Label: HighOverflowLabel, Low: HighOverflowStart, High: Unbounded, OpenHigh: true}
	}
	return b
}

func parseBucket(label string) (Bucket, error) {
	s := strings.TrimSpace(label)

	if m := rangeRe.FindStringSubmatch(s); m != nil {
		low, errLow := strconv.Atoi(m[1])
		high, errHigh := strconv.Atoi(m[2])
		if errLow != nil || errHigh != nil {
			return Bucket{}, &ParseError{Input: label, Reason: "bucket bounds out of range"}
		}
		if low > high {
			return Bucket{}, &ParseError{Input: label, Reason: "bucket low is greater than high"}
		}
		return Bucket{Label: fmt.Sprintf("%d-%d", low, high), Low: low, High: high}, nil
	}

	if m := lowRe.FindStringSubmatch(s); m != nil {
		bound, err := strconv.Atoi(m[1])
		if err != nil || bound <= 0 {
			return Bucket{}, &ParseError{Input: label, Reason: "invalid low-overflow bound"}
		}
		return Bucket{Label: fmt.Sprintf("<%d", bound), Low: 0, High: bound - 1, OpenLow: true}, nil
	}

	if m := highRe.FindStringSubmatch(s); m != nil {
		low, err := strconv.Atoi(m[1])
		if err != nil {
			return Bucket{}, &ParseError{Input: label, Reason: "invalid high-overflow bound"}
		}
		return Bucket{Label: fmt.Sprintf("%d+", low), Low: low, High: Unbounded, OpenHigh: true}, nil
	}

	if m := aboveRe.FindStringSubmatch(s); m != nil {
		bound, err := strconv.Atoi(m[1])
		if err != nil {
			return Bucket{}, &ParseError{Input: label, Reason: "invalid high-overflow bound"}
		}
		return Bucket{Label: fmt.Sprintf(">%d", bound), Low: bound + 1, High: Unbounded, OpenHigh: true}, nil
	}

	return Bucket{}, &ParseError{Input: label, Reason: "not a bucket label"}
}

// Midpoint parsea el label y devuelve su midpoint.
func Midpoint(label string) (float64, error) {
	b, err := ParseBucket(label)
	if err != nil {
		return 0, err
	}
	return b.Midpoint(), nil
}

// SortKey devuelve la clave numérica de orden (el low del bucket).
// A diferencia de los helpers que devolvían 0, un label inválido es un error.
func SortKey(label string) (int, error) {
	b, err := ParseBucket(label)
	if err != nil {
		return 0, err
	}
	return b.Low, nil
}

// SortLabels ordena labels por su low. Los labels inválidos no se ordenan como
// "bucket 0": se devuelven aparte para que el caller decida.
func SortLabels(labels []string) (sorted []string, invalid []string) {
	type keyed struct {
		label string
		key   int
	}
	ks := make([]keyed, 0, len(labels))
	for _, l := range labels {
		k, err := SortKey(l)
		if err != nil {
			invalid = append(invalid, l)
			continue
		}
		ks = append(ks, keyed{label: l, key: k})
	}
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].key < ks[j].key })

	sorted = make([]string, len(ks))
	for i, k := range ks {
		sorted[i] = k.label
	}
	return sorted, invalid
}

// CanonicalBuckets devuelve los labels de 20 de ancho que empiezan en [from, to).
// from se alinea hacia abajo al múltiplo de 20.
func CanonicalBuckets(from, to int) []string {
	if from < 0 {
		from = 0
	}
	start := BucketWidth * (from / BucketWidth)
	var labels []string
	for low := start; low < to; low += BucketWidth {
		labels = append(labels, BucketForCount(low))
	}
	return dedupe(labels)
}

// FullBucketSet es el esquema canónico completo: "<20", "20-39", ..., "480-499", "500+".
func FullBucketSet() []string {
	labels := []string{LowOverflowLabel}
	for low := LowOverflowBound; low < HighOverflowStart; low += BucketWidth {
		labels = append(labels, fmt.Sprintf("%d-%d", low, low+BucketWidth-1))
	}
	return append(labels, HighOverflowLabel)
}

// ExtractBucket extrae el label de bucket de un título o pregunta de mercado.
func ExtractBucket(title string) (string, error) {
	m := titleRe.FindString(title)
	if m == "" {
		return "", &ParseError{Input: title, Reason: "no bucket pattern in market title"}
	}
	b, err := ParseBucket(m)
	if err != nil {
		return "", err
	}
	return b.Label, nil
}

func dedupe(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := labels[:0]
	for _, l := range labels {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
