package domain

// Checker records checkpoint passages and collects fees. The counters are
// maintained with atomic store-side increments, never read-modify-write.
type Checker struct {
	CheckerID     string
	Name          string
	TotalCheckIns int64
	PeriodIncome  int64
}
