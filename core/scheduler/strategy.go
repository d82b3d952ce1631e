package scheduler

// Strategy is the closed set of scheduling rules.
type Strategy interface {
	strategy()
	Name() string
}

// Deadline runs for a fixed Duration, starting no earlier than a start drawn
// from Start and ending no later than a deadline drawn from Deadline.
type Deadline struct {
	Start    []int
	Deadline []int
	Duration int
}

// Dependent starts when After finishes. Fallback is used when After has no
// window that day.
type Dependent struct {
	After    string
	Duration int
	Fallback Window
}

// Flexible draws both its start and its duration.
type Flexible struct {
	Start    []int
	Duration []int
}

func (Deadline) strategy()  {}
func (Dependent) strategy() {}
func (Flexible) strategy()  {}

func (Deadline) Name() string  { return "deadline" }
func (Dependent) Name() string { return "dependent" }
func (Flexible) Name() string  { return "flexible" }

// Entry pairs an appliance id with its strategy.
type Entry struct {
	ID       string
	Strategy Strategy
}

// Catalog is the ordered list of scheduled appliances.
type Catalog []Entry

// DefaultCatalog returns the built-in household routine.
func DefaultCatalog() Catalog {
	return Catalog{
		{ID: "dishwasher", Strategy: Deadline{Start: []int{68, 77}, Deadline: []int{86, 95}, Duration: 3}},
		{ID: "wash_machine", Strategy: Deadline{Start: []int{36, 48}, Deadline: []int{60, 72}, Duration: 6}},
		{ID: "clothes_dryer", Strategy: Dependent{After: "wash_machine", Duration: 5, Fallback: Window{Start: 60, End: 68}}},
		{ID: "tv", Strategy: Flexible{Start: []int{72, 80}, Duration: []int{12, 20}}},
		{ID: "refrigerator", Strategy: Flexible{Start: []int{0, 0}, Duration: []int{95, 95}}},
		{ID: "lights", Strategy: Flexible{Start: []int{68, 72}, Duration: []int{16, 24}}},
		{ID: "vacuum", Strategy: Flexible{Start: []int{52, 62}, Duration: []int{1, 6}}},
		{ID: "hair_dryer", Strategy: Flexible{Start: []int{76, 86}, Duration: []int{1, 1}}},
	}
}

// IDs lists the appliance ids in catalog order.
func (c Catalog) IDs() []string {
	out := make([]string, len(c))
	for i, e := range c {
		out[i] = e.ID
	}
	return out
}
