package loyalty

// Roadmap is a challenge completed by purchasing every required item at
// least once.
type Roadmap struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	RequiredItems []string `json:"requiredItems"`
	Badge         string   `json:"badge"`
	Reward        string   `json:"reward"`
}

// RoadmapProgress is a per customer view of one roadmap.
type RoadmapProgress struct {
	RoadmapID string   `json:"roadmapId"`
	Name      string   `json:"name"`
	Badge     string   `json:"badge"`
	Reward    string   `json:"reward"`
	Required  []string `json:"required"`
	Purchased []string `json:"purchased"`
	Missing   []string `json:"missing"`
	Completed bool     `json:"completed"`
}

// Declaration order is the evaluation order.
var roadmaps = []Roadmap{
	{
		ID:            "hot_drinks_explorer",
		Name:          "Hot Drinks Explorer",
		Description:   "Try our classic hot coffee selection",
		RequiredItems: []string{"Latte", "Cappuccino Med", "Americano"},
		Badge:         "☕ Hot Drinks Explorer",
		Reward:        "Free Latte",
	},
	{
		ID:            "cold_drinks_fan",
		Name:          "Cold Drinks Fan",
		Description:   "Explore our refreshing cold beverages",
		RequiredItems: []string{"Cold Brew", "Iced Americano", "Iced Tea"},
		Badge:         "🧊 Cold Drinks Fan",
		Reward:        "Free Cold Brew",
	},
	{
		ID:            "sweet_tooth",
		Name:          "Sweet Tooth",
		Description:   "Try our delicious milkshakes",
		RequiredItems: []string{"Chocolate Shake", "Strawberry Milk Shakes", "Mango"},
		Badge:         "🍦 Sweet Tooth",
		Reward:        "Free Milkshake",
	},
	{
		ID:            "epicure_master",
		Name:          "Epicure Master",
		Description:   "Try drinks from all categories!",
		RequiredItems: []string{"Latte", "Cappuccino Med", "Cold Brew", "Iced Tea", "Chocolate Shake", "Green Tea", "Affogato", "Matcha OG"},
		Badge:         "👑 Epicure Master",
		Reward:        "Free drink of your choice",
	},
}

// Roadmaps returns the roadmap definitions in evaluation order.
func Roadmaps() []Roadmap {
	out := make([]Roadmap, len(roadmaps))
	for i, rm := range roadmaps {
		rm.RequiredItems = append([]string{}, rm.RequiredItems...)
		out[i] = rm
	}
	return out
}

// RoadmapByID finds a roadmap definition.
func RoadmapByID(id string) (Roadmap, bool) {
	for _, rm := range roadmaps {
		if rm.ID == id {
			return rm, true
		}
	}
	return Roadmap{}, false
}

// Satisfied reports whether every required item appears in purchases.
// Repeated purchases count once.
func (rm Roadmap) Satisfied(purchases []string) bool {
	return len(rm.missing(purchaseSet(purchases))) == 0
}

func (rm Roadmap) missing(bought map[string]struct{}) []string {
	var out []string
	for _, item := range rm.RequiredItems {
		if _, ok := bought[item]; !ok {
			out = append(out, item)
		}
	}
	return out
}

// Evaluate credits every roadmap the customer satisfies but has not yet
// completed, in the given order, and returns the newly completed ones.
// Calling it again without new purchases changes nothing.
func Evaluate(c *Customer, defs []Roadmap) []Roadmap {
	if c == nil {
		return nil
	}

	bought := purchaseSet(c.Purchases)
	var completed []Roadmap
	for _, rm := range defs {
		if c.HasCompleted(rm.ID) {
			continue
		}
		if len(rm.missing(bought)) > 0 {
			continue
		}
		grantRoadmap(c, rm)
		completed = append(completed, rm)
	}
	return completed
}

// grantRoadmap records a completion. Completions and badges are never removed.
func grantRoadmap(c *Customer, rm Roadmap) {
	if !c.HasCompleted(rm.ID) {
		c.CompletedRoadmaps = append(c.CompletedRoadmaps, rm.ID)
	}
	for _, b := range c.Badges {
		if b == rm.Badge {
			return
		}
	}
	c.Badges = append(c.Badges, rm.Badge)
}

// Progress reports the customer's standing against every roadmap.
func Progress(c *Customer, defs []Roadmap) []RoadmapProgress {
	bought := purchaseSet(c.Purchases)
	out := make([]RoadmapProgress, 0, len(defs))
	for _, rm := range defs {
		missing := rm.missing(bought)
		purchased := make([]string, 0, len(rm.RequiredItems))
		for _, item := range rm.RequiredItems {
			if _, ok := bought[item]; ok {
				purchased = append(purchased, item)
			}
		}
		if missing == nil {
			missing = []string{}
		}
		out = append(out, RoadmapProgress{
			RoadmapID: rm.ID,
			Name:      rm.Name,
			Badge:     rm.Badge,
			Reward:    rm.Reward,
			Required:  append([]string{}, rm.RequiredItems...),
			Purchased: purchased,
			Missing:   missing,
			Completed: c.HasCompleted(rm.ID),
		})
	}
	return out
}

func purchaseSet(purchases []string) map[string]struct{} {
	set := make(map[string]struct{}, len(purchases))
	for _, p := range purchases {
		set[p] = struct{}{}
	}
	return set
}
