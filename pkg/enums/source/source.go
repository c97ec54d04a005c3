package source

// Source tags who recorded a purchase.
type Source struct {
	Name string
}

func (s Source) Code() string {
	return s.Name
}

func (s Source) String() string {
	return s.Name
}

type Enum struct {
	Scanner Source
	Barista Source
	Manual  Source
}

var Sources = Enum{
	Scanner: Source{Name: "scanner"},
	Barista: Source{Name: "barista"},
	Manual:  Source{Name: "manual"},
}

var All = []Source{
	Sources.Scanner,
	Sources.Barista,
	Sources.Manual,
}

// ByName returns the source for a given name, or nil if not found
func ByName(name string) *Source {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

// Valid reports whether name is a known source.
func Valid(name string) bool {
	return ByName(name) != nil
}
