package loyalty

import "strings"

const (
	CategoryHotDrinks  = "Hot Drinks"
	CategoryColdDrinks = "Cold Drinks"
	CategoryMilkshake  = "Milkshake"
	CategoryTea        = "Tea"
)

// MenuItem is a purchasable catalog entry. Prices are in rupees.
type MenuItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int    `json:"price"`
	Category    string `json:"category"`
}

var menuItems = []MenuItem{
	{"cappuccino_reg", "Cappuccino Reg", "Classic Italian cappuccino with perfect espresso and foam balance", 160, CategoryHotDrinks},
	{"cappuccino_med", "Cappuccino Med", "Medium cappuccino with rich espresso and velvety foam", 180, CategoryHotDrinks},
	{"latte", "Latte", "Smooth espresso with steamed milk and light foam", 160, CategoryHotDrinks},
	{"latte_medium", "Latte Medium", "Medium latte for the perfect coffee moment", 180, CategoryHotDrinks},
	{"flat_white", "Flat White", "Velvety microfoam over double espresso shot", 160, CategoryHotDrinks},
	{"americano", "Americano", "Espresso diluted with hot water for a smooth taste", 150, CategoryHotDrinks},
	{"americano_med", "Americano Med", "Medium americano for extended enjoyment", 180, CategoryHotDrinks},
	{"hazelnut_cappuccino_reg", "Hazelnut Cappuccino Reg", "Cappuccino with rich hazelnut flavor", 170, CategoryHotDrinks},
	{"hazelnut_cappuccino_medium", "Hazelnut Cappuccino Medium", "Medium hazelnut cappuccino with extra richness", 200, CategoryHotDrinks},
	{"caramel_latte", "Caramel Latte", "Sweet caramel blended with espresso and milk", 180, CategoryHotDrinks},
	{"caramel_latte_medium", "Caramel Latte Medium", "Medium caramel latte with extra sweetness", 200, CategoryHotDrinks},
	{"vanilla_latte", "Vanilla Latte", "Classic latte with smooth vanilla notes", 180, CategoryHotDrinks},
	{"vanilla_latte_medium", "Vanilla Latte Medium", "Medium vanilla latte for ultimate comfort", 200, CategoryHotDrinks},
	{"macchiato", "Macchiato", "Espresso marked with a dollop of foamed milk", 100, CategoryHotDrinks},
	{"mocha", "Mocha", "Espresso with chocolate and steamed milk", 125, CategoryHotDrinks},
	{"cortado", "Cortado", "Equal parts espresso and warm milk", 90, CategoryHotDrinks},
	{"filter_coffee", "Filter Coffee", "Traditional South Indian filter coffee", 160, CategoryHotDrinks},
	{"tonic_espresso", "Tonic Espresso", "Refreshing espresso with tonic water", 200, CategoryHotDrinks},
	{"irish_coffee", "Irish Coffee", "Coffee with whiskey and cream", 230, CategoryHotDrinks},
	{"filter_coffee_medium", "Filter Coffee Medium", "Medium size traditional filter coffee", 180, CategoryHotDrinks},
	{"hot_chocolate", "Hot Chocolate", "Rich and creamy hot chocolate", 160, CategoryHotDrinks},
	{"hot_chocolate_med", "Hot Chocolate Med", "Medium hot chocolate with extra richness", 180, CategoryHotDrinks},
	{"doppio", "Doppio", "Double shot of espresso", 120, CategoryHotDrinks},
	{"single_espresso", "Single Espresso", "Single shot of pure espresso", 100, CategoryHotDrinks},
	{"affogato", "Affogato", "Vanilla ice cream drowned in hot espresso", 220, CategoryHotDrinks},

	{"cold_brew", "Cold Brew", "Smooth cold-steeped coffee", 170, CategoryColdDrinks},
	{"cold_brew_oat", "Cold Brew Oat", "Cold brew with creamy oat milk", 200, CategoryColdDrinks},
	{"iced_americano", "Iced Americano", "Chilled espresso with cold water over ice", 160, CategoryColdDrinks},
	{"iced_tea", "Iced Tea", "Refreshing chilled tea", 160, CategoryColdDrinks},
	{"lemonade_cold_brew", "Lemonade Cold Brew", "Refreshing lemonade mixed with cold brew", 180, CategoryColdDrinks},
	{"matcha_og", "Matcha OG", "Premium Japanese matcha latte", 250, CategoryColdDrinks},
	{"mango_matcha", "Mango Matcha", "Tropical mango blended with matcha", 260, CategoryColdDrinks},
	{"shakerato", "Shakerato", "Shaken iced espresso drink", 190, CategoryColdDrinks},

	{"chocolate_shake", "Chocolate Shake", "Rich chocolate milkshake", 160, CategoryMilkshake},
	{"cookie_cream_shake", "Cookie Cream Shake", "Cookies and cream milkshake", 160, CategoryMilkshake},
	{"mango_shake", "Mango", "Fresh mango milkshake", 160, CategoryMilkshake},
	{"pistachio_shake", "Pistachio Shake", "Creamy pistachio milkshake", 160, CategoryMilkshake},
	{"strawberry_milk_shakes", "Strawberry Milk Shakes", "Sweet strawberry milkshake", 160, CategoryMilkshake},

	{"alattar", "Alattar", "Traditional spiced tea blend", 100, CategoryTea},
	{"blue_pea_tea", "Blue Pea Tea", "Vibrant blue pea flower tea", 140, CategoryTea},
	{"camomile", "Camomile", "Soothing chamomile herbal tea", 110, CategoryTea},
	{"ginger_lemon_tea", "Ginger Lemon Tea", "Zesty ginger and lemon blend", 40, CategoryTea},
	{"green_tea", "Green Tea", "Pure refreshing green tea", 50, CategoryTea},
}

// Catalog returns a copy of the menu in display order.
func Catalog() []MenuItem {
	return append([]MenuItem{}, menuItems...)
}

// CatalogByCategory returns the items of one category. Matching ignores case.
func CatalogByCategory(category string) []MenuItem {
	var out []MenuItem
	for _, item := range menuItems {
		if strings.EqualFold(item.Category, category) {
			out = append(out, item)
		}
	}
	return out
}
