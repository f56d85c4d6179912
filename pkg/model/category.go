package model

// FallbackColor is used for categories outside the known palette
const FallbackColor = "gray"

// Categories is the ordered list of known product categories. The order
// fixes each category's color.
var Categories = []string{
	"Appliances",
	"Automotive",
	"Cell_Phones_and_Accessories",
	"Electronics",
	"Musical_Instruments",
	"Office_Products",
	"Tools_and_Home_Improvement",
	"Toys_and_Games",
}

// Colors is the palette matched by position to Categories
var Colors = []string{"red", "blue", "brown", "orange", "yellow", "green", "purple", "cyan"}

// ColorOf returns the display color for category
func ColorOf(category string) string {
	for i, c := range Categories {
		if c == category && i < len(Colors) {
			return Colors[i]
		}
	}
	return FallbackColor
}
