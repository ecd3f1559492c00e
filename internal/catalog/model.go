package catalog

// Product prices are per kilogram; Quantity is the units in stock.
type Product struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Images      []string `json:"images"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Quantity    int      `json:"quantity"`
	IsWeight    bool     `json:"isWeight"`
}

type Line struct {
	ProductID string
	Quantity  int
}

// ClampedLine is a line whose request exceeded stock; stock was set to zero.
type ClampedLine struct {
	ProductID string
	Requested int
	Available int
}

type DecrementResult struct {
	Decremented []Line
	Clamped     []ClampedLine
	Missing     []string
}
