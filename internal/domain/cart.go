package domain

// CartItem is one line of the shopper's in-progress selection.
type CartItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	UnitPrice int64  `json:"price"`
	// UnitWeight is in grams.
	UnitWeight int  `json:"weight"`
	Quantity   int  `json:"quantity"`
	Selected   bool `json:"selected"`
}

// Product is the catalog snapshot a caller passes when adding to the cart.
type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Image      string `json:"image,omitempty"`
	UnitPrice  int64  `json:"price"`
	UnitWeight int    `json:"weight"`
}
